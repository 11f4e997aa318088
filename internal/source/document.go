package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

const (
	documentIndentConstant             = 2
	yamlStringTagConstant              = "!!str"
	documentReadErrorTemplateConstant  = "unable to read source document %s: %w"
	documentParseErrorTemplateConstant = "unable to parse source document %s: %w"
	documentShapeErrorTemplateConstant = "source document %s must hold a single mapping"
	documentWriteErrorTemplateConstant = "unable to write source document %s: %w"
	documentNotLoadedMessageConstant   = "source document not loaded"
)

// ErrDocumentNotLoaded indicates a Document without a parsed node.
var ErrDocumentNotLoaded = errors.New(documentNotLoadedMessageConstant)

// DocumentFileSystem reads and atomically replaces source documents.
type DocumentFileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomically(path string, data []byte, permissions fs.FileMode) error
}

// Document is a YAML file holding one source node. Comments and key order survive a SetRef and Save.
type Document struct {
	path       string
	root       *yaml.Node
	fileSystem DocumentFileSystem
}

// LoadDocument reads and parses the source document at path.
func LoadDocument(fileSystem DocumentFileSystem, path string) (*Document, error) {
	content, readError := fileSystem.ReadFile(path)
	if readError != nil {
		return nil, fmt.Errorf(documentReadErrorTemplateConstant, path, readError)
	}

	var root yaml.Node
	if parseError := yaml.Unmarshal(content, &root); parseError != nil {
		return nil, fmt.Errorf(documentParseErrorTemplateConstant, path, parseError)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf(documentShapeErrorTemplateConstant, path)
	}
	return &Document{path: path, root: &root, fileSystem: fileSystem}, nil
}

// Path returns the document location.
func (document *Document) Path() string {
	return document.path
}

// Node decodes the source node for Configure and LoadRef.
func (document *Document) Node() (map[string]any, error) {
	mapping, mappingError := document.mapping()
	if mappingError != nil {
		return nil, mappingError
	}
	node := map[string]any{}
	if decodeError := mapping.Decode(&node); decodeError != nil {
		return nil, fmt.Errorf(documentParseErrorTemplateConstant, document.path, decodeError)
	}
	return node, nil
}

// SetRef replaces the ref value in place, or appends a ref key when absent.
func (document *Document) SetRef(ref string) error {
	mapping, mappingError := document.mapping()
	if mappingError != nil {
		return mappingError
	}

	for keyIndex := 0; keyIndex+1 < len(mapping.Content); keyIndex += 2 {
		if mapping.Content[keyIndex].Value == refKeyConstant {
			valueNode := mapping.Content[keyIndex+1]
			valueNode.Kind = yaml.ScalarNode
			valueNode.Tag = yamlStringTagConstant
			valueNode.Value = ref
			valueNode.Style = 0
			valueNode.Content = nil
			return nil
		}
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: yamlStringTagConstant, Value: refKeyConstant},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: yamlStringTagConstant, Value: ref},
	)
	return nil
}

// Save writes the document back atomically, keeping the file permissions.
func (document *Document) Save() error {
	if document.root == nil {
		return ErrDocumentNotLoaded
	}

	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(documentIndentConstant)
	if encodeError := encoder.Encode(document.root); encodeError != nil {
		return fmt.Errorf(documentWriteErrorTemplateConstant, document.path, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(documentWriteErrorTemplateConstant, document.path, closeError)
	}

	permissions := fs.FileMode(0o644)
	if fileInfo, statError := document.fileSystem.Stat(document.path); statError == nil {
		permissions = fileInfo.Mode().Perm()
	}
	if writeError := document.fileSystem.WriteFileAtomically(document.path, buffer.Bytes(), permissions); writeError != nil {
		return fmt.Errorf(documentWriteErrorTemplateConstant, document.path, writeError)
	}
	return nil
}

func (document *Document) mapping() (*yaml.Node, error) {
	if document.root == nil || len(document.root.Content) == 0 {
		return nil, ErrDocumentNotLoaded
	}
	return document.root.Content[0], nil
}
