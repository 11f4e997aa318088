package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

const atomicWritePatternSuffixConstant = ".tmp-*"

// OSFileSystem implements the filesystem operations of mirrors and source documents on the operating system.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Rename renames a path. Renaming a directory onto a non-empty directory fails with ENOTEMPTY or EEXIST.
func (OSFileSystem) Rename(oldPath string, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// MkdirTemp creates a uniquely named directory inside directory.
func (OSFileSystem) MkdirTemp(directory string, pattern string) (string, error) {
	return os.MkdirTemp(directory, pattern)
}

// RemoveAll removes path and any children.
func (OSFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// ReadFile reads file contents.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomically writes data to a sibling temporary file and renames it over path.
func (OSFileSystem) WriteFileAtomically(path string, data []byte, permissions fs.FileMode) error {
	temporaryFile, createError := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+atomicWritePatternSuffixConstant)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()
	defer func() {
		_ = os.Remove(temporaryPath)
	}()

	if _, writeError := temporaryFile.Write(data); writeError != nil {
		_ = temporaryFile.Close()
		return writeError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return closeError
	}
	if chmodError := os.Chmod(temporaryPath, permissions); chmodError != nil {
		return chmodError
	}
	return os.Rename(temporaryPath, path)
}
