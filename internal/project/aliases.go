package project

import (
	"errors"
	"fmt"
	"strings"
)

const (
	aliasSeparatorConstant            = ":"
	invalidSourceAliasMessageConstant = "invalid-source-alias"
	undefinedAliasTemplateConstant    = "%w: URL '%s' uses alias '%s' which is not defined in the project"
)

// ErrInvalidSourceAlias indicates a source URL referencing an alias the project does not define.
var ErrInvalidSourceAlias = errors.New(invalidSourceAliasMessageConstant)

var uriSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"ftp":   {},
	"file":  {},
	"git":   {},
	"sftp":  {},
	"ssh":   {},
}

// SplitAlias separates "<alias>:<rest>". URLs starting with a URI scheme carry no alias.
func SplitAlias(url string) (alias string, remainder string, aliased bool) {
	separatorIndex := strings.Index(url, aliasSeparatorConstant)
	if separatorIndex <= 0 {
		return "", url, false
	}
	candidate := url[:separatorIndex]
	if _, isScheme := uriSchemes[candidate]; isScheme {
		return "", url, false
	}
	return candidate, url[separatorIndex+len(aliasSeparatorConstant):], true
}

// URLTranslator expands project aliases and records every URL marked for download.
type URLTranslator struct {
	configuration Configuration
	registry      *DownloadURLRegistry
}

// NewURLTranslator constructs a URLTranslator recording marked URLs in registry.
func NewURLTranslator(configuration Configuration, registry *DownloadURLRegistry) *URLTranslator {
	if registry == nil {
		registry = NewDownloadURLRegistry()
	}
	return &URLTranslator{configuration: configuration, registry: registry}
}

// TranslateURL expands the alias of url. A non-empty aliasOverride replaces the alias value.
func (translator *URLTranslator) TranslateURL(url string, aliasOverride string) (string, error) {
	alias, remainder, aliased := SplitAlias(url)
	if !aliased {
		return url, nil
	}
	if len(aliasOverride) > 0 {
		return aliasOverride + remainder, nil
	}
	aliasValue, defined := translator.configuration.Aliases[alias]
	if !defined {
		return "", fmt.Errorf(undefinedAliasTemplateConstant, ErrInvalidSourceAlias, url, alias)
	}
	return aliasValue + remainder, nil
}

// MarkDownloadURL validates the alias of url and records it.
func (translator *URLTranslator) MarkDownloadURL(url string, primary bool) error {
	if alias, _, aliased := SplitAlias(url); aliased {
		if _, defined := translator.configuration.Aliases[alias]; !defined {
			return fmt.Errorf(undefinedAliasTemplateConstant, ErrInvalidSourceAlias, url, alias)
		}
	}
	translator.registry.Mark(url, primary)
	return nil
}

// AliasOverrides lists the base URLs to try, in order, when fetching url.
// Mirrors come first, the default mirror ahead of the others; the trailing empty string selects the alias itself.
func (translator *URLTranslator) AliasOverrides(url string) []string {
	alias, _, aliased := SplitAlias(url)
	if !aliased {
		return []string{""}
	}

	overrides := make([]string, 0, len(translator.configuration.Mirrors)+1)
	defaultMirror := translator.configuration.DefaultMirror
	for _, mirror := range translator.configuration.Mirrors {
		if mirror.Name == defaultMirror {
			overrides = append(overrides, mirror.Aliases[alias]...)
		}
	}
	for _, mirror := range translator.configuration.Mirrors {
		if mirror.Name != defaultMirror {
			overrides = append(overrides, mirror.Aliases[alias]...)
		}
	}
	return append(overrides, "")
}

// Registry returns the registry of marked URLs.
func (translator *URLTranslator) Registry() *DownloadURLRegistry {
	return translator.registry
}
