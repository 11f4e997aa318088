package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/temirov/tagmirror/internal/gitmirror"
	pathutils "github.com/temirov/tagmirror/internal/utils/path"
)

const (
	defaultCacheDirectoryConstant           = "~/.cache/tagmirror"
	sourcesDirectoryNameConstant            = "sources"
	gitSourcesDirectoryNameConstant         = "git"
	defaultFetchRetriesConstant             = 2
	defaultInitialBackoffConstant           = 500 * time.Millisecond
	defaultMaximumBackoffConstant           = 10 * time.Second
	emptyAliasValueTemplateConstant         = "alias '%s' has no url"
	emptyMirrorNameTemplateConstant         = "mirror #%d has no name"
	unknownMirrorAliasTemplateConstant      = "mirror '%s' lists alias '%s' which is not defined"
	unknownDefaultMirrorTemplateConstant    = "default_mirror '%s' does not name a configured mirror"
	unknownFatalWarningTemplateConstant     = "fatal_warnings lists unknown warning '%s'"
	negativeRetriesTemplateConstant         = "fetch.retries must not be negative, got %d"
	invalidBackoffMessageConstant           = "fetch.initial_backoff must be positive and not exceed fetch.max_backoff"
	homeDirectoryFailureTemplateConstant    = "unable to resolve cache directory %s: %w"
	projectConfigurationErrorPrefixConstant = "invalid project configuration"
)

// Configuration keys, relative to the project section.
const (
	CacheDirectoryKey = "cache_directory"
	AliasesKey        = "aliases"
	MirrorsKey        = "mirrors"
	DefaultMirrorKey  = "default_mirror"
	FatalWarningsKey  = "fatal_warnings"
	FetchRetriesKey   = "fetch.retries"
	InitialBackoffKey = "fetch.initial_backoff"
	MaximumBackoffKey = "fetch.max_backoff"
)

// Configuration describes the project a source belongs to: aliases, mirrors and directories.
type Configuration struct {
	CacheDirectory string                `mapstructure:"cache_directory"`
	Aliases        map[string]string     `mapstructure:"aliases"`
	Mirrors        []MirrorConfiguration `mapstructure:"mirrors"`
	DefaultMirror  string                `mapstructure:"default_mirror"`
	FatalWarnings  []string              `mapstructure:"fatal_warnings"`
	Fetch          FetchConfiguration    `mapstructure:"fetch"`
}

// MirrorConfiguration lists alternative base URLs for aliases.
type MirrorConfiguration struct {
	Name    string              `mapstructure:"name"`
	Aliases map[string][]string `mapstructure:"aliases"`
}

// FetchConfiguration tunes retries of temporary fetch failures.
type FetchConfiguration struct {
	Retries        int           `mapstructure:"retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaximumBackoff time.Duration `mapstructure:"max_backoff"`
}

// DefaultConfigurationValues returns the defaults of every project key under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	return map[string]any{
		prefix + "." + CacheDirectoryKey: defaultCacheDirectoryConstant,
		prefix + "." + DefaultMirrorKey:  "",
		prefix + "." + FatalWarningsKey:  []string{},
		prefix + "." + FetchRetriesKey:   defaultFetchRetriesConstant,
		prefix + "." + InitialBackoffKey: defaultInitialBackoffConstant,
		prefix + "." + MaximumBackoffKey: defaultMaximumBackoffConstant,
	}
}

var knownWarningTokens = map[gitmirror.WarningToken]struct{}{
	gitmirror.WarningInconsistentSubmodule: {},
	gitmirror.WarningUnusedLFS:             {},
}

// Validate reports every problem in the configuration at once.
func (configuration Configuration) Validate() error {
	var validationErrors *multierror.Error

	for alias, value := range configuration.Aliases {
		if len(value) == 0 {
			validationErrors = multierror.Append(validationErrors, fmt.Errorf(emptyAliasValueTemplateConstant, alias))
		}
	}

	defaultMirrorFound := len(configuration.DefaultMirror) == 0
	for mirrorIndex, mirror := range configuration.Mirrors {
		if len(mirror.Name) == 0 {
			validationErrors = multierror.Append(validationErrors, fmt.Errorf(emptyMirrorNameTemplateConstant, mirrorIndex+1))
		}
		if mirror.Name == configuration.DefaultMirror {
			defaultMirrorFound = true
		}
		for alias := range mirror.Aliases {
			if _, defined := configuration.Aliases[alias]; !defined {
				validationErrors = multierror.Append(validationErrors, fmt.Errorf(unknownMirrorAliasTemplateConstant, mirror.Name, alias))
			}
		}
	}
	if !defaultMirrorFound {
		validationErrors = multierror.Append(validationErrors, fmt.Errorf(unknownDefaultMirrorTemplateConstant, configuration.DefaultMirror))
	}

	for _, token := range configuration.FatalWarnings {
		if _, known := knownWarningTokens[gitmirror.WarningToken(token)]; !known {
			validationErrors = multierror.Append(validationErrors, fmt.Errorf(unknownFatalWarningTemplateConstant, token))
		}
	}

	if configuration.Fetch.Retries < 0 {
		validationErrors = multierror.Append(validationErrors, fmt.Errorf(negativeRetriesTemplateConstant, configuration.Fetch.Retries))
	}
	if configuration.Fetch.InitialBackoff <= 0 || configuration.Fetch.InitialBackoff > configuration.Fetch.MaximumBackoff {
		validationErrors = multierror.Append(validationErrors, errors.New(invalidBackoffMessageConstant))
	}

	if validationErrors == nil {
		return nil
	}
	validationErrors.ErrorFormat = formatValidationErrors
	return validationErrors
}

// MirrorRoot returns the directory holding every git mirror, with a leading tilde expanded.
func (configuration Configuration) MirrorRoot(homeDirectoryProvider pathutils.HomeDirectoryProvider) (string, error) {
	cacheDirectory := configuration.CacheDirectory
	if len(cacheDirectory) == 0 {
		cacheDirectory = defaultCacheDirectoryConstant
	}
	expandedDirectory, expandError := pathutils.ExpandHome(cacheDirectory, homeDirectoryProvider)
	if expandError != nil {
		return "", fmt.Errorf(homeDirectoryFailureTemplateConstant, cacheDirectory, expandError)
	}
	return filepath.Join(expandedDirectory, sourcesDirectoryNameConstant, gitSourcesDirectoryNameConstant), nil
}

func formatValidationErrors(validationErrors []error) string {
	message := projectConfigurationErrorPrefixConstant
	for _, validationError := range validationErrors {
		message += "\n\t* " + validationError.Error()
	}
	return message
}
