package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"

	"github.com/temirov/tagmirror/internal/gitmirror"
)

const (
	configurationDecodeErrorTemplateConstant = "invalid source configuration: %v"
	missingURLMessageConstant                = "url is required"
	missingTrackAndRefMessageConstant        = "Git sources require a ref and/or track"
	invalidMatchPatternTemplateConstant      = "match pattern '%s' is invalid: %w"
	invalidExcludePatternTemplateConstant    = "exclude pattern '%s' is invalid: %w"
	emptyTrackExtraTemplateConstant          = "track-extra entry #%d is empty"
	emptySubmodulePathMessageConstant        = "submodules contains an empty path"
	configurationErrorPrefixConstant         = "invalid source configuration"
	mapstructureTagNameConstant              = "mapstructure"
)

// Failure reasons raised while configuring a source.
const (
	ReasonMissingTrackAndRef   gitmirror.Reason = "missing-track-and-ref"
	ReasonInvalidConfiguration gitmirror.Reason = "invalid-configuration"
)

// SubmoduleConfiguration overrides the upstream URL or checkout decision of one submodule path.
type SubmoduleConfiguration struct {
	URL      string `mapstructure:"url"`
	Checkout *bool  `mapstructure:"checkout"`
}

// Configuration is the typed form of a source node.
type Configuration struct {
	Kind               string                            `mapstructure:"kind"`
	Directory          string                            `mapstructure:"directory"`
	URL                string                            `mapstructure:"url"`
	Track              string                            `mapstructure:"track"`
	TrackTags          bool                              `mapstructure:"track-tags"`
	TrackExtra         []string                          `mapstructure:"track-extra"`
	Match              []string                          `mapstructure:"match"`
	Exclude            []string                          `mapstructure:"exclude"`
	Ref                string                            `mapstructure:"ref"`
	CheckoutSubmodules *bool                             `mapstructure:"checkout-submodules"`
	Submodules         map[string]SubmoduleConfiguration `mapstructure:"submodules"`
	UseLFS             *bool                             `mapstructure:"use-lfs"`
}

// DecodeConfiguration converts a source node into a Configuration, rejecting unknown keys, and validates it.
func DecodeConfiguration(node map[string]any) (Configuration, error) {
	var configuration Configuration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		TagName:     mapstructureTagNameConstant,
		Result:      &configuration,
	})
	if decoderError != nil {
		return Configuration{}, decoderError
	}
	if decodeError := decoder.Decode(node); decodeError != nil {
		return Configuration{}, &gitmirror.SourceError{
			Reason:  ReasonInvalidConfiguration,
			Message: fmt.Sprintf(configurationDecodeErrorTemplateConstant, decodeError),
			Cause:   decodeError,
		}
	}
	if validationError := configuration.Validate(); validationError != nil {
		return Configuration{}, validationError
	}
	return configuration, nil
}

// Validate checks required keys and patterns, reporting every problem at once.
// A configuration with neither ref nor track fails with ReasonMissingTrackAndRef.
func (configuration Configuration) Validate() error {
	if len(strings.TrimSpace(configuration.Ref)) == 0 && len(strings.TrimSpace(configuration.Track)) == 0 {
		return &gitmirror.SourceError{Reason: ReasonMissingTrackAndRef, Message: missingTrackAndRefMessageConstant}
	}

	var validationErrors *multierror.Error
	if len(strings.TrimSpace(configuration.URL)) == 0 {
		validationErrors = multierror.Append(validationErrors, errors.New(missingURLMessageConstant))
	}
	for _, pattern := range configuration.Match {
		if _, compileError := glob.Compile(pattern); compileError != nil {
			validationErrors = multierror.Append(validationErrors, fmt.Errorf(invalidMatchPatternTemplateConstant, pattern, compileError))
		}
	}
	for _, pattern := range configuration.Exclude {
		if _, compileError := glob.Compile(pattern); compileError != nil {
			validationErrors = multierror.Append(validationErrors, fmt.Errorf(invalidExcludePatternTemplateConstant, pattern, compileError))
		}
	}
	for branchIndex, branch := range configuration.TrackExtra {
		if len(strings.TrimSpace(branch)) == 0 {
			validationErrors = multierror.Append(validationErrors, fmt.Errorf(emptyTrackExtraTemplateConstant, branchIndex+1))
		}
	}
	for path := range configuration.Submodules {
		if len(strings.TrimSpace(path)) == 0 {
			validationErrors = multierror.Append(validationErrors, errors.New(emptySubmodulePathMessageConstant))
		}
	}

	if validationErrors == nil {
		return nil
	}
	validationErrors.ErrorFormat = func(errorsList []error) string {
		message := configurationErrorPrefixConstant
		for _, validationError := range errorsList {
			message += "\n\t* " + validationError.Error()
		}
		return message
	}
	return &gitmirror.SourceError{
		Reason:  ReasonInvalidConfiguration,
		Message: validationErrors.Error(),
		Cause:   validationErrors,
	}
}

// CheckoutSubmodulesEnabled reports the global submodule checkout default, true when unset.
func (configuration Configuration) CheckoutSubmodulesEnabled() bool {
	return configuration.CheckoutSubmodules == nil || *configuration.CheckoutSubmodules
}

// ShouldCheckout reports whether the submodule at path is staged.
// An explicit per-path checkout wins over the global default.
func (configuration Configuration) ShouldCheckout(path string) bool {
	if submodule, configured := configuration.Submodules[path]; configured && submodule.Checkout != nil {
		return *submodule.Checkout
	}
	return configuration.CheckoutSubmodulesEnabled()
}

// LFSMode converts use-lfs into the mirror LFS mode.
func (configuration Configuration) LFSMode() gitmirror.LFSMode {
	switch {
	case configuration.UseLFS == nil:
		return gitmirror.LFSUnset
	case *configuration.UseLFS:
		return gitmirror.LFSEnabled
	default:
		return gitmirror.LFSDisabled
	}
}

func (configuration Configuration) trackRequest() gitmirror.TrackRequest {
	branches := append([]string{configuration.Track}, configuration.TrackExtra...)
	return gitmirror.TrackRequest{
		Branches:   branches,
		PreferTags: configuration.TrackTags,
		Match:      configuration.Match,
		Exclude:    configuration.Exclude,
	}
}
