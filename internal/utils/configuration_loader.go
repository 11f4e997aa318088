package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationKeySeparatorConstant           = "."
	environmentKeySeparatorConstant             = "_"
	listValueSeparatorConstant                  = ","
	configurationReadErrorTemplateConstant      = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant = "failed to parse configuration: %w"
	embeddedConfigurationErrorTemplateConstant  = "failed to merge embedded configuration: %w"
)

// ConfigurationLoaderOptions describes where configuration comes from.
type ConfigurationLoaderOptions struct {
	Name              string
	Type              string
	EnvironmentPrefix string
	SearchPaths       []string
	// Embedded is merged first, below every configuration file and environment variable.
	Embedded []byte
	// RejectUnknownKeys fails the load when a configuration file sets a key the target does not declare.
	RejectUnknownKeys bool
}

// ConfigurationLoader layers embedded defaults, a configuration file and environment variables with Viper.
type ConfigurationLoader struct {
	options ConfigurationLoaderOptions
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader constructs a ConfigurationLoader.
func NewConfigurationLoader(options ConfigurationLoaderOptions) *ConfigurationLoader {
	options.SearchPaths = append([]string(nil), options.SearchPaths...)
	options.Embedded = append([]byte(nil), options.Embedded...)
	return &ConfigurationLoader{options: options}
}

// LoadConfiguration decodes the merged configuration into target. An explicit configurationFilePath
// replaces the search paths; a missing file found through the search paths is not an error.
// Environment variables use the prefix and the key path joined by underscores, e.g. PREFIX_PROJECT_CACHE_DIRECTORY.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.options.Name)
	viperInstance.SetConfigType(loader.options.Type)

	if len(loader.options.Embedded) > 0 {
		if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.options.Embedded)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationErrorTemplateConstant, mergeError)
		}
	}

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	viperInstance.SetEnvPrefix(loader.options.EnvironmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	viperInstance.AutomaticEnv()

	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	} else {
		for _, searchPath := range loader.options.SearchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
	}

	if readError := viperInstance.MergeInConfig(); readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	decodeOptions := []viper.DecoderConfigOption{
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
		)),
	}
	if loader.options.RejectUnknownKeys {
		decodeOptions = append(decodeOptions, func(decoderConfiguration *mapstructure.DecoderConfig) {
			decoderConfiguration.ErrorUnused = true
		})
	}
	if unmarshalError := viperInstance.Unmarshal(target, decodeOptions...); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{ConfigFileUsed: viperInstance.ConfigFileUsed()}, nil
}
