package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/project"
	"github.com/temirov/tagmirror/internal/source"
	"github.com/temirov/tagmirror/internal/utils"
)

const (
	applicationNameConstant                 = "tagmirror"
	applicationShortDescriptionConstant     = "Track, mirror and stage git sources pinned to tags"
	applicationLongDescriptionConstant      = "tagmirror keeps local mirrors of upstream git repositories, resolves tracked branches to their latest tags and stages pinned checkouts together with their submodules."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	cacheDirectoryFlagNameConstant          = "cache-directory"
	cacheDirectoryFlagUsageConstant         = "Override the directory holding git mirrors."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	projectConfigurationKeyConstant         = "project"
	environmentPrefixConstant               = "TAGMIRROR"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationCacheFieldConstant         = "cache_directory"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	commandBuildErrorTemplateConstant       = "unable to build source commands: %w"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationDirectoryNameConstant  = "tagmirror"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common  ApplicationCommonConfiguration `mapstructure:"common"`
	Project project.Configuration          `mapstructure:"project"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	cacheDirectoryFlag     string
	commandContextAccessor utils.CommandContextAccessor
	buildError             error
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	embeddedConfiguration, _ := EmbeddedDefaultConfiguration()
	application := &Application{
		configurationLoader: utils.NewConfigurationLoader(utils.ConfigurationLoaderOptions{
			Name:              configurationNameConstant,
			Type:              configurationTypeConstant,
			EnvironmentPrefix: environmentPrefixConstant,
			SearchPaths:       configurationSearchPaths(),
			Embedded:          embeddedConfiguration,
			RejectUnknownKeys: true,
		}),
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	application.registerPersistentFlags(cobraCommand.PersistentFlags())

	sourceBuilder := source.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() project.Configuration {
			return application.configuration.Project
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
	}
	sourceCommands, sourceBuildError := sourceBuilder.Build()
	if sourceBuildError != nil {
		application.buildError = fmt.Errorf(commandBuildErrorTemplateConstant, sourceBuildError)
	}
	cobraCommand.AddCommand(sourceCommands...)

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	if application.buildError != nil {
		return application.buildError
	}
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// SetArguments replaces the command-line arguments parsed by Execute.
func (application *Application) SetArguments(arguments []string) {
	application.rootCommand.SetArgs(arguments)
}

// SetOutput redirects command output, which defaults to standard output.
func (application *Application) SetOutput(output io.Writer) {
	application.rootCommand.SetOut(output)
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func (application *Application) registerPersistentFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagSet.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	flagSet.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	flagSet.StringVar(&application.cacheDirectoryFlag, cacheDirectoryFlagNameConstant, "", cacheDirectoryFlagUsageConstant)
}

func defaultConfigurationValues() map[string]any {
	defaultValues := project.DefaultConfigurationValues(projectConfigurationKeyConstant)
	defaultValues[commonLogLevelConfigKeyConstant] = string(utils.LogLevelInfo)
	defaultValues[commonLogFormatConfigKeyConstant] = string(utils.LogFormatConsole)
	return defaultValues
}

// flagOverrides pairs each overriding flag with the configuration field it replaces.
func (application *Application) flagOverrides() map[string]flagOverride {
	return map[string]flagOverride{
		logLevelFlagNameConstant:       {value: &application.logLevelFlagValue, target: &application.configuration.Common.LogLevel},
		logFormatFlagNameConstant:      {value: &application.logFormatFlagValue, target: &application.configuration.Common.LogFormat},
		cacheDirectoryFlagNameConstant: {value: &application.cacheDirectoryFlag, target: &application.configuration.Project.CacheDirectory},
	}
}

type flagOverride struct {
	value  *string
	target *string
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	application.configuration = ApplicationConfiguration{}
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	rootFlags := application.rootCommand.PersistentFlags()
	for flagName, override := range application.flagOverrides() {
		if rootFlags.Changed(flagName) {
			*override.target = *override.value
		}
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger
	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, loadedConfiguration.ConfigFileUsed),
		zap.String(configurationCacheFieldConstant, application.configuration.Project.CacheDirectory),
	)

	if command != nil {
		command.SetContext(application.commandContextAccessor.WithConfigurationFilePath(command.Context(), loadedConfiguration.ConfigFileUsed))
	}
	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP), errors.Is(syncError, syscall.EINVAL), errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}
