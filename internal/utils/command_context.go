package utils

import "context"

type commandContextKey struct {
	name string
}

var configurationFilePathContextKey = commandContextKey{name: "configuration-file-path"}

// CommandContextAccessor stores and reads per-invocation values on a command context.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath records the configuration file the invocation loaded.
func (CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKey, configurationFilePath)
}

// ConfigurationFilePath returns the recorded configuration file, false when none was loaded.
func (CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, recorded := executionContext.Value(configurationFilePathContextKey).(string)
	if !recorded || len(configurationFilePath) == 0 {
		return "", false
	}
	return configurationFilePath, true
}
