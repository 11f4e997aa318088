// Package utils holds the CLI plumbing shared by every command: layered configuration loading with
// Viper, zap logger construction, flushing output writers and command context values.
package utils
