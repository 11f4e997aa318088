// Package execshell runs external tools for tagmirror.
//
// ShellExecutor wraps a CommandRunner (OSCommandRunner by default) with zap
// logging and typed failures. A non-zero exit becomes CommandFailedError, which
// keeps the exit code so callers can tell "no tag found" (128) apart from other
// git failures.
package execshell
