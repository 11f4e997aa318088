package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	commandGitStringConstant              = "git"
	loggerNotConfiguredMessageConstant    = "shell executor logger not configured"
	runnerNotConfiguredMessageConstant    = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant    = "%s exited with code %d"
	commandFailedStderrTemplateConstant   = "%s exited with code %d: %s"
	commandExecutionErrorTemplateConstant = "%s could not be executed: %v"
	logFieldCommandNameConstant           = "command"
	logFieldArgumentsConstant             = "arguments"
	logFieldWorkingDirectoryConstant      = "working_directory"
	logFieldExitCodeConstant              = "exit_code"
	logFieldStandardErrorConstant         = "stderr"
	gitTerminalPromptVariableConstant     = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant     = "0"
)

// CommandName identifies an executable launched by the ShellExecutor.
type CommandName string

// CommandGit runs the git binary.
const CommandGit CommandName = CommandName(commandGitStringConstant)

// ErrLoggerNotConfigured indicates a nil logger was supplied.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates a nil runner was supplied.
var ErrCommandRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)

// CommandDetails describes arguments and process settings for a command.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable output of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner launches a ShellCommand.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a process that ran and exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failure CommandFailedError) Error() string {
	trimmedStandardError := strings.TrimSpace(failure.Result.StandardError)
	label := describeCommand(failure.Command)
	if len(trimmedStandardError) == 0 {
		return fmt.Sprintf(commandFailedErrorTemplateConstant, label, failure.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedStderrTemplateConstant, label, failure.Result.ExitCode, trimmedStandardError)
}

// CommandExecutionError reports a process that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(failure.Command), failure.Cause)
}

// Unwrap exposes the underlying failure.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ExitCodeOf extracts the exit code carried by a CommandFailedError.
func ExitCodeOf(err error) (int, bool) {
	var failedError CommandFailedError
	if errors.As(err, &failedError) {
		return failedError.Result.ExitCode, true
	}
	return 0, false
}

// ShellExecutor runs commands through a CommandRunner and logs their lifecycle.
type ShellExecutor struct {
	logger   *zap.Logger
	runner   CommandRunner
	observer CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner) (*ShellExecutor, error) {
	return NewShellExecutorWithObserver(logger, runner, nil)
}

// NewShellExecutorWithObserver constructs a ShellExecutor that also notifies observer of command events.
func NewShellExecutorWithObserver(logger *zap.Logger, runner CommandRunner, observer CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	if observer == nil {
		observer = noopCommandEventObserver{}
	}
	return &ShellExecutor{logger: logger, runner: runner, observer: observer}, nil
}

// Execute runs an arbitrary command.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logger.Debug(
		CommandMessageFormatter{}.BuildStartedMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	)
	executor.observer.CommandStarted(command)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logger.Debug(
			CommandMessageFormatter{}.BuildExecutionFailureMessage(command, runError),
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Error(runError),
		)
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Debug(
			CommandMessageFormatter{}.BuildFailureMessage(command, executionResult),
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
			zap.String(logFieldStandardErrorConstant, strings.TrimSpace(executionResult.StandardError)),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		CommandMessageFormatter{}.BuildSuccessMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
	)
	return executionResult, nil
}

// ExecuteGit runs git with terminal prompts disabled.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	environment := make(map[string]string, len(details.EnvironmentVariables)+1)
	for environmentKey, environmentValue := range details.EnvironmentVariables {
		environment[environmentKey] = environmentValue
	}
	environment[gitTerminalPromptVariableConstant] = gitTerminalPromptDisabledConstant
	details.EnvironmentVariables = environment
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

func describeCommand(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return string(command.Name) + " " + strings.Join(command.Details.Arguments, " ")
}
