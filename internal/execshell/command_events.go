package execshell

import "go.uber.org/zap"

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that command execution finished and supplies the result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports unexpected failures prior to receiving an execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}

// ConsoleCommandEventLogger renders command lifecycle events for people watching a console log.
// Non-zero exits are logged at debug level: several git probes (describe, cat-file, show) fail by design.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: CommandMessageFormatter{}}
}

// CommandStarted logs the start notification.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted logs the completion notification.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command ShellCommand, result ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Debug(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed logs processes that could not run at all.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}
