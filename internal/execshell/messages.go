package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	gitFetchAllRemotesLabelConstant         = "all remotes"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitFetchSubcommandNameConstant    = "fetch"
	gitDescribeSubcommandNameConstant = "describe"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitCatFileSubcommandNameConstant  = "cat-file"
	gitShowSubcommandNameConstant     = "show"
	gitLSTreeSubcommandNameConstant   = "ls-tree"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitRemoteSubcommandNameConstant   = "remote"
	gitLFSSubcommandNameConstant      = "lfs"
)

const (
	gitCloneStartTemplateConstant                 = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant               = "Cloned %s into %s"
	gitCloneFailureTemplateConstant               = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant      = "Unable to clone %s into %s: %s"
	gitFetchStartTemplateConstant                 = "Fetching from %s in %s"
	gitFetchSuccessTemplateConstant               = "Fetched from %s in %s"
	gitFetchFailureTemplateConstant               = "Failed to fetch from %s in %s (exit code %d%s)"
	gitFetchExecutionFailureTemplateConstant      = "Unable to fetch from %s in %s: %s"
	gitDescribeStartTemplateConstant              = "Describing %s in %s"
	gitDescribeSuccessTemplateConstant            = "Described %s in %s"
	gitDescribeFailureTemplateConstant            = "No tag describes %s in %s (exit code %d%s)"
	gitDescribeExecutionFailureTemplateConstant   = "Unable to describe %s in %s: %s"
	gitRevisionStartTemplateConstant              = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant            = "Resolved %s in %s"
	gitRevisionFailureTemplateConstant            = "Failed to resolve %s in %s (exit code %d%s)"
	gitRevisionExecutionFailureTemplateConstant   = "Unable to resolve %s in %s: %s"
	gitObjectStartTemplateConstant                = "Checking object %s in %s"
	gitObjectSuccessTemplateConstant              = "Object %s present in %s"
	gitObjectFailureTemplateConstant              = "Object %s missing from %s (exit code %d%s)"
	gitObjectExecutionFailureTemplateConstant     = "Unable to check object %s in %s: %s"
	gitCheckoutStartTemplateConstant              = "Checking out %s in %s"
	gitCheckoutSuccessTemplateConstant            = "Checked out %s in %s"
	gitCheckoutFailureTemplateConstant            = "Failed to check out %s in %s (exit code %d%s)"
	gitCheckoutExecutionFailureTemplateConstant   = "Unable to check out %s in %s: %s"
	gitTreeStartTemplateConstant                  = "Listing tree %s in %s"
	gitTreeSuccessTemplateConstant                = "Listed tree %s in %s"
	gitTreeFailureTemplateConstant                = "Failed to list tree %s in %s (exit code %d%s)"
	gitTreeExecutionFailureTemplateConstant       = "Unable to list tree %s in %s: %s"
	gitRemoteStartTemplateConstant                = "Configuring remotes in %s"
	gitRemoteSuccessTemplateConstant              = "Configured remotes in %s"
	gitRemoteFailureTemplateConstant              = "Failed to configure remotes in %s (exit code %d%s)"
	gitRemoteExecutionFailureTemplateConstant     = "Unable to configure remotes in %s: %s"
	gitRemoteListStartTemplateConstant            = "Listing remotes in %s"
	gitRemoteListSuccessTemplateConstant          = "Listed remotes in %s"
	gitRemoteAddStartTemplateConstant             = "Adding remote %s in %s"
	gitRemoteAddSuccessTemplateConstant           = "Added remote %s in %s"
	gitRemoteSetURLStartTemplateConstant          = "Pointing remote %s at %s in %s"
	gitRemoteSetURLSuccessTemplateConstant        = "Remote %s now points at %s in %s"
	gitRemoteAddSubcommandNameConstant            = "add"
	gitRemoteSetURLSubcommandNameConstant         = "set-url"
	gitRemoteSubcommandArgumentIndexConstant      = 1
	gitRemoteNameArgumentIndexConstant            = 2
	gitRemoteURLArgumentIndexConstant             = 3
	gitCloneMinimumPositionalArgumentsConstant    = 2
	gitShowObjectSeparatorConstant                = ":"
	gitShowFileStartTemplateConstant              = "Reading %s at %s in %s"
	gitShowFileSuccessTemplateConstant            = "Read %s at %s in %s"
	gitShowFileFailureTemplateConstant            = "No %s at %s in %s (exit code %d%s)"
	gitShowFileExecutionFailureTemplateConstant   = "Unable to read %s at %s in %s: %s"
	gitShowObjectPartCountConstant                = 2
	gitLFSStartTemplateConstant                   = "Running git lfs %s in %s"
	gitLFSSuccessTemplateConstant                 = "Completed git lfs %s in %s"
	gitLFSFailureTemplateConstant                 = "git lfs %s failed in %s (exit code %d%s)"
	gitLFSExecutionFailureTemplateConstant        = "Unable to run git lfs %s in %s: %s"
	gitLFSActionArgumentIndexConstant             = 1
	gitConfigurationOverrideFlagConstant          = "-c"
	gitConfigurationOverrideArgumentCountConstant = 2
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := formatter.stripConfigurationOverrides(command.Details.Arguments)
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	positional := formatter.positionalArguments(arguments[1:])

	switch strings.TrimSpace(arguments[0]) {
	case gitCloneSubcommandNameConstant:
		if len(positional) < gitCloneMinimumPositionalArgumentsConstant {
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
		return formatter.describeStage(stage, result, failure,
			[4]string{gitCloneStartTemplateConstant, gitCloneSuccessTemplateConstant, gitCloneFailureTemplateConstant, gitCloneExecutionFailureTemplateConstant},
			positional[0], positional[1])
	case gitFetchSubcommandNameConstant:
		remoteName := gitFetchAllRemotesLabelConstant
		if len(positional) > 0 {
			remoteName = positional[0]
		}
		return formatter.describeStage(stage, result, failure,
			[4]string{gitFetchStartTemplateConstant, gitFetchSuccessTemplateConstant, gitFetchFailureTemplateConstant, gitFetchExecutionFailureTemplateConstant},
			remoteName, workingDirectory)
	case gitDescribeSubcommandNameConstant:
		return formatter.describeStage(stage, result, failure,
			[4]string{gitDescribeStartTemplateConstant, gitDescribeSuccessTemplateConstant, gitDescribeFailureTemplateConstant, gitDescribeExecutionFailureTemplateConstant},
			formatter.lastValue(positional), workingDirectory)
	case gitRevParseSubcommandNameConstant:
		return formatter.describeStage(stage, result, failure,
			[4]string{gitRevisionStartTemplateConstant, gitRevisionSuccessTemplateConstant, gitRevisionFailureTemplateConstant, gitRevisionExecutionFailureTemplateConstant},
			formatter.lastValue(positional), workingDirectory)
	case gitCatFileSubcommandNameConstant:
		return formatter.describeStage(stage, result, failure,
			[4]string{gitObjectStartTemplateConstant, gitObjectSuccessTemplateConstant, gitObjectFailureTemplateConstant, gitObjectExecutionFailureTemplateConstant},
			formatter.lastValue(positional), workingDirectory)
	case gitShowSubcommandNameConstant:
		return formatter.describeGitShowMessage(command, positional, workingDirectory, result, failure, stage)
	case gitLSTreeSubcommandNameConstant:
		return formatter.describeStage(stage, result, failure,
			[4]string{gitTreeStartTemplateConstant, gitTreeSuccessTemplateConstant, gitTreeFailureTemplateConstant, gitTreeExecutionFailureTemplateConstant},
			strings.Join(positional, commandArgumentsJoinSeparatorConstant), workingDirectory)
	case gitCheckoutSubcommandNameConstant:
		return formatter.describeStage(stage, result, failure,
			[4]string{gitCheckoutStartTemplateConstant, gitCheckoutSuccessTemplateConstant, gitCheckoutFailureTemplateConstant, gitCheckoutExecutionFailureTemplateConstant},
			formatter.lastValue(positional), workingDirectory)
	case gitRemoteSubcommandNameConstant:
		return formatter.describeGitRemoteMessage(arguments, workingDirectory, result, failure, stage)
	case gitLFSSubcommandNameConstant:
		return formatter.describeStage(stage, result, failure,
			[4]string{gitLFSStartTemplateConstant, gitLFSSuccessTemplateConstant, gitLFSFailureTemplateConstant, gitLFSExecutionFailureTemplateConstant},
			formatter.ensureValue(formatter.argumentAtIndex(arguments, gitLFSActionArgumentIndexConstant)), workingDirectory)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitShowMessage(command ShellCommand, positional []string, workingDirectory string, result ExecutionResult, failure error, stage messageStage) string {
	objectName := formatter.lastValue(positional)
	objectParts := strings.SplitN(objectName, gitShowObjectSeparatorConstant, gitShowObjectPartCountConstant)
	if len(objectParts) != gitShowObjectPartCountConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	return formatter.describeStage(stage, result, failure,
		[4]string{gitShowFileStartTemplateConstant, gitShowFileSuccessTemplateConstant, gitShowFileFailureTemplateConstant, gitShowFileExecutionFailureTemplateConstant},
		objectParts[1], objectParts[0], workingDirectory)
}

func (formatter CommandMessageFormatter) describeGitRemoteMessage(arguments []string, workingDirectory string, result ExecutionResult, failure error, stage messageStage) string {
	remoteSubcommand := strings.TrimSpace(formatter.argumentAtIndex(arguments, gitRemoteSubcommandArgumentIndexConstant))
	remoteName := formatter.ensureValue(formatter.argumentAtIndex(arguments, gitRemoteNameArgumentIndexConstant))
	remoteURL := formatter.ensureValue(formatter.argumentAtIndex(arguments, gitRemoteURLArgumentIndexConstant))

	switch {
	case len(remoteSubcommand) == 0 && stage == messageStageStart:
		return fmt.Sprintf(gitRemoteListStartTemplateConstant, workingDirectory)
	case len(remoteSubcommand) == 0 && stage == messageStageSuccess:
		return fmt.Sprintf(gitRemoteListSuccessTemplateConstant, workingDirectory)
	case remoteSubcommand == gitRemoteAddSubcommandNameConstant && stage == messageStageStart:
		return fmt.Sprintf(gitRemoteAddStartTemplateConstant, remoteName, workingDirectory)
	case remoteSubcommand == gitRemoteAddSubcommandNameConstant && stage == messageStageSuccess:
		return fmt.Sprintf(gitRemoteAddSuccessTemplateConstant, remoteName, workingDirectory)
	case remoteSubcommand == gitRemoteSetURLSubcommandNameConstant && stage == messageStageStart:
		return fmt.Sprintf(gitRemoteSetURLStartTemplateConstant, remoteName, remoteURL, workingDirectory)
	case remoteSubcommand == gitRemoteSetURLSubcommandNameConstant && stage == messageStageSuccess:
		return fmt.Sprintf(gitRemoteSetURLSuccessTemplateConstant, remoteName, remoteURL, workingDirectory)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitRemoteStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitRemoteSuccessTemplateConstant, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitRemoteFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitRemoteExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	}
}

// describeStage renders one of four templates; subjects fill the leading verbs of every template.
func (formatter CommandMessageFormatter) describeStage(stage messageStage, result ExecutionResult, failure error, templates [4]string, subjects ...string) string {
	values := make([]any, 0, len(subjects)+2)
	for _, subject := range subjects {
		values = append(values, formatter.ensureValue(subject))
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates[0], values...)
	case messageStageSuccess:
		return fmt.Sprintf(templates[1], values...)
	case messageStageFailure:
		values = append(values, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		return fmt.Sprintf(templates[2], values...)
	default:
		values = append(values, formatter.describeFailure(failure))
		return fmt.Sprintf(templates[3], values...)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

// stripConfigurationOverrides drops leading "-c key=value" pairs so the subcommand is first.
func (formatter CommandMessageFormatter) stripConfigurationOverrides(arguments []string) []string {
	remaining := arguments
	for len(remaining) >= gitConfigurationOverrideArgumentCountConstant && strings.TrimSpace(remaining[0]) == gitConfigurationOverrideFlagConstant {
		remaining = remaining[gitConfigurationOverrideArgumentCountConstant:]
	}
	return remaining
}

func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		positional = append(positional, trimmed)
	}
	return positional
}

func (formatter CommandMessageFormatter) lastValue(values []string) string {
	if len(values) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return values[len(values)-1]
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}
