package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const (
	environmentSeparatorConstant = "="
	// git spawns helpers (remote-https, lfs) that may keep the output pipes open after git exits.
	pipeWaitDelayConstant = 5 * time.Second
)

// OSCommandRunner executes commands as child processes of the current one.
type OSCommandRunner struct {
	environment func() []string
}

// NewOSCommandRunner constructs a runner that inherits the process environment.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{environment: os.Environ}
}

// Run executes the command and captures its output. A non-zero exit is not an error here;
// a cancelled context is, even when the process left an exit code.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	executable.Dir = command.Details.WorkingDirectory
	executable.WaitDelay = pipeWaitDelayConstant
	if len(command.Details.EnvironmentVariables) > 0 {
		executable.Env = runner.mergeEnvironment(command.Details.EnvironmentVariables)
	}
	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutput, standardError bytes.Buffer
	executable.Stdout = &standardOutput
	executable.Stderr = &standardError

	runError := executable.Run()
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	var exitError *exec.ExitError
	switch {
	case runError == nil:
		return result, nil
	case errors.As(runError, &exitError):
		result.ExitCode = exitError.ExitCode()
		return result, nil
	default:
		return ExecutionResult{}, runError
	}
}

// mergeEnvironment replaces inherited variables that the command overrides, so git never sees
// two assignments of the same name.
func (runner *OSCommandRunner) mergeEnvironment(overrides map[string]string) []string {
	inherited := os.Environ
	if runner.environment != nil {
		inherited = runner.environment
	}

	merged := make([]string, 0, len(overrides))
	for _, assignment := range inherited() {
		name, _, _ := strings.Cut(assignment, environmentSeparatorConstant)
		if _, overridden := overrides[name]; !overridden {
			merged = append(merged, assignment)
		}
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		merged = append(merged, name+environmentSeparatorConstant+overrides[name])
	}
	return merged
}
