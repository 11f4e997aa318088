package source_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/execshell"
	"github.com/temirov/tagmirror/internal/filesystem"
	"github.com/temirov/tagmirror/internal/gitmirror"
	"github.com/temirov/tagmirror/internal/project"
	"github.com/temirov/tagmirror/internal/source"
)

func runGit(testInstance *testing.T, directory string, arguments ...string) string {
	testInstance.Helper()
	gitArguments := append([]string{"-c", "user.name=tagmirror", "-c", "user.email=tagmirror@example.com", "-c", "commit.gpgsign=false", "-c", "tag.gpgsign=false"}, arguments...)
	command := exec.Command("git", gitArguments...)
	command.Dir = directory
	output, runError := command.CombinedOutput()
	require.NoError(testInstance, runError, string(output))
	return strings.TrimSpace(string(output))
}

func commitFile(testInstance *testing.T, directory string, name string, content string, message string) string {
	testInstance.Helper()
	require.NoError(testInstance, os.WriteFile(filepath.Join(directory, name), []byte(content), 0o644))
	runGit(testInstance, directory, "add", name)
	runGit(testInstance, directory, "commit", "-q", "-m", message)
	return runGit(testInstance, directory, "rev-parse", "HEAD")
}

func TestSourceLifecycleAgainstRealGit(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("git"); lookupError != nil {
		testInstance.Skip("git is not installed")
	}
	testInstance.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	testInstance.Setenv("HOME", testInstance.TempDir())

	workingDirectory := testInstance.TempDir()
	upstreamDirectory := filepath.Join(workingDirectory, "upstream")
	require.NoError(testInstance, os.MkdirAll(upstreamDirectory, 0o755))
	runGit(testInstance, upstreamDirectory, "init", "-q")
	runGit(testInstance, upstreamDirectory, "symbolic-ref", "HEAD", "refs/heads/main")
	commitFile(testInstance, upstreamDirectory, "VERSION", "1.0\n", "first release")
	runGit(testInstance, upstreamDirectory, "tag", "-a", "-m", "release 1.0", "v1.0")
	releasedCommit := commitFile(testInstance, upstreamDirectory, "VERSION", "1.1\n", "second release")
	runGit(testInstance, upstreamDirectory, "tag", "-a", "-m", "release 1.1", "v1.1")
	commitFile(testInstance, upstreamDirectory, "VERSION", "1.2-dev\n", "development")
	runGit(testInstance, upstreamDirectory, "tag", "nightly")

	logger := zap.NewNop()
	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	require.NoError(testInstance, executorError)
	translator := project.NewURLTranslator(project.Configuration{Aliases: map[string]string{"local": "file://" + workingDirectory + "/"}}, nil)
	reporter := &recordingReporter{}

	configured, sourceError := source.NewSource(source.Dependencies{
		Mirror: gitmirror.Dependencies{
			GitExecutor:   shellExecutor,
			FileSystem:    filesystem.OSFileSystem{},
			URLTranslator: translator,
			Reporter:      reporter,
			Logger:        logger,
		},
		MirrorRoot: filepath.Join(workingDirectory, "cache", "sources", "git"),
	})
	require.NoError(testInstance, sourceError)
	require.NoError(testInstance, configured.Configure(map[string]any{
		"url":        "local:upstream",
		"track":      "main",
		"track-tags": true,
		"match":      []any{"v*"},
	}))
	require.NoError(testInstance, configured.Preflight())

	executionContext := context.Background()
	ref, trackError := configured.Track(executionContext)
	require.NoError(testInstance, trackError)
	require.Equal(testInstance, "v1.1-0-g"+releasedCommit, ref)
	require.NoError(testInstance, configured.SetRef(ref, nil))

	consistency, consistencyError := configured.Consistency(executionContext)
	require.NoError(testInstance, consistencyError)
	require.Equal(testInstance, source.ConsistencyCached, consistency)

	require.NoError(testInstance, configured.Fetch(executionContext, ""))

	stageDirectory := filepath.Join(workingDirectory, "stage")
	require.NoError(testInstance, configured.Stage(executionContext, stageDirectory))
	stagedVersion, readError := os.ReadFile(filepath.Join(stageDirectory, "VERSION"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "1.1\n", string(stagedVersion))
	require.Empty(testInstance, reporter.warnings)
}
