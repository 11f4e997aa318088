package source_test

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/tagmirror/internal/execshell"
	"github.com/temirov/tagmirror/internal/gitmirror"
	"github.com/temirov/tagmirror/internal/project"
	"github.com/temirov/tagmirror/internal/source"
)

const (
	testMirrorRootConstant      = "/cache/sources/git"
	testSourceURLConstant       = "upstream:foo.git"
	testPrimaryMirrorConstant   = testMirrorRootConstant + "/upstream_foo_git"
	testPinnedCommitConstant    = "0123456789abcdef0123456789abcdef01234567"
	testLibraryCommitConstant   = "1111111111111111111111111111111111111111"
	testDocsCommitConstant      = "2222222222222222222222222222222222222222"
	testUpstreamBaseURLConstant = "https://example.com/"
	testGitNoObjectExitConstant = 128
)

// scriptedGitExecutor answers git invocations keyed by their space-joined arguments; unscripted calls succeed silently.
type scriptedGitExecutor struct {
	responses map[string][]scriptedResponse
	recorded  []execshell.CommandDetails
}

type scriptedResponse struct {
	output   string
	exitCode int
}

func newScriptedGitExecutor() *scriptedGitExecutor {
	return &scriptedGitExecutor{responses: map[string][]scriptedResponse{}}
}

func (executor *scriptedGitExecutor) respond(arguments string, output string) {
	executor.responses[arguments] = append(executor.responses[arguments], scriptedResponse{output: output})
}

func (executor *scriptedGitExecutor) fail(arguments string, exitCode int) {
	executor.responses[arguments] = append(executor.responses[arguments], scriptedResponse{exitCode: exitCode})
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recorded = append(executor.recorded, details)
	key := strings.Join(details.Arguments, " ")
	queued := executor.responses[key]
	if len(queued) == 0 {
		return execshell.ExecutionResult{}, nil
	}
	response := queued[0]
	if len(queued) > 1 {
		executor.responses[key] = queued[1:]
	}
	if response.exitCode != 0 {
		return execshell.ExecutionResult{}, execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details},
			Result:  execshell.ExecutionResult{ExitCode: response.exitCode},
		}
	}
	return execshell.ExecutionResult{StandardOutput: response.output}, nil
}

func (executor *scriptedGitExecutor) commandLines() []string {
	lines := make([]string, 0, len(executor.recorded))
	for _, details := range executor.recorded {
		lines = append(lines, strings.Join(details.Arguments, " "))
	}
	return lines
}

type memoryFileInfo struct {
	name      string
	directory bool
}

func (info memoryFileInfo) Name() string { return info.name }
func (info memoryFileInfo) Size() int64  { return 0 }
func (info memoryFileInfo) Mode() fs.FileMode {
	if info.directory {
		return fs.ModeDir | 0o755
	}
	return 0o600
}
func (info memoryFileInfo) ModTime() time.Time { return time.Time{} }
func (info memoryFileInfo) IsDir() bool        { return info.directory }
func (info memoryFileInfo) Sys() any           { return nil }

// memoryFileSystem keeps directories and files in memory.
type memoryFileSystem struct {
	directories map[string]bool
	files       map[string][]byte
	permissions map[string]fs.FileMode
	temporary   int
}

func newMemoryFileSystem(directories ...string) *memoryFileSystem {
	fileSystem := &memoryFileSystem{directories: map[string]bool{}, files: map[string][]byte{}, permissions: map[string]fs.FileMode{}}
	for _, directory := range directories {
		fileSystem.directories[directory] = true
	}
	return fileSystem
}

func (fileSystem *memoryFileSystem) Stat(path string) (fs.FileInfo, error) {
	if fileSystem.directories[path] {
		return memoryFileInfo{name: filepath.Base(path), directory: true}, nil
	}
	if _, found := fileSystem.files[path]; found {
		return memoryFileInfo{name: filepath.Base(path)}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

func (fileSystem *memoryFileSystem) Rename(oldPath string, newPath string) error {
	delete(fileSystem.directories, oldPath)
	fileSystem.directories[newPath] = true
	return nil
}

func (fileSystem *memoryFileSystem) MkdirAll(path string, _ fs.FileMode) error {
	fileSystem.directories[path] = true
	return nil
}

func (fileSystem *memoryFileSystem) MkdirTemp(directory string, pattern string) (string, error) {
	fileSystem.temporary++
	path := filepath.Join(directory, pattern+strings.Repeat("x", fileSystem.temporary))
	fileSystem.directories[path] = true
	return path, nil
}

func (fileSystem *memoryFileSystem) RemoveAll(path string) error {
	delete(fileSystem.directories, path)
	return nil
}

func (fileSystem *memoryFileSystem) ReadFile(path string) ([]byte, error) {
	content, found := fileSystem.files[path]
	if !found {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return content, nil
}

func (fileSystem *memoryFileSystem) WriteFileAtomically(path string, data []byte, permissions fs.FileMode) error {
	fileSystem.files[path] = append([]byte(nil), data...)
	fileSystem.permissions[path] = permissions
	return nil
}

type recordingReporter struct {
	statuses []string
	infos    []string
	warnings []gitmirror.WarningToken
}

func (reporter *recordingReporter) Status(message string) {
	reporter.statuses = append(reporter.statuses, message)
}

func (reporter *recordingReporter) Info(message string) {
	reporter.infos = append(reporter.infos, message)
}

func (reporter *recordingReporter) Warn(token gitmirror.WarningToken, _ string, _ string) error {
	reporter.warnings = append(reporter.warnings, token)
	return nil
}

type sourceFixture struct {
	executor   *scriptedGitExecutor
	fileSystem *memoryFileSystem
	translator *project.URLTranslator
	reporter   *recordingReporter
}

func newSourceFixture() *sourceFixture {
	configuration := project.Configuration{Aliases: map[string]string{"upstream": testUpstreamBaseURLConstant}}
	return &sourceFixture{
		executor:   newScriptedGitExecutor(),
		fileSystem: newMemoryFileSystem(),
		translator: project.NewURLTranslator(configuration, nil),
		reporter:   &recordingReporter{},
	}
}

func (fixture *sourceFixture) newSource(testInstance *testing.T, node map[string]any) *source.Source {
	testInstance.Helper()
	configured, sourceError := source.NewSource(source.Dependencies{
		Mirror: gitmirror.Dependencies{
			GitExecutor:   fixture.executor,
			FileSystem:    fixture.fileSystem,
			URLTranslator: fixture.translator,
			Reporter:      fixture.reporter,
		},
		MirrorRoot:  testMirrorRootConstant,
		ToolLocator: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	})
	require.NoError(testInstance, sourceError)
	require.NoError(testInstance, configured.Configure(node))
	return configured
}
