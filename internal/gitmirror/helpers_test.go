package gitmirror_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/tagmirror/internal/execshell"
	"github.com/temirov/tagmirror/internal/gitmirror"
)

const (
	testMirrorRootConstant      = "/cache/sources/git"
	testRemoteURLConstant       = "upstream:foo.git"
	testTranslatedURLConstant   = "https://example.com/foo.git"
	testCommitConstant          = "0123456789abcdef0123456789abcdef01234567"
	testSecondCommitConstant    = "89abcdef0123456789abcdef0123456789abcdef"
	testGitNoObjectExitConstant = 128
)

type scriptedResponse struct {
	output   string
	exitCode int
	err      error
}

// scriptedGitExecutor answers git invocations keyed by their space-joined arguments.
// Queued responses are consumed in order; the last one repeats.
type scriptedGitExecutor struct {
	mutex     sync.Mutex
	responses map[string][]scriptedResponse
	onCall    func(details execshell.CommandDetails)
	recorded  []execshell.CommandDetails
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
	executor.mutex.Lock()
	executor.recorded = append(executor.recorded, details)
	key := strings.Join(details.Arguments, " ")
	queued := executor.responses[key]
	found := len(queued) > 0
	var response scriptedResponse
	if found {
		response = queued[0]
		if len(queued) > 1 {
			executor.responses[key] = queued[1:]
		}
	}
	onCall := executor.onCall
	executor.mutex.Unlock()

	if onCall != nil {
		onCall(details)
	}
	if !found {
		return execshell.ExecutionResult{}, nil
	}
	if response.err != nil {
		return execshell.ExecutionResult{}, response.err
	}
	if response.exitCode != 0 {
		result := execshell.ExecutionResult{StandardError: "fatal", ExitCode: response.exitCode}
		return execshell.ExecutionResult{}, execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details},
			Result:  result,
		}
	}
	return execshell.ExecutionResult{StandardOutput: response.output}, nil
}

func (executor *scriptedGitExecutor) commandLines() []string {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	lines := make([]string, 0, len(executor.recorded))
	for _, details := range executor.recorded {
		lines = append(lines, strings.Join(details.Arguments, " "))
	}
	return lines
}

type fakeFileInfo struct {
	name string
}

func (info fakeFileInfo) Name() string       { return info.name }
func (info fakeFileInfo) Size() int64        { return 0 }
func (info fakeFileInfo) Mode() fs.FileMode  { return fs.ModeDir }
func (info fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (info fakeFileInfo) IsDir() bool        { return true }
func (info fakeFileInfo) Sys() any           { return nil }

// fakeFileSystem tracks directories in memory.
type fakeFileSystem struct {
	directories map[string]bool
	renameError error
	statError   error
	removed     []string
	temporary   int
}

func newFakeFileSystem(existing ...string) *fakeFileSystem {
	fileSystem := &fakeFileSystem{directories: map[string]bool{}}
	for _, directory := range existing {
		fileSystem.directories[directory] = true
	}
	return fileSystem
}

func (fileSystem *fakeFileSystem) Stat(path string) (fs.FileInfo, error) {
	if fileSystem.statError != nil {
		return nil, fileSystem.statError
	}
	if fileSystem.directories[path] {
		return fakeFileInfo{name: filepath.Base(path)}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

func (fileSystem *fakeFileSystem) Rename(oldPath string, newPath string) error {
	if fileSystem.renameError != nil {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: fileSystem.renameError}
	}
	delete(fileSystem.directories, oldPath)
	fileSystem.directories[newPath] = true
	return nil
}

func (fileSystem *fakeFileSystem) MkdirAll(path string, _ fs.FileMode) error {
	fileSystem.directories[path] = true
	return nil
}

func (fileSystem *fakeFileSystem) MkdirTemp(directory string, pattern string) (string, error) {
	fileSystem.temporary++
	path := filepath.Join(directory, pattern+strings.Repeat("x", fileSystem.temporary))
	fileSystem.directories[path] = true
	return path, nil
}

func (fileSystem *fakeFileSystem) RemoveAll(path string) error {
	fileSystem.removed = append(fileSystem.removed, path)
	delete(fileSystem.directories, path)
	return nil
}

type markedURL struct {
	url     string
	primary bool
}

type stubURLTranslator struct {
	translations map[string]string
	marked       []markedURL
	markError    error
}

func (translator *stubURLTranslator) TranslateURL(url string, aliasOverride string) (string, error) {
	if len(aliasOverride) > 0 {
		return aliasOverride + strings.SplitN(url, ":", 2)[1], nil
	}
	if translated, found := translator.translations[url]; found {
		return translated, nil
	}
	return url, nil
}

func (translator *stubURLTranslator) MarkDownloadURL(url string, primary bool) error {
	translator.marked = append(translator.marked, markedURL{url: url, primary: primary})
	return translator.markError
}

type recordedWarning struct {
	token   gitmirror.WarningToken
	message string
}

type recordingReporter struct {
	statuses    []string
	infos       []string
	warnings    []recordedWarning
	fatalTokens map[gitmirror.WarningToken]bool
}

func (reporter *recordingReporter) Status(message string) {
	reporter.statuses = append(reporter.statuses, message)
}

func (reporter *recordingReporter) Info(message string) {
	reporter.infos = append(reporter.infos, message)
}

func (reporter *recordingReporter) Warn(token gitmirror.WarningToken, message string, _ string) error {
	reporter.warnings = append(reporter.warnings, recordedWarning{token: token, message: message})
	if reporter.fatalTokens[token] {
		return errors.New(message)
	}
	return nil
}

type mirrorFixture struct {
	executor   *scriptedGitExecutor
	fileSystem *fakeFileSystem
	translator *stubURLTranslator
	reporter   *recordingReporter
}

func newMirrorFixture() *mirrorFixture {
	return &mirrorFixture{
		executor:   newScriptedGitExecutor(),
		fileSystem: newFakeFileSystem(),
		translator: &stubURLTranslator{translations: map[string]string{testRemoteURLConstant: testTranslatedURLConstant}},
		reporter:   &recordingReporter{},
	}
}

func (fixture *mirrorFixture) dependencies() gitmirror.Dependencies {
	return gitmirror.Dependencies{
		GitExecutor:   fixture.executor,
		FileSystem:    fixture.fileSystem,
		URLTranslator: fixture.translator,
		Reporter:      fixture.reporter,
	}
}

func (fixture *mirrorFixture) newMirror(testInstance *testing.T, options gitmirror.MirrorOptions) *gitmirror.Mirror {
	testInstance.Helper()
	if len(options.Root) == 0 {
		options.Root = testMirrorRootConstant
	}
	if len(options.URL) == 0 {
		options.URL = testRemoteURLConstant
	}
	mirror, mirrorError := gitmirror.NewMirror(fixture.dependencies(), options)
	require.NoError(testInstance, mirrorError)
	return mirror
}
