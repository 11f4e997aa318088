package gitmirror

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/execshell"
)

const (
	gitExecutorMissingMessageConstant   = "git executor not configured"
	fileSystemMissingMessageConstant    = "filesystem not configured"
	urlTranslatorMissingMessageConstant = "url translator not configured"
	reporterMissingMessageConstant      = "reporter not configured"
)

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// ErrFileSystemNotConfigured indicates the filesystem dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrURLTranslatorNotConfigured indicates the URL translator dependency was missing.
var ErrURLTranslatorNotConfigured = errors.New(urlTranslatorMissingMessageConstant)

// ErrReporterNotConfigured indicates the reporter dependency was missing.
var ErrReporterNotConfigured = errors.New(reporterMissingMessageConstant)

// WarningToken names a class of warning so the host can promote it to an error.
type WarningToken string

// Warning tokens raised by mirrors.
const (
	WarningInconsistentSubmodule WarningToken = "inconsistent-submodule"
	WarningUnusedLFS             WarningToken = "unused-lfs"
)

// GitExecutor runs git.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// FileSystem exposes the filesystem operations mirrors need.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Rename(oldPath string, newPath string) error
	MkdirAll(path string, permissions fs.FileMode) error
	MkdirTemp(directory string, pattern string) (string, error)
	RemoveAll(path string) error
}

// URLTranslator expands source aliases and records download URLs.
type URLTranslator interface {
	// TranslateURL expands an aliased URL; a non-empty aliasOverride replaces the alias value.
	TranslateURL(url string, aliasOverride string) (string, error)
	// MarkDownloadURL registers url as one this source downloads from.
	MarkDownloadURL(url string, primary bool) error
}

// Reporter delivers user-facing status, informational and warning messages.
type Reporter interface {
	Status(message string)
	Info(message string)
	// Warn reports a warning; it returns an error when the host treats token as fatal.
	Warn(token WarningToken, message string, detail string) error
}

// Dependencies enumerates the collaborators shared by every mirror of a source.
type Dependencies struct {
	GitExecutor   GitExecutor
	FileSystem    FileSystem
	URLTranslator URLTranslator
	Reporter      Reporter
	Logger        *zap.Logger
}

func (dependencies Dependencies) validate() error {
	if dependencies.GitExecutor == nil {
		return ErrGitExecutorNotConfigured
	}
	if dependencies.FileSystem == nil {
		return ErrFileSystemNotConfigured
	}
	if dependencies.URLTranslator == nil {
		return ErrURLTranslatorNotConfigured
	}
	if dependencies.Reporter == nil {
		return ErrReporterNotConfigured
	}
	return nil
}

func (dependencies Dependencies) logger() *zap.Logger {
	if dependencies.Logger == nil {
		return zap.NewNop()
	}
	return dependencies.Logger
}
