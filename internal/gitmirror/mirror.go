package gitmirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/execshell"
)

const (
	gitCloneSubcommandConstant                = "clone"
	gitMirrorFlagConstant                     = "--mirror"
	gitNoCheckoutShortFlagConstant            = "-n"
	gitNoCheckoutFlagConstant                 = "--no-checkout"
	gitNoHardlinksFlagConstant                = "--no-hardlinks"
	gitFetchSubcommandConstant                = "fetch"
	gitPruneFlagConstant                      = "--prune"
	gitTagsFlagConstant                       = "--tags"
	gitForceFlagConstant                      = "--force"
	gitRemoteSubcommandConstant               = "remote"
	gitRemoteAddSubcommandConstant            = "add"
	gitRemoteSetURLSubcommandConstant         = "set-url"
	gitCatFileSubcommandConstant              = "cat-file"
	gitCatFileTypeFlagConstant                = "-t"
	gitCheckoutSubcommandConstant             = "checkout"
	defaultRemoteNameConstant                 = "origin"
	mirrorDirectoryPermissionsConstant        = 0o755
	temporaryClonePatternTemplateConstant     = ".tmp-%s-"
	gitLFSSkipSmudgeVariableConstant          = "GIT_LFS_SKIP_SMUDGE"
	gitLFSSkipSmudgeEnabledConstant           = "1"
	cloneFailureTemplateConstant              = "Failed to clone git repository %s"
	moveFailureTemplateConstant               = "Failed to move cloned git repository %s from '%s' to '%s'"
	discardDuplicateTemplateConstant          = "Discarding duplicate clone of %s"
	temporaryDirectoryFailureTemplateConstant = "Failed to create a temporary directory for %s"
	mirrorAccessFailureTemplateConstant       = "Failed to access git mirror '%s'"
	listRemotesFailureTemplateConstant        = "Failed to retrieve list of remotes in %s"
	addRemoteFailureTemplateConstant          = "Failed to add remote %s with url %s"
	fetchFailureTemplateConstant              = "Failed to fetch from remote git repository: %s"
	missingRefTemplateConstant                = "expected ref '%s' was not found in git repository: '%s'"
	stageCloneFailureTemplateConstant         = "Failed to create git mirror %s in directory: %s"
	workspaceCloneFailureTemplateConstant     = "Failed to clone git mirror %s in directory: %s"
	setRemoteFailureTemplateConstant          = "Failed to add remote origin \"%s\""
	checkoutFailureTemplateConstant           = "Failed to checkout git ref %s"
	stagePathFailureTemplateConstant          = "Failed to resolve staging path %s in %s"
	logFieldURLConstant                       = "url"
	logFieldMirrorConstant                    = "mirror"
	logFieldRefConstant                       = "ref"
	logFieldRemoteConstant                    = "remote"
	logFieldDirectoryConstant                 = "directory"
	logFieldPrimaryConstant                   = "primary"
	mirrorEnsuredMessageConstant              = "git mirror ensured"
	mirrorFetchedMessageConstant              = "git mirror fetched"
	mirrorStagedMessageConstant               = "git mirror staged"
)

// LFSMode records whether a source opted in or out of git LFS, or left it unset.
type LFSMode int

// Supported LFS modes.
const (
	LFSUnset LFSMode = iota
	LFSEnabled
	LFSDisabled
)

// MirrorOptions configures a Mirror.
type MirrorOptions struct {
	// Root is the directory holding every mirror; the mirror lives in Root/URLDirectoryName(URL).
	Root    string
	Path    string
	URL     string
	Ref     string
	Primary bool
	LFS     LFSMode
}

// Mirror owns one local bare clone of a remote repository: the primary source or one submodule.
type Mirror struct {
	Path    string
	URL     string
	Ref     string
	Primary bool
	LFS     LFSMode

	directory    string
	dependencies Dependencies
}

// NewMirror constructs a Mirror and marks its URL as a download URL.
func NewMirror(dependencies Dependencies, options MirrorOptions) (*Mirror, error) {
	if validationError := dependencies.validate(); validationError != nil {
		return nil, validationError
	}
	if markError := dependencies.URLTranslator.MarkDownloadURL(options.URL, options.Primary); markError != nil {
		return nil, markError
	}
	return &Mirror{
		Path:         options.Path,
		URL:          options.URL,
		Ref:          options.Ref,
		Primary:      options.Primary,
		LFS:          options.LFS,
		directory:    filepath.Join(options.Root, URLDirectoryName(options.URL)),
		dependencies: dependencies,
	}, nil
}

// Directory returns the on-disk location of the bare mirror.
func (mirror *Mirror) Directory() string {
	return mirror.directory
}

// RemoteURL returns the URL the mirror downloads from, before alias translation.
func (mirror *Mirror) RemoteURL() string {
	return mirror.URL
}

// Exists reports whether the mirror directory is present.
func (mirror *Mirror) Exists() (bool, error) {
	_, statError := mirror.dependencies.FileSystem.Stat(mirror.directory)
	switch {
	case statError == nil:
		return true, nil
	case errors.Is(statError, fs.ErrNotExist):
		return false, nil
	default:
		return false, newFatalError(ReasonMirrorInaccessible, statError, mirrorAccessFailureTemplateConstant, mirror.directory)
	}
}

// Ensure clones the mirror when it does not exist yet.
// The clone lands in a sibling temporary directory and is renamed into place; losing the rename to
// another process is not an error.
func (mirror *Mirror) Ensure(executionContext context.Context, aliasOverride string) error {
	exists, existsError := mirror.Exists()
	if existsError != nil {
		return existsError
	}
	if exists {
		return nil
	}

	url, translateError := mirror.dependencies.URLTranslator.TranslateURL(mirror.URL, aliasOverride)
	if translateError != nil {
		return translateError
	}

	fileSystem := mirror.dependencies.FileSystem
	parentDirectory := filepath.Dir(mirror.directory)
	if mkdirError := fileSystem.MkdirAll(parentDirectory, mirrorDirectoryPermissionsConstant); mkdirError != nil {
		return newFatalError(ReasonMirrorInaccessible, mkdirError, mirrorAccessFailureTemplateConstant, parentDirectory)
	}

	temporaryDirectory, temporaryError := fileSystem.MkdirTemp(parentDirectory, fmt.Sprintf(temporaryClonePatternTemplateConstant, filepath.Base(mirror.directory)))
	if temporaryError != nil {
		return newFatalError(ReasonMirrorInaccessible, temporaryError, temporaryDirectoryFailureTemplateConstant, url)
	}
	defer func() {
		_ = fileSystem.RemoveAll(temporaryDirectory)
	}()

	if _, cloneError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, gitMirrorFlagConstant, gitNoCheckoutShortFlagConstant, url, temporaryDirectory},
	}); cloneError != nil {
		return newTemporaryError(ReasonCloneFailed, cloneError, cloneFailureTemplateConstant, url)
	}

	if renameError := fileSystem.Rename(temporaryDirectory, mirror.directory); renameError != nil {
		if isDestinationOccupied(renameError) {
			mirror.dependencies.Reporter.Status(fmt.Sprintf(discardDuplicateTemplateConstant, url))
			return nil
		}
		return newFatalError(ReasonMoveFailed, renameError, moveFailureTemplateConstant, url, temporaryDirectory, mirror.directory)
	}

	mirror.dependencies.logger().Debug(
		mirrorEnsuredMessageConstant,
		zap.String(logFieldURLConstant, url),
		zap.String(logFieldMirrorConstant, mirror.directory),
		zap.Bool(logFieldPrimaryConstant, mirror.Primary),
	)
	return nil
}

// Fetch ensures the mirror and, unless the pinned ref is already present, fetches from the remote.
// The pinned ref must be present afterwards.
func (mirror *Mirror) Fetch(executionContext context.Context, aliasOverride string) error {
	if ensureError := mirror.Ensure(executionContext, aliasOverride); ensureError != nil {
		return ensureError
	}

	hasRef, hasRefError := mirror.HasRef(executionContext)
	if hasRefError != nil {
		return hasRefError
	}
	if !hasRef {
		if fetchError := mirror.FetchRemote(executionContext, aliasOverride); fetchError != nil {
			return fetchError
		}
	}

	if assertError := mirror.AssertRef(executionContext); assertError != nil {
		return assertError
	}

	return mirror.fetchLFS(executionContext, aliasOverride)
}

// FetchRemote fetches every ref and tag from the remote, pruning deleted refs.
// With an alias override the fetch goes through a remote named after the override, added on demand.
func (mirror *Mirror) FetchRemote(executionContext context.Context, aliasOverride string) error {
	url, translateError := mirror.dependencies.URLTranslator.TranslateURL(mirror.URL, aliasOverride)
	if translateError != nil {
		return translateError
	}

	remoteName, remoteError := mirror.ensureRemote(executionContext, aliasOverride, url)
	if remoteError != nil {
		return remoteError
	}

	if _, fetchError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitFetchSubcommandConstant, remoteName, gitPruneFlagConstant, gitTagsFlagConstant, gitForceFlagConstant},
		WorkingDirectory: mirror.directory,
	}); fetchError != nil {
		return newTemporaryError(ReasonFetchFailed, fetchError, fetchFailureTemplateConstant, url)
	}

	mirror.dependencies.logger().Debug(
		mirrorFetchedMessageConstant,
		zap.String(logFieldURLConstant, url),
		zap.String(logFieldRemoteConstant, remoteName),
		zap.String(logFieldMirrorConstant, mirror.directory),
	)
	return nil
}

func (mirror *Mirror) ensureRemote(executionContext context.Context, aliasOverride string, url string) (string, error) {
	if len(aliasOverride) == 0 {
		return defaultRemoteNameConstant, nil
	}

	remoteName := URLDirectoryName(aliasOverride)
	listResult, listError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant},
		WorkingDirectory: mirror.directory,
	})
	if listError != nil {
		return "", newFatalError(ReasonRemoteFailed, listError, listRemotesFailureTemplateConstant, mirror.directory)
	}

	for _, existingRemote := range strings.Fields(listResult.StandardOutput) {
		if existingRemote == remoteName {
			return remoteName, nil
		}
	}

	if _, addError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitRemoteAddSubcommandConstant, remoteName, url},
		WorkingDirectory: mirror.directory,
	}); addError != nil {
		return "", newFatalError(ReasonRemoteFailed, addError, addRemoteFailureTemplateConstant, remoteName, url)
	}
	return remoteName, nil
}

// HasRef reports whether the pinned ref exists in the local mirror's object store.
func (mirror *Mirror) HasRef(executionContext context.Context) (bool, error) {
	if len(mirror.Ref) == 0 {
		return false, nil
	}

	exists, existsError := mirror.Exists()
	if existsError != nil || !exists {
		return false, existsError
	}

	_, typeError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCatFileSubcommandConstant, gitCatFileTypeFlagConstant, mirror.Ref},
		WorkingDirectory: mirror.directory,
	})
	if typeError == nil {
		return true, nil
	}
	if _, exited := execshell.ExitCodeOf(typeError); exited {
		return false, nil
	}
	return false, typeError
}

// AssertRef fails when the pinned ref is missing from the mirror.
func (mirror *Mirror) AssertRef(executionContext context.Context) error {
	hasRef, hasRefError := mirror.HasRef(executionContext)
	if hasRefError != nil {
		return hasRefError
	}
	if !hasRef {
		return newFatalError(ReasonRefNotFound, nil, missingRefTemplateConstant, mirror.Ref, mirror.URL)
	}
	return nil
}

// Stage clones the mirror into directory/Path without hardlinks and checks out the pinned ref.
func (mirror *Mirror) Stage(executionContext context.Context, directory string) error {
	fullPath, joinError := mirror.stagingPath(directory)
	if joinError != nil {
		return joinError
	}

	if _, cloneError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, gitNoCheckoutFlagConstant, gitNoHardlinksFlagConstant, mirror.directory, fullPath},
	}); cloneError != nil {
		return newTemporaryError(ReasonStageFailed, cloneError, stageCloneFailureTemplateConstant, mirror.directory, fullPath)
	}

	if checkoutError := mirror.checkout(executionContext, fullPath); checkoutError != nil {
		return checkoutError
	}

	mirror.dependencies.logger().Debug(
		mirrorStagedMessageConstant,
		zap.String(logFieldMirrorConstant, mirror.directory),
		zap.String(logFieldDirectoryConstant, fullPath),
		zap.String(logFieldRefConstant, mirror.Ref),
	)
	return nil
}

// InitWorkspace clones the mirror into directory/Path as a developer workspace whose origin is the real remote.
func (mirror *Mirror) InitWorkspace(executionContext context.Context, directory string) error {
	fullPath, joinError := mirror.stagingPath(directory)
	if joinError != nil {
		return joinError
	}

	url, translateError := mirror.dependencies.URLTranslator.TranslateURL(mirror.URL, "")
	if translateError != nil {
		return translateError
	}

	if _, cloneError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, gitNoCheckoutFlagConstant, mirror.directory, fullPath},
	}); cloneError != nil {
		return newTemporaryError(ReasonStageFailed, cloneError, workspaceCloneFailureTemplateConstant, mirror.directory, fullPath)
	}

	if _, remoteError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitRemoteSetURLSubcommandConstant, defaultRemoteNameConstant, url},
		WorkingDirectory: fullPath,
	}); remoteError != nil {
		return newFatalError(ReasonRemoteFailed, remoteError, setRemoteFailureTemplateConstant, url)
	}

	return mirror.checkout(executionContext, fullPath)
}

func (mirror *Mirror) checkout(executionContext context.Context, fullPath string) error {
	if _, checkoutError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitCheckoutSubcommandConstant, gitForceFlagConstant, mirror.Ref},
		WorkingDirectory:     fullPath,
		EnvironmentVariables: map[string]string{gitLFSSkipSmudgeVariableConstant: gitLFSSkipSmudgeEnabledConstant},
	}); checkoutError != nil {
		return newFatalError(ReasonCheckoutFailed, checkoutError, checkoutFailureTemplateConstant, mirror.Ref)
	}
	return mirror.checkoutLFS(executionContext, fullPath)
}

// stagingPath joins Path onto directory without letting a hostile .gitmodules path escape it.
func (mirror *Mirror) stagingPath(directory string) (string, error) {
	fullPath, joinError := securejoin.SecureJoin(directory, mirror.Path)
	if joinError != nil {
		return "", newFatalError(ReasonStageFailed, joinError, stagePathFailureTemplateConstant, mirror.Path, directory)
	}
	return fullPath, nil
}

func isDestinationOccupied(renameError error) bool {
	return errors.Is(renameError, syscall.ENOTEMPTY) || errors.Is(renameError, syscall.EEXIST) || errors.Is(renameError, fs.ErrExist)
}
