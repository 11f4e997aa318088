package gitmirror

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/temirov/tagmirror/internal/execshell"
)

const (
	gitAttributesFileNameConstant         = ".gitattributes"
	gitLFSSubcommandConstant              = "lfs"
	gitLFSFetchActionConstant             = "fetch"
	gitLFSCheckoutActionConstant          = "checkout"
	gitConfigurationFlagConstant          = "-c"
	gitLFSStorageSettingTemplateConstant  = "lfs.storage=%s"
	gitLFSStorageDirectoryNameConstant    = "lfs"
	gitLFSFilterAttributeConstant         = "filter=lfs"
	gitAttributesCommentPrefixConstant    = "#"
	showAttributesFailureTemplateConstant = "Failed to show gitattributes at ref %s"
	lfsFetchFailureTemplateConstant       = "Failed to fetch git LFS objects for %s"
	lfsCheckoutFailureTemplateConstant    = "Failed to check out git LFS objects for %s"
	unusedLFSTemplateConstant             = "Repository %s declares git LFS content but use-lfs is not set"
	unusedLFSDetailConstant               = "Set use-lfs to true to stage LFS objects, or to false to stage the pointer files and silence this warning."
)

// LFSAttributesPresent reports whether .gitattributes at the pinned ref routes any path through the LFS filter.
func (mirror *Mirror) LFSAttributesPresent(executionContext context.Context) (bool, error) {
	if len(mirror.Ref) == 0 {
		return false, nil
	}

	showResult, showError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitShowSubcommandConstant, fmt.Sprintf(gitObjectPathTemplateConstant, mirror.Ref, gitAttributesFileNameConstant)},
		WorkingDirectory: mirror.directory,
	})
	if showError != nil {
		if isExitCode(showError, gitMissingObjectExitCodeConstant) {
			return false, nil
		}
		return false, newFatalError(ReasonLFSFailed, showError, showAttributesFailureTemplateConstant, mirror.Ref)
	}

	for _, line := range strings.Split(showResult.StandardOutput, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, gitAttributesCommentPrefixConstant) {
			continue
		}
		for _, attribute := range strings.Fields(trimmedLine) {
			if attribute == gitLFSFilterAttributeConstant {
				return true, nil
			}
		}
	}
	return false, nil
}

func (mirror *Mirror) fetchLFS(executionContext context.Context, aliasOverride string) error {
	switch mirror.LFS {
	case LFSEnabled:
	case LFSUnset:
		if !mirror.Primary {
			return nil
		}
		attributesPresent, attributesError := mirror.LFSAttributesPresent(executionContext)
		if attributesError != nil {
			return attributesError
		}
		if attributesPresent {
			return mirror.dependencies.Reporter.Warn(WarningUnusedLFS, fmt.Sprintf(unusedLFSTemplateConstant, mirror.URL), unusedLFSDetailConstant)
		}
		return nil
	default:
		return nil
	}

	remoteName := defaultRemoteNameConstant
	if len(aliasOverride) > 0 {
		remoteName = URLDirectoryName(aliasOverride)
	}
	if _, fetchError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitLFSSubcommandConstant, gitLFSFetchActionConstant, remoteName, mirror.Ref},
		WorkingDirectory: mirror.directory,
	}); fetchError != nil {
		return newTemporaryError(ReasonLFSFailed, fetchError, lfsFetchFailureTemplateConstant, mirror.URL)
	}
	return nil
}

// checkoutLFS replaces pointer files with LFS content read from the mirror's object storage.
func (mirror *Mirror) checkoutLFS(executionContext context.Context, fullPath string) error {
	if mirror.LFS != LFSEnabled {
		return nil
	}

	storageSetting := fmt.Sprintf(gitLFSStorageSettingTemplateConstant, filepath.Join(mirror.directory, gitLFSStorageDirectoryNameConstant))
	if _, checkoutError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitConfigurationFlagConstant, storageSetting, gitLFSSubcommandConstant, gitLFSCheckoutActionConstant},
		WorkingDirectory: fullPath,
	}); checkoutError != nil {
		return newFatalError(ReasonLFSFailed, checkoutError, lfsCheckoutFailureTemplateConstant, mirror.URL)
	}
	return nil
}
