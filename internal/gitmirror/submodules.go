package gitmirror

import (
	"context"
	"fmt"
	"strings"

	gitconfig "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/temirov/tagmirror/internal/execshell"
)

const (
	gitModulesFileNameConstant                  = ".gitmodules"
	gitShowSubcommandConstant                   = "show"
	gitLSTreeSubcommandConstant                 = "ls-tree"
	gitObjectPathTemplateConstant               = "%s:%s"
	gitMissingObjectExitCodeConstant            = 128
	gitSubmoduleSectionNameConstant             = "submodule"
	gitSubmodulePathOptionConstant              = "path"
	gitSubmoduleURLOptionConstant               = "url"
	gitTreeEntryCommitTypeConstant              = "commit"
	gitTreeEntryTypeFieldIndexConstant          = 1
	gitTreeEntryObjectFieldIndexConstant        = 2
	commitChecksumLengthConstant                = 40
	showGitmodulesFailureTemplateConstant       = "Failed to show gitmodules at ref %s"
	parseGitmodulesFailureTemplateConstant      = "Failed to parse gitmodules at ref %s"
	incompleteSubmoduleTemplateConstant         = "Submodule '%s' in gitmodules at ref %s is missing its path or url"
	lsTreeFailureTemplateConstant               = "ls-tree failed for commit %s and submodule: %s"
	invalidSubmoduleCommitTemplateConstant      = "Error reading commit information for submodule '%s'"
	invalidSubmoduleCommitDetailConstant        = "The tree entry for submodule '%s' holds '%s', which is not a 40 character commit checksum."
	inconsistentSubmoduleTemplateConstant       = "Ignoring inconsistent submodule '%s'"
	inconsistentSubmoduleDetailTemplateConstant = "The submodule '%s' is defined either in the source definition, or in a .gitmodules file. But the submodule was never added to the\nunderlying git repository with `git submodule add`."
)

// Submodule is one (path, url) pair declared in .gitmodules.
type Submodule struct {
	Name string
	Path string
	URL  string
}

// SubmoduleList returns the submodules declared in .gitmodules as it exists at the pinned ref.
// A ref without .gitmodules yields no submodules.
func (mirror *Mirror) SubmoduleList(executionContext context.Context) ([]Submodule, error) {
	if len(mirror.Ref) == 0 {
		return nil, nil
	}

	showResult, showError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitShowSubcommandConstant, fmt.Sprintf(gitObjectPathTemplateConstant, mirror.Ref, gitModulesFileNameConstant)},
		WorkingDirectory: mirror.directory,
	})
	if showError != nil {
		if isExitCode(showError, gitMissingObjectExitCodeConstant) {
			return nil, nil
		}
		return nil, newFatalError(ReasonGitmodulesFailed, showError, showGitmodulesFailureTemplateConstant, mirror.Ref)
	}

	return parseSubmodules(showResult.StandardOutput, mirror.Ref)
}

func parseSubmodules(content string, ref string) ([]Submodule, error) {
	lines := strings.Split(content, "\n")
	for lineIndex, line := range lines {
		lines[lineIndex] = strings.TrimSpace(line)
	}

	document := gitconfig.New()
	if decodeError := gitconfig.NewDecoder(strings.NewReader(strings.Join(lines, "\n"))).Decode(document); decodeError != nil {
		return nil, newFatalError(ReasonGitmodulesFailed, decodeError, parseGitmodulesFailureTemplateConstant, ref)
	}

	if !document.HasSection(gitSubmoduleSectionNameConstant) {
		return nil, nil
	}

	subsections := document.Section(gitSubmoduleSectionNameConstant).Subsections
	submodules := make([]Submodule, 0, len(subsections))
	for _, subsection := range subsections {
		submodulePath := subsection.Option(gitSubmodulePathOptionConstant)
		submoduleURL := subsection.Option(gitSubmoduleURLOptionConstant)
		if len(submodulePath) == 0 || len(submoduleURL) == 0 {
			return nil, newFatalError(ReasonGitmodulesFailed, nil, incompleteSubmoduleTemplateConstant, subsection.Name, ref)
		}
		submodules = append(submodules, Submodule{Name: subsection.Name, Path: submodulePath, URL: submoduleURL})
	}
	return submodules, nil
}

// SubmoduleRef returns the commit pinned for the submodule at path in the tree of atRef (the pinned ref when empty).
// available is false when the tree has no valid gitlink there; the inconsistency is reported as a warning.
func (mirror *Mirror) SubmoduleRef(executionContext context.Context, path string, atRef string) (commit string, available bool, err error) {
	ref := atRef
	if len(ref) == 0 {
		ref = mirror.Ref
	}

	listResult, listError := mirror.dependencies.GitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitLSTreeSubcommandConstant, ref, path},
		WorkingDirectory: mirror.directory,
	})
	if listError != nil {
		return "", false, newFatalError(ReasonTreeListingFailed, listError, lsTreeFailureTemplateConstant, ref, path)
	}

	fields := strings.Fields(listResult.StandardOutput)
	if len(fields) > gitTreeEntryObjectFieldIndexConstant && fields[gitTreeEntryTypeFieldIndexConstant] == gitTreeEntryCommitTypeConstant {
		submoduleCommit := fields[gitTreeEntryObjectFieldIndexConstant]
		if !IsCommitChecksum(submoduleCommit) {
			warnError := mirror.dependencies.Reporter.Warn(
				WarningInconsistentSubmodule,
				fmt.Sprintf(invalidSubmoduleCommitTemplateConstant, path),
				fmt.Sprintf(invalidSubmoduleCommitDetailConstant, path, submoduleCommit),
			)
			return "", false, warnError
		}
		return submoduleCommit, true, nil
	}

	warnError := mirror.dependencies.Reporter.Warn(
		WarningInconsistentSubmodule,
		fmt.Sprintf(inconsistentSubmoduleTemplateConstant, path),
		fmt.Sprintf(inconsistentSubmoduleDetailTemplateConstant, path),
	)
	return "", false, warnError
}

// IsCommitChecksum reports whether value is a full 40 character hexadecimal SHA-1.
func IsCommitChecksum(value string) bool {
	if len(value) != commitChecksumLengthConstant {
		return false
	}
	for _, character := range value {
		isDigit := character >= '0' && character <= '9'
		isLowerHex := character >= 'a' && character <= 'f'
		isUpperHex := character >= 'A' && character <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
