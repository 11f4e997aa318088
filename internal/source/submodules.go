package source

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/gitmirror"
	"github.com/temirov/tagmirror/internal/project"
)

// RefreshSubmodules recomputes the submodule mirrors from .gitmodules at the pinned ref.
// Submodules disabled for checkout or missing from the tree are left out; nested submodules are not walked.
// The previous set is replaced, never merged.
func (source *Source) RefreshSubmodules(executionContext context.Context) error {
	if source.mirror == nil {
		return ErrNotConfigured
	}
	if ensureError := source.mirror.Ensure(executionContext, ""); ensureError != nil {
		return ensureError
	}

	declared, listError := source.mirror.SubmoduleList(executionContext)
	if listError != nil {
		return listError
	}

	refreshed := make([]*gitmirror.Mirror, 0, len(declared))
	for _, submodule := range declared {
		if !source.configuration.ShouldCheckout(submodule.Path) {
			continue
		}

		url := submodule.URL
		if override := source.configuration.Submodules[submodule.Path].URL; len(override) > 0 {
			url = override
		}

		commit, available, refError := source.mirror.SubmoduleRef(executionContext, submodule.Path, "")
		if refError != nil {
			return refError
		}
		if !available {
			continue
		}

		mirror, mirrorError := gitmirror.NewMirror(source.dependencies.Mirror, gitmirror.MirrorOptions{
			Root: source.dependencies.MirrorRoot,
			Path: submodule.Path,
			URL:  url,
			Ref:  commit,
			LFS:  source.configuration.LFSMode(),
		})
		if mirrorError != nil {
			return mirrorError
		}
		refreshed = append(refreshed, mirror)
	}

	source.submodules = refreshed
	source.dependencies.Mirror.Logger.Debug(
		submodulesRefreshedMessageConstant,
		zap.String(logFieldSourceURLConstant, source.configuration.URL),
		zap.String(logFieldRefConstant, source.mirror.Ref),
		zap.Int(logFieldSubmoduleCountConstant, len(refreshed)),
	)
	return nil
}

func sortedSubmodulePaths(submodules map[string]SubmoduleConfiguration) []string {
	paths := make([]string, 0, len(submodules))
	for path := range submodules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func sharesAlias(primaryURL string, candidateURL string) bool {
	primaryAlias, _, primaryAliased := project.SplitAlias(primaryURL)
	candidateAlias, _, candidateAliased := project.SplitAlias(candidateURL)
	return primaryAliased && candidateAliased && primaryAlias == candidateAlias
}
