package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os/exec"

	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/gitmirror"
)

const (
	gitToolNameConstant                 = "git"
	mirrorRootMissingMessageConstant    = "mirror root not configured"
	notConfiguredMessageConstant        = "source is not configured"
	refKeyConstant                      = "ref"
	refTypeTemplateConstant             = "ref must be a string, got %T"
	missingToolTemplateConstant         = "unable to locate host tool %s: %w"
	trackingStatusTemplateConstant      = "Tracking %s from %s"
	stagingStatusTemplateConstant       = "Staging %s"
	workspaceStatusTemplateConstant     = "Setting up workspace \"%s\""
	uniqueKeyCheckoutSubmodulesConstant = "checkout_submodules"
	uniqueKeyCheckoutOverridesConstant  = "submodule_checkout_overrides"
	uniqueKeyUseLFSConstant             = "use_lfs"
	logFieldSourceURLConstant           = "url"
	logFieldRefConstant                 = "ref"
	logFieldSubmoduleCountConstant      = "submodules"
	sourceTrackedMessageConstant        = "source tracked"
	submodulesRefreshedMessageConstant  = "submodules refreshed"
)

// ErrMirrorRootNotConfigured indicates the source was built without a mirror directory.
var ErrMirrorRootNotConfigured = errors.New(mirrorRootMissingMessageConstant)

// ErrNotConfigured indicates a lifecycle operation was called before Configure.
var ErrNotConfigured = errors.New(notConfiguredMessageConstant)

// Consistency describes how much of a source is available locally.
type Consistency int

// Consistency states, from least to most available.
const (
	ConsistencyInconsistent Consistency = iota
	ConsistencyResolved
	ConsistencyCached
)

// String renders the consistency state.
func (consistency Consistency) String() string {
	switch consistency {
	case ConsistencyCached:
		return "cached"
	case ConsistencyResolved:
		return "resolved"
	default:
		return "inconsistent"
	}
}

// RefSetter persists a newly tracked ref.
type RefSetter interface {
	SetRef(ref string) error
}

// Fetcher downloads one remote of a source.
type Fetcher interface {
	Fetch(executionContext context.Context, aliasOverride string) error
	RemoteURL() string
}

// Plugin is the lifecycle a host drives a source through.
type Plugin interface {
	Configure(node map[string]any) error
	Preflight() error
	UniqueKey() ([]any, error)
	Consistency(executionContext context.Context) (Consistency, error)
	LoadRef(node map[string]any) error
	Ref() string
	SetRef(ref string, document RefSetter) error
	Track(executionContext context.Context) (string, error)
	Fetch(executionContext context.Context, aliasOverride string) error
	Stage(executionContext context.Context, directory string) error
	InitWorkspace(executionContext context.Context, directory string) error
	SourceFetchers(executionContext context.Context) iter.Seq2[Fetcher, error]
}

// ToolLocator finds a host executable.
type ToolLocator func(name string) (string, error)

// Dependencies enumerates the host collaborators of a Source.
type Dependencies struct {
	Mirror      gitmirror.Dependencies
	MirrorRoot  string
	ToolLocator ToolLocator
}

// Source tracks, fetches and stages a git repository pinned to a tag or commit, with its submodules.
type Source struct {
	dependencies  Dependencies
	configuration Configuration
	mirror        *gitmirror.Mirror
	submodules    []*gitmirror.Mirror
	tracker       *gitmirror.Tracker
}

var _ Plugin = (*Source)(nil)

// NewSource constructs an unconfigured Source.
func NewSource(dependencies Dependencies) (*Source, error) {
	if len(dependencies.MirrorRoot) == 0 {
		return nil, ErrMirrorRootNotConfigured
	}
	if dependencies.ToolLocator == nil {
		dependencies.ToolLocator = exec.LookPath
	}
	if dependencies.Mirror.Logger == nil {
		dependencies.Mirror.Logger = zap.NewNop()
	}
	return &Source{dependencies: dependencies, tracker: gitmirror.NewTracker(dependencies.Mirror.Logger)}, nil
}

// Configure validates node and prepares the primary mirror.
// Submodule override URLs and the main URL are marked as download URLs.
func (source *Source) Configure(node map[string]any) error {
	configuration, decodeError := DecodeConfiguration(node)
	if decodeError != nil {
		return decodeError
	}

	for _, path := range sortedSubmodulePaths(configuration.Submodules) {
		overrideURL := configuration.Submodules[path].URL
		if len(overrideURL) == 0 {
			continue
		}
		if markError := source.dependencies.Mirror.URLTranslator.MarkDownloadURL(overrideURL, false); markError != nil {
			return markError
		}
	}

	mirror, mirrorError := gitmirror.NewMirror(source.dependencies.Mirror, gitmirror.MirrorOptions{
		Root:    source.dependencies.MirrorRoot,
		URL:     configuration.URL,
		Ref:     configuration.Ref,
		Primary: true,
		LFS:     configuration.LFSMode(),
	})
	if mirrorError != nil {
		return mirrorError
	}

	source.configuration = configuration
	source.mirror = mirror
	source.submodules = nil
	return nil
}

// Preflight checks that git is installed.
func (source *Source) Preflight() error {
	if _, lookupError := source.dependencies.ToolLocator(gitToolNameConstant); lookupError != nil {
		return fmt.Errorf(missingToolTemplateConstant, gitToolNameConstant, lookupError)
	}
	return nil
}

// UniqueKey identifies the staged content independently of where it is downloaded from.
func (source *Source) UniqueKey() ([]any, error) {
	if source.mirror == nil {
		return nil, ErrNotConfigured
	}

	key := []any{source.configuration.URL, source.mirror.Ref}
	if !source.configuration.CheckoutSubmodulesEnabled() {
		key = append(key, map[string]any{uniqueKeyCheckoutSubmodulesConstant: false})
	}

	if len(source.configuration.Submodules) > 0 {
		urlOverrides := make(map[string]any, len(source.configuration.Submodules))
		checkoutOverrides := map[string]bool{}
		for path, submodule := range source.configuration.Submodules {
			if len(submodule.URL) > 0 {
				urlOverrides[path] = submodule.URL
			} else {
				urlOverrides[path] = nil
			}
			if submodule.Checkout != nil {
				checkoutOverrides[path] = *submodule.Checkout
			}
		}
		key = append(key, urlOverrides)
		if len(checkoutOverrides) > 0 {
			key = append(key, map[string]any{uniqueKeyCheckoutOverridesConstant: checkoutOverrides})
		}
	}

	if source.configuration.LFSMode() == gitmirror.LFSEnabled {
		key = append(key, map[string]any{uniqueKeyUseLFSConstant: true})
	}
	return key, nil
}

// CacheKey returns the hex sha256 of the JSON encoded unique key.
func (source *Source) CacheKey() (string, error) {
	key, keyError := source.UniqueKey()
	if keyError != nil {
		return "", keyError
	}
	encodedKey, encodeError := json.Marshal(key)
	if encodeError != nil {
		return "", encodeError
	}
	digest := sha256.Sum256(encodedKey)
	return hex.EncodeToString(digest[:]), nil
}

// Consistency reports cached when every mirror holds its ref, resolved when a ref is known and inconsistent otherwise.
func (source *Source) Consistency(executionContext context.Context) (Consistency, error) {
	if source.mirror == nil {
		return ConsistencyInconsistent, ErrNotConfigured
	}

	allRefs, refsError := source.haveAllRefs(executionContext)
	if refsError != nil {
		return ConsistencyInconsistent, refsError
	}
	switch {
	case allRefs:
		return ConsistencyCached, nil
	case len(source.mirror.Ref) > 0:
		return ConsistencyResolved, nil
	default:
		return ConsistencyInconsistent, nil
	}
}

func (source *Source) haveAllRefs(executionContext context.Context) (bool, error) {
	hasRef, hasRefError := source.mirror.HasRef(executionContext)
	if hasRefError != nil || !hasRef {
		return false, hasRefError
	}

	if refreshError := source.RefreshSubmodules(executionContext); refreshError != nil {
		return false, refreshError
	}
	for _, submodule := range source.submodules {
		submoduleHasRef, submoduleError := submodule.HasRef(executionContext)
		if submoduleError != nil || !submoduleHasRef {
			return false, submoduleError
		}
	}
	return true, nil
}

// LoadRef reads the ref key of node; a missing ref clears it.
func (source *Source) LoadRef(node map[string]any) error {
	if source.mirror == nil {
		return ErrNotConfigured
	}
	rawRef, present := node[refKeyConstant]
	if !present || rawRef == nil {
		source.mirror.Ref = ""
		return nil
	}
	ref, isString := rawRef.(string)
	if !isString {
		return fmt.Errorf(refTypeTemplateConstant, rawRef)
	}
	source.mirror.Ref = ref
	return nil
}

// Ref returns the pinned ref, empty when unresolved.
func (source *Source) Ref() string {
	if source.mirror == nil {
		return ""
	}
	return source.mirror.Ref
}

// SetRef pins ref and records it in document.
func (source *Source) SetRef(ref string, document RefSetter) error {
	if source.mirror == nil {
		return ErrNotConfigured
	}
	source.mirror.Ref = ref
	if document == nil {
		return nil
	}
	return document.SetRef(ref)
}

// Track resolves the latest ref among the tracked branches. Without track it returns an empty ref.
func (source *Source) Track(executionContext context.Context) (string, error) {
	if source.mirror == nil {
		return "", ErrNotConfigured
	}
	if len(source.configuration.Track) == 0 {
		return "", nil
	}

	resolvedURL, translateError := source.dependencies.Mirror.URLTranslator.TranslateURL(source.mirror.URL, "")
	if translateError != nil {
		return "", translateError
	}
	source.dependencies.Mirror.Reporter.Status(fmt.Sprintf(trackingStatusTemplateConstant, source.configuration.Track, resolvedURL))

	if ensureError := source.mirror.Ensure(executionContext, ""); ensureError != nil {
		return "", ensureError
	}
	if fetchError := source.mirror.FetchRemote(executionContext, ""); fetchError != nil {
		return "", fetchError
	}

	candidate, trackError := source.tracker.Track(executionContext, source.mirror, source.configuration.trackRequest())
	if trackError != nil {
		return "", trackError
	}
	source.dependencies.Mirror.Logger.Info(
		sourceTrackedMessageConstant,
		zap.String(logFieldSourceURLConstant, source.configuration.URL),
		zap.String(logFieldRefConstant, candidate.Ref),
	)
	return candidate.Ref, nil
}

// Fetch fetches the primary mirror through aliasOverride and then every submodule mirror.
// Submodules sharing the primary URL's alias use the same override.
func (source *Source) Fetch(executionContext context.Context, aliasOverride string) error {
	for fetcher, fetcherError := range source.SourceFetchers(executionContext) {
		if fetcherError != nil {
			return fetcherError
		}
		override := ""
		if sharesAlias(source.mirror.URL, fetcher.RemoteURL()) {
			override = aliasOverride
		}
		if fetchError := fetcher.Fetch(executionContext, override); fetchError != nil {
			return fetchError
		}
	}
	return nil
}

// SourceFetchers yields the primary mirror and then the submodule mirrors of the pinned ref.
// Submodules are enumerated only after the consumer has handled the primary mirror, since the
// .gitmodules content is read from it. A refresh failure is yielded with a nil Fetcher.
func (source *Source) SourceFetchers(executionContext context.Context) iter.Seq2[Fetcher, error] {
	return func(yield func(Fetcher, error) bool) {
		if source.mirror == nil {
			yield(nil, ErrNotConfigured)
			return
		}
		if !yield(source.mirror, nil) {
			return
		}
		if refreshError := source.RefreshSubmodules(executionContext); refreshError != nil {
			yield(nil, refreshError)
			return
		}
		for _, submodule := range source.submodules {
			if !yield(submodule, nil) {
				return
			}
		}
	}
}

// Stage checks out the pinned ref of the primary mirror and every submodule into directory.
func (source *Source) Stage(executionContext context.Context, directory string) error {
	if source.mirror == nil {
		return ErrNotConfigured
	}
	if refreshError := source.RefreshSubmodules(executionContext); refreshError != nil {
		return refreshError
	}

	source.dependencies.Mirror.Reporter.Status(fmt.Sprintf(stagingStatusTemplateConstant, source.mirror.URL))
	if stageError := source.mirror.Stage(executionContext, directory); stageError != nil {
		return stageError
	}
	for _, submodule := range source.submodules {
		if stageError := submodule.Stage(executionContext, directory); stageError != nil {
			return stageError
		}
	}
	return nil
}

// InitWorkspace sets up a developer checkout of the primary mirror and every submodule in directory.
func (source *Source) InitWorkspace(executionContext context.Context, directory string) error {
	if source.mirror == nil {
		return ErrNotConfigured
	}
	if refreshError := source.RefreshSubmodules(executionContext); refreshError != nil {
		return refreshError
	}

	source.dependencies.Mirror.Reporter.Status(fmt.Sprintf(workspaceStatusTemplateConstant, directory))
	if initError := source.mirror.InitWorkspace(executionContext, directory); initError != nil {
		return initError
	}
	for _, submodule := range source.submodules {
		if initError := submodule.InitWorkspace(executionContext, directory); initError != nil {
			return initError
		}
	}
	return nil
}

// Submodules returns the submodule mirrors of the last refresh.
func (source *Source) Submodules() []*gitmirror.Mirror {
	return append([]*gitmirror.Mirror(nil), source.submodules...)
}

// Configuration returns the decoded configuration.
func (source *Source) Configuration() Configuration {
	return source.configuration
}
