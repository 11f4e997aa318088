package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/execshell"
	"github.com/temirov/tagmirror/internal/filesystem"
	"github.com/temirov/tagmirror/internal/gitmirror"
	"github.com/temirov/tagmirror/internal/project"
	"github.com/temirov/tagmirror/internal/utils"
	pathutils "github.com/temirov/tagmirror/internal/utils/path"
)

const (
	trackCommandUseConstant            = "track <source-document>"
	trackCommandShortConstant          = "Resolve the latest ref of the tracked branches and pin it"
	trackCommandLongConstant           = "track fetches the source mirror, resolves every tracked branch (preferring tags when configured) and writes the most recent ref back into the source document."
	fetchCommandUseConstant            = "fetch <source-document>"
	fetchCommandShortConstant          = "Fetch the pinned ref and its submodules into the mirror cache"
	stageCommandUseConstant            = "stage <source-document> <directory>"
	stageCommandShortConstant          = "Check out the pinned ref and its submodules into a directory"
	workspaceCommandUseConstant        = "workspace <source-document> <directory>"
	workspaceCommandShortConstant      = "Create a developer workspace whose origin is the upstream repository"
	statusCommandUseConstant           = "status <source-document>"
	statusCommandShortConstant         = "Show the consistency, ref and cache key of a source"
	urlsCommandUseConstant             = "urls <source-document>"
	urlsCommandShortConstant           = "List the download URLs of a source"
	flagDryRunNameConstant             = "dry-run"
	flagDryRunDescriptionConstant      = "Print the tracked ref without updating the source document"
	trackedOutputTemplateConstant      = "TRACKED: %s %s\n"
	trackSkippedOutputTemplateConstant = "SKIPPED: %s has no track configured\n"
	fetchedOutputTemplateConstant      = "FETCHED: %s %s\n"
	stagedOutputTemplateConstant       = "STAGED: %s %s\n"
	workspaceOutputTemplateConstant    = "WORKSPACE: %s %s\n"
	statusLineTemplateConstant         = "%s: %s\n"
	submoduleLineTemplateConstant      = "submodule: %s %s %s\n"
	urlLineTemplateConstant            = "%s\n"
	primaryURLLineTemplateConstant     = "%s (primary)\n"
	statusConsistencyLabelConstant     = "consistency"
	statusRefLabelConstant             = "ref"
	statusTrackLabelConstant           = "track"
	statusCacheKeyLabelConstant        = "cache key"
	statusMirrorLabelConstant          = "mirror"
	statusConfigurationLabelConstant   = "configuration"
	unresolvedRefValueConstant         = "(none)"
	missingRefMessageConstant          = "source has no ref; run track first"
	commandFailureTemplateConstant     = "%s failed for %s: %w"
	trackCommandNameConstant           = "track"
	fetchCommandNameConstant           = "fetch"
	stageCommandNameConstant           = "stage"
	workspaceCommandNameConstant       = "workspace"
)

// ErrMissingRef indicates an operation that needs a pinned ref on a source without one.
var ErrMissingRef = errors.New(missingRefMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ProjectConfigurationProvider supplies the project configuration.
type ProjectConfigurationProvider func() project.Configuration

// CommandFileSystem combines the filesystem needs of mirrors and source documents.
type CommandFileSystem interface {
	gitmirror.FileSystem
	ReadFile(path string) ([]byte, error)
	WriteFileAtomically(path string, data []byte, permissions fs.FileMode) error
}

// CommandBuilder assembles the Cobra commands operating on a source document.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ProjectConfigurationProvider
	HumanReadableLoggingProvider func() bool
	GitExecutor                  gitmirror.GitExecutor
	FileSystem                   CommandFileSystem
	HomeDirectoryProvider        pathutils.HomeDirectoryProvider
	ToolLocator                  ToolLocator
}

// Build constructs every source command.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	trackCommand := &cobra.Command{
		Use:   trackCommandUseConstant,
		Short: trackCommandShortConstant,
		Long:  trackCommandLongConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runTrack,
	}
	trackCommand.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)

	fetchCommand := &cobra.Command{
		Use:   fetchCommandUseConstant,
		Short: fetchCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runFetch,
	}

	stageCommand := &cobra.Command{
		Use:   stageCommandUseConstant,
		Short: stageCommandShortConstant,
		Args:  cobra.ExactArgs(2),
		RunE:  builder.runStage,
	}

	workspaceCommand := &cobra.Command{
		Use:   workspaceCommandUseConstant,
		Short: workspaceCommandShortConstant,
		Args:  cobra.ExactArgs(2),
		RunE:  builder.runWorkspace,
	}

	statusCommand := &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runStatus,
	}

	urlsCommand := &cobra.Command{
		Use:   urlsCommandUseConstant,
		Short: urlsCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runURLs,
	}

	return []*cobra.Command{trackCommand, fetchCommand, stageCommand, workspaceCommand, statusCommand, urlsCommand}, nil
}

func (builder *CommandBuilder) runTrack(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(arguments[0])
	if sessionError != nil {
		return sessionError
	}

	ref, trackError := session.source.Track(command.Context())
	if trackError != nil {
		return fmt.Errorf(commandFailureTemplateConstant, trackCommandNameConstant, session.document.Path(), trackError)
	}
	if len(ref) == 0 {
		_, printError := fmt.Fprintf(commandOutput(command), trackSkippedOutputTemplateConstant, session.document.Path())
		return printError
	}

	dryRun, _ := command.Flags().GetBool(flagDryRunNameConstant)
	if !dryRun {
		if setError := session.source.SetRef(ref, session.document); setError != nil {
			return setError
		}
		if saveError := session.document.Save(); saveError != nil {
			return saveError
		}
	}

	_, printError := fmt.Fprintf(commandOutput(command), trackedOutputTemplateConstant, session.document.Path(), ref)
	return printError
}

func (builder *CommandBuilder) runFetch(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(arguments[0])
	if sessionError != nil {
		return sessionError
	}
	if len(session.source.Ref()) == 0 {
		return ErrMissingRef
	}

	orchestrator, orchestratorError := project.NewFetchOrchestrator(session.translator, session.projectConfiguration.Fetch, session.logger)
	if orchestratorError != nil {
		return orchestratorError
	}
	for fetcher, fetcherError := range session.source.SourceFetchers(command.Context()) {
		if fetcherError != nil {
			return fmt.Errorf(commandFailureTemplateConstant, fetchCommandNameConstant, session.document.Path(), fetcherError)
		}
		if fetchError := orchestrator.Fetch(command.Context(), fetcher); fetchError != nil {
			return fmt.Errorf(commandFailureTemplateConstant, fetchCommandNameConstant, session.document.Path(), fetchError)
		}
	}

	_, printError := fmt.Fprintf(commandOutput(command), fetchedOutputTemplateConstant, session.document.Path(), session.source.Ref())
	return printError
}

func (builder *CommandBuilder) runStage(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(arguments[0])
	if sessionError != nil {
		return sessionError
	}
	if len(session.source.Ref()) == 0 {
		return ErrMissingRef
	}

	if stageError := session.source.Stage(command.Context(), arguments[1]); stageError != nil {
		return fmt.Errorf(commandFailureTemplateConstant, stageCommandNameConstant, session.document.Path(), stageError)
	}
	_, printError := fmt.Fprintf(commandOutput(command), stagedOutputTemplateConstant, session.document.Path(), arguments[1])
	return printError
}

func (builder *CommandBuilder) runWorkspace(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(arguments[0])
	if sessionError != nil {
		return sessionError
	}
	if len(session.source.Ref()) == 0 {
		return ErrMissingRef
	}

	if initError := session.source.InitWorkspace(command.Context(), arguments[1]); initError != nil {
		return fmt.Errorf(commandFailureTemplateConstant, workspaceCommandNameConstant, session.document.Path(), initError)
	}
	_, printError := fmt.Fprintf(commandOutput(command), workspaceOutputTemplateConstant, session.document.Path(), arguments[1])
	return printError
}

func (builder *CommandBuilder) runStatus(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(arguments[0])
	if sessionError != nil {
		return sessionError
	}

	consistency, consistencyError := session.source.Consistency(command.Context())
	if consistencyError != nil {
		return consistencyError
	}
	cacheKey, cacheKeyError := session.source.CacheKey()
	if cacheKeyError != nil {
		return cacheKeyError
	}

	ref := session.source.Ref()
	if len(ref) == 0 {
		ref = unresolvedRefValueConstant
	}

	var report strings.Builder
	fmt.Fprintf(&report, statusLineTemplateConstant, statusConsistencyLabelConstant, consistency)
	fmt.Fprintf(&report, statusLineTemplateConstant, statusRefLabelConstant, ref)
	if track := session.source.Configuration().Track; len(track) > 0 {
		fmt.Fprintf(&report, statusLineTemplateConstant, statusTrackLabelConstant, track)
	}
	fmt.Fprintf(&report, statusLineTemplateConstant, statusCacheKeyLabelConstant, cacheKey)
	fmt.Fprintf(&report, statusLineTemplateConstant, statusMirrorLabelConstant, session.source.mirror.Directory())
	if configurationFilePath, loaded := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context()); loaded {
		fmt.Fprintf(&report, statusLineTemplateConstant, statusConfigurationLabelConstant, configurationFilePath)
	}
	for _, submodule := range session.source.Submodules() {
		fmt.Fprintf(&report, submoduleLineTemplateConstant, submodule.Path, submodule.URL, submodule.Ref)
	}

	_, printError := io.WriteString(commandOutput(command), report.String())
	return printError
}

func (builder *CommandBuilder) runURLs(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(arguments[0])
	if sessionError != nil {
		return sessionError
	}
	if _, consistencyError := session.source.Consistency(command.Context()); consistencyError != nil {
		return consistencyError
	}

	output := commandOutput(command)
	for _, downloadURL := range session.translator.Registry().URLs() {
		template := urlLineTemplateConstant
		if downloadURL.Primary {
			template = primaryURLLineTemplateConstant
		}
		if _, printError := fmt.Fprintf(output, template, downloadURL.URL); printError != nil {
			return printError
		}
	}
	return nil
}

type commandSession struct {
	logger               *zap.Logger
	projectConfiguration project.Configuration
	translator           *project.URLTranslator
	document             *Document
	source               *Source
}

func (builder *CommandBuilder) openSession(documentPath string) (*commandSession, error) {
	logger := builder.resolveLogger()

	projectConfiguration := project.Configuration{}
	if builder.ConfigurationProvider != nil {
		projectConfiguration = builder.ConfigurationProvider()
	}
	if validationError := projectConfiguration.Validate(); validationError != nil {
		return nil, validationError
	}
	mirrorRoot, rootError := projectConfiguration.MirrorRoot(builder.HomeDirectoryProvider)
	if rootError != nil {
		return nil, rootError
	}

	gitExecutor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}
	fileSystem := builder.resolveFileSystem()

	document, documentError := LoadDocument(fileSystem, documentPath)
	if documentError != nil {
		return nil, documentError
	}
	node, nodeError := document.Node()
	if nodeError != nil {
		return nil, nodeError
	}

	translator := project.NewURLTranslator(projectConfiguration, project.NewDownloadURLRegistry())
	source, sourceError := NewSource(Dependencies{
		Mirror: gitmirror.Dependencies{
			GitExecutor:   gitExecutor,
			FileSystem:    fileSystem,
			URLTranslator: translator,
			Reporter:      project.NewReporter(logger, projectConfiguration.FatalWarnings),
			Logger:        logger,
		},
		MirrorRoot:  mirrorRoot,
		ToolLocator: builder.ToolLocator,
	})
	if sourceError != nil {
		return nil, sourceError
	}
	if configureError := source.Configure(node); configureError != nil {
		return nil, configureError
	}
	if preflightError := source.Preflight(); preflightError != nil {
		return nil, preflightError
	}

	return &commandSession{
		logger:               logger,
		projectConfiguration: projectConfiguration,
		translator:           translator,
		document:             document,
		source:               source,
	}, nil
}

func commandOutput(command *cobra.Command) io.Writer {
	return utils.NewFlushingWriter(command.OutOrStdout())
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger) (gitmirror.GitExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}

	var observer execshell.CommandEventObserver
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		observer = execshell.NewConsoleCommandEventLogger(logger)
	}
	shellExecutor, creationError := execshell.NewShellExecutorWithObserver(logger, execshell.NewOSCommandRunner(), observer)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveFileSystem() CommandFileSystem {
	if builder.FileSystem != nil {
		return builder.FileSystem
	}
	return filesystem.OSFileSystem{}
}
