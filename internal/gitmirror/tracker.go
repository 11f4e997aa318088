package gitmirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/execshell"
)

const (
	gitDescribeSubcommandConstant         = "describe"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitDescribeTagsFlagConstant           = "--tags"
	gitDescribeNearestTagFlagConstant     = "--abbrev=0"
	gitDescribeFullChecksumFlagConstant   = "--abbrev=40"
	gitDescribeLongFlagConstant           = "--long"
	gitDescribeMatchTemplateConstant      = "--match=%s"
	gitDescribeExcludeTemplateConstant    = "--exclude=%s"
	gitShowSilentFlagConstant             = "-s"
	gitCommitTimestampFormatConstant      = "--format=%ct"
	gitPeelToCommitSuffixConstant         = "^{commit}"
	gitNoTagFoundExitCodeConstant         = 128
	noTagFoundInfoTemplateConstant        = "Unable to find tag for specified branch name '%s'"
	describeFailureTemplateConstant       = "Failed to describe tags for branch '%s'"
	commitNotFoundTemplateConstant        = "Unable to find commit for specified branch name '%s'"
	timestampFailureTemplateConstant      = "Failed to read commit time of %s"
	timestampParseFailureTemplateConstant = "Unexpected commit time '%s' for %s"
	noCandidatesMessageConstant           = "no branches to track"
	logFieldBranchConstant                = "branch"
	logFieldTimestampConstant             = "timestamp"
	candidateResolvedMessageConstant      = "tracking candidate resolved"
	candidateSelectedMessageConstant      = "tracking candidate selected"
)

// ErrNoCandidates indicates tracking was requested without any branch.
var ErrNoCandidates = errors.New(noCandidatesMessageConstant)

// TrackRequest describes one tracking run.
type TrackRequest struct {
	// Branches are resolved independently; the latest commit wins.
	Branches   []string
	PreferTags bool
	Match      []string
	Exclude    []string
}

func (request TrackRequest) describeArguments() []string {
	arguments := make([]string, 0, len(request.Match)+len(request.Exclude))
	for _, pattern := range request.Match {
		arguments = append(arguments, fmt.Sprintf(gitDescribeMatchTemplateConstant, pattern))
	}
	for _, pattern := range request.Exclude {
		arguments = append(arguments, fmt.Sprintf(gitDescribeExcludeTemplateConstant, pattern))
	}
	return arguments
}

// Candidate is the resolution of one tracked branch.
type Candidate struct {
	Branch    string
	Ref       string
	Timestamp time.Time
}

// LatestCommit resolves tracking to a ref and the time of the commit it names.
// With PreferTags the nearest matching tag is used, falling back to the branch tip when no tag is reachable.
// The returned ref is rewritten to the long describe form when any tag is reachable.
func (mirror *Mirror) LatestCommit(executionContext context.Context, tracking string, request TrackRequest) (Candidate, error) {
	gitExecutor := mirror.dependencies.GitExecutor
	target := tracking

	if request.PreferTags {
		describeArguments := append([]string{gitDescribeSubcommandConstant, gitDescribeTagsFlagConstant, gitDescribeNearestTagFlagConstant}, request.describeArguments()...)
		describeArguments = append(describeArguments, tracking)
		describeResult, describeError := gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
			Arguments:        describeArguments,
			WorkingDirectory: mirror.directory,
		})
		switch {
		case describeError == nil:
			if describedTag := strings.TrimSpace(describeResult.StandardOutput); len(describedTag) > 0 {
				target = describedTag
			}
		case isExitCode(describeError, gitNoTagFoundExitCodeConstant):
			mirror.dependencies.Reporter.Info(fmt.Sprintf(noTagFoundInfoTemplateConstant, tracking))
		default:
			return Candidate{}, newFatalError(ReasonDescribeFailed, describeError, describeFailureTemplateConstant, tracking)
		}
	}

	revParseResult, revParseError := gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, target + gitPeelToCommitSuffixConstant},
		WorkingDirectory: mirror.directory,
	})
	if revParseError != nil {
		return Candidate{}, newFatalError(ReasonRefNotFound, revParseError, commitNotFoundTemplateConstant, tracking)
	}
	commit := strings.TrimSpace(revParseResult.StandardOutput)

	timestampResult, timestampError := gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitShowSubcommandConstant, gitShowSilentFlagConstant, gitCommitTimestampFormatConstant, commit},
		WorkingDirectory: mirror.directory,
	})
	if timestampError != nil {
		return Candidate{}, newFatalError(ReasonTimestampFailed, timestampError, timestampFailureTemplateConstant, commit)
	}
	rawTimestamp := strings.TrimSpace(timestampResult.StandardOutput)
	seconds, parseError := strconv.ParseInt(rawTimestamp, 10, 64)
	if parseError != nil {
		return Candidate{}, newFatalError(ReasonTimestampFailed, parseError, timestampParseFailureTemplateConstant, rawTimestamp, commit)
	}

	ref := commit
	longResult, longError := gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitDescribeSubcommandConstant, gitDescribeTagsFlagConstant, gitDescribeFullChecksumFlagConstant, gitDescribeLongFlagConstant, commit},
		WorkingDirectory: mirror.directory,
	})
	if longError == nil {
		if described := strings.TrimSpace(longResult.StandardOutput); len(described) > 0 {
			ref = described
		}
	}

	candidate := Candidate{Branch: tracking, Ref: ref, Timestamp: time.Unix(seconds, 0).UTC()}
	mirror.dependencies.logger().Debug(
		candidateResolvedMessageConstant,
		zap.String(logFieldBranchConstant, candidate.Branch),
		zap.String(logFieldRefConstant, candidate.Ref),
		zap.Time(logFieldTimestampConstant, candidate.Timestamp),
	)
	return candidate, nil
}

// CommitResolver resolves one tracked branch.
type CommitResolver interface {
	LatestCommit(executionContext context.Context, tracking string, request TrackRequest) (Candidate, error)
}

// Tracker picks the most recent ref among several tracked branches.
type Tracker struct {
	logger *zap.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger}
}

// Track resolves every requested branch and returns the candidate with the latest commit.
func (tracker *Tracker) Track(executionContext context.Context, resolver CommitResolver, request TrackRequest) (Candidate, error) {
	if len(request.Branches) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	candidates := make([]Candidate, 0, len(request.Branches))
	for _, branch := range request.Branches {
		candidate, resolveError := resolver.LatestCommit(executionContext, branch, request)
		if resolveError != nil {
			return Candidate{}, resolveError
		}
		candidates = append(candidates, candidate)
	}

	selected, selectError := SelectLatest(candidates)
	if selectError != nil {
		return Candidate{}, selectError
	}
	tracker.logger.Debug(
		candidateSelectedMessageConstant,
		zap.String(logFieldBranchConstant, selected.Branch),
		zap.String(logFieldRefConstant, selected.Ref),
	)
	return selected, nil
}

// SelectLatest returns the candidate with the greatest timestamp. Equal timestamps keep the earliest candidate.
func SelectLatest(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}
	latest := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Timestamp.After(latest.Timestamp) {
			latest = candidate
		}
	}
	return latest, nil
}

func isExitCode(err error, expectedExitCode int) bool {
	exitCode, exited := execshell.ExitCodeOf(err)
	return exited && exitCode == expectedExitCode
}
