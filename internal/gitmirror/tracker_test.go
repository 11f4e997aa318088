package gitmirror_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/tagmirror/internal/gitmirror"
)

const (
	testTrackedBranchConstant       = "main"
	testMatchedTagConstant          = "v1.2"
	testCommitTimeConstant          = "1700000000\n"
	testCommitTimeSecondsConstant   = 1700000000
	testDescribeNearestTagConstant  = "describe --tags --abbrev=0 --match=v* --exclude=v*-rc* main"
	testLongDescribeCommandConstant = "describe --tags --abbrev=40 --long " + testCommitConstant
	testTimestampCommandConstant    = "show -s --format=%ct " + testCommitConstant
)

func TestLatestCommit(testInstance *testing.T) {
	testCases := []struct {
		name             string
		preferTags       bool
		describeExitCode int
		describeOutput   string
		revParseTarget   string
		longDescribe     string
		longExitCode     int
		expectedRef      string
		expectedInfos    int
		expectedCommands []string
	}{
		{
			name:           "nearest_matching_tag",
			preferTags:     true,
			describeOutput: testMatchedTagConstant + "\n",
			revParseTarget: testMatchedTagConstant,
			longDescribe:   testMatchedTagConstant + "-0-g" + testCommitConstant + "\n",
			expectedRef:    testMatchedTagConstant + "-0-g" + testCommitConstant,
			expectedCommands: []string{
				testDescribeNearestTagConstant,
				"rev-parse " + testMatchedTagConstant + "^{commit}",
				testTimestampCommandConstant,
				testLongDescribeCommandConstant,
			},
		},
		{
			name:             "no_tag_falls_back_to_branch",
			preferTags:       true,
			describeExitCode: 128,
			revParseTarget:   testTrackedBranchConstant,
			longExitCode:     128,
			expectedRef:      testCommitConstant,
			expectedInfos:    1,
			expectedCommands: []string{
				testDescribeNearestTagConstant,
				"rev-parse main^{commit}",
				testTimestampCommandConstant,
				testLongDescribeCommandConstant,
			},
		},
		{
			name:           "branch_tip_with_reachable_tag",
			revParseTarget: testTrackedBranchConstant,
			longDescribe:   "v1.2-3-g" + testCommitConstant + "\n",
			expectedRef:    "v1.2-3-g" + testCommitConstant,
			expectedCommands: []string{
				"rev-parse main^{commit}",
				testTimestampCommandConstant,
				testLongDescribeCommandConstant,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newMirrorFixture()
			if testCase.describeExitCode != 0 {
				fixture.executor.fail(testDescribeNearestTagConstant, testCase.describeExitCode)
			} else {
				fixture.executor.respond(testDescribeNearestTagConstant, testCase.describeOutput)
			}
			fixture.executor.respond("rev-parse "+testCase.revParseTarget+"^{commit}", testCommitConstant+"\n")
			fixture.executor.respond(testTimestampCommandConstant, testCommitTimeConstant)
			if testCase.longExitCode != 0 {
				fixture.executor.fail(testLongDescribeCommandConstant, testCase.longExitCode)
			} else {
				fixture.executor.respond(testLongDescribeCommandConstant, testCase.longDescribe)
			}
			mirror := fixture.newMirror(testInstance, gitmirror.MirrorOptions{})

			candidate, resolveError := mirror.LatestCommit(context.Background(), testTrackedBranchConstant, gitmirror.TrackRequest{
				Branches:   []string{testTrackedBranchConstant},
				PreferTags: testCase.preferTags,
				Match:      []string{"v*"},
				Exclude:    []string{"v*-rc*"},
			})
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedRef, candidate.Ref)
			require.Equal(testInstance, testTrackedBranchConstant, candidate.Branch)
			require.Equal(testInstance, time.Unix(testCommitTimeSecondsConstant, 0).UTC(), candidate.Timestamp)
			require.Equal(testInstance, testCase.expectedCommands, fixture.executor.commandLines())
			require.Len(testInstance, fixture.reporter.infos, testCase.expectedInfos)
		})
	}
}

func TestLatestCommitFailures(testInstance *testing.T) {
	testCases := []struct {
		name           string
		script         func(executor *scriptedGitExecutor)
		expectedReason gitmirror.Reason
	}{
		{
			name: "unknown_branch",
			script: func(executor *scriptedGitExecutor) {
				executor.fail("rev-parse main^{commit}", 128)
			},
			expectedReason: gitmirror.ReasonRefNotFound,
		},
		{
			name: "describe_failure",
			script: func(executor *scriptedGitExecutor) {
				executor.fail("describe --tags --abbrev=0 main", 129)
			},
			expectedReason: gitmirror.ReasonDescribeFailed,
		},
		{
			name: "unparsable_timestamp",
			script: func(executor *scriptedGitExecutor) {
				executor.respond("describe --tags --abbrev=0 main", "v1\n")
				executor.respond("rev-parse v1^{commit}", testCommitConstant)
				executor.respond(testTimestampCommandConstant, "yesterday")
			},
			expectedReason: gitmirror.ReasonTimestampFailed,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newMirrorFixture()
			testCase.script(fixture.executor)
			fixture.executor.respond("rev-parse main^{commit}", testCommitConstant)
			mirror := fixture.newMirror(testInstance, gitmirror.MirrorOptions{})

			_, resolveError := mirror.LatestCommit(context.Background(), testTrackedBranchConstant, gitmirror.TrackRequest{PreferTags: true})
			require.Error(testInstance, resolveError)
			reason, found := gitmirror.ReasonOf(resolveError)
			require.True(testInstance, found)
			require.Equal(testInstance, testCase.expectedReason, reason)
			require.False(testInstance, gitmirror.IsTemporary(resolveError))
		})
	}
}

type stubCommitResolver struct {
	candidates map[string]gitmirror.Candidate
	failures   map[string]error
	requested  []string
}

func (resolver *stubCommitResolver) LatestCommit(_ context.Context, tracking string, _ gitmirror.TrackRequest) (gitmirror.Candidate, error) {
	resolver.requested = append(resolver.requested, tracking)
	if failure, found := resolver.failures[tracking]; found {
		return gitmirror.Candidate{}, failure
	}
	return resolver.candidates[tracking], nil
}

func TestTrackerSelectsLatestCommit(testInstance *testing.T) {
	base := time.Unix(testCommitTimeSecondsConstant, 0)
	candidates := map[string]gitmirror.Candidate{
		"main":        {Branch: "main", Ref: "main-ref", Timestamp: base},
		"release/1.x": {Branch: "release/1.x", Ref: "release-ref", Timestamp: base.Add(time.Hour)},
		"develop":     {Branch: "develop", Ref: "develop-ref", Timestamp: base.Add(-time.Hour)},
	}

	testCases := []struct {
		name     string
		branches []string
	}{
		{name: "latest_first", branches: []string{"release/1.x", "main", "develop"}},
		{name: "latest_middle", branches: []string{"main", "release/1.x", "develop"}},
		{name: "latest_last", branches: []string{"develop", "main", "release/1.x"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			resolver := &stubCommitResolver{candidates: candidates}
			selected, trackError := gitmirror.NewTracker(nil).Track(context.Background(), resolver, gitmirror.TrackRequest{Branches: testCase.branches})
			require.NoError(testInstance, trackError)
			require.Equal(testInstance, "release-ref", selected.Ref)
			require.Equal(testInstance, testCase.branches, resolver.requested)
		})
	}
}

func TestTrackerPropagatesResolutionFailure(testInstance *testing.T) {
	resolutionError := errors.New("unable to resolve")
	resolver := &stubCommitResolver{
		candidates: map[string]gitmirror.Candidate{"main": {Ref: "main-ref"}},
		failures:   map[string]error{"develop": resolutionError},
	}

	_, trackError := gitmirror.NewTracker(nil).Track(context.Background(), resolver, gitmirror.TrackRequest{Branches: []string{"main", "develop"}})
	require.ErrorIs(testInstance, trackError, resolutionError)

	_, emptyError := gitmirror.NewTracker(nil).Track(context.Background(), resolver, gitmirror.TrackRequest{})
	require.ErrorIs(testInstance, emptyError, gitmirror.ErrNoCandidates)
}

func TestSelectLatestKeepsFirstOnTie(testInstance *testing.T) {
	tied := time.Unix(testCommitTimeSecondsConstant, 0)
	selected, selectError := gitmirror.SelectLatest([]gitmirror.Candidate{
		{Branch: "first", Timestamp: tied},
		{Branch: "second", Timestamp: tied},
	})
	require.NoError(testInstance, selectError)
	require.Equal(testInstance, "first", selected.Branch)
}
