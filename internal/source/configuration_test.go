package source_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/tagmirror/internal/gitmirror"
	"github.com/temirov/tagmirror/internal/source"
)

func TestDecodeConfigurationAcceptsCompleteNode(testInstance *testing.T) {
	configuration, decodeError := source.DecodeConfiguration(map[string]any{
		"kind":                "git_tag",
		"url":                 testSourceURLConstant,
		"track":               "main",
		"track-tags":          true,
		"track-extra":         []any{"release-1.x"},
		"match":               []any{"v*"},
		"exclude":             []any{"*-rc*"},
		"ref":                 "v1.2-0-g" + testPinnedCommitConstant,
		"checkout-submodules": false,
		"submodules": map[string]any{
			"lib": map[string]any{"url": "upstream:lib.git", "checkout": true},
		},
		"use-lfs": true,
	})
	require.NoError(testInstance, decodeError)

	require.Equal(testInstance, testSourceURLConstant, configuration.URL)
	require.Equal(testInstance, "main", configuration.Track)
	require.True(testInstance, configuration.TrackTags)
	require.Equal(testInstance, []string{"release-1.x"}, configuration.TrackExtra)
	require.Equal(testInstance, []string{"v*"}, configuration.Match)
	require.Equal(testInstance, []string{"*-rc*"}, configuration.Exclude)
	require.False(testInstance, configuration.CheckoutSubmodulesEnabled())
	require.True(testInstance, configuration.ShouldCheckout("lib"))
	require.False(testInstance, configuration.ShouldCheckout("docs"))
	require.Equal(testInstance, "upstream:lib.git", configuration.Submodules["lib"].URL)
	require.Equal(testInstance, gitmirror.LFSEnabled, configuration.LFSMode())
}

func TestDecodeConfigurationRejectsInvalidNodes(testInstance *testing.T) {
	testCases := []struct {
		name           string
		node           map[string]any
		expectedReason gitmirror.Reason
		expectedText   string
	}{
		{
			name:           "neither ref nor track",
			node:           map[string]any{"url": testSourceURLConstant},
			expectedReason: source.ReasonMissingTrackAndRef,
			expectedText:   "Git sources require a ref and/or track",
		},
		{
			name:           "unknown key",
			node:           map[string]any{"url": testSourceURLConstant, "ref": "v1", "branch": "main"},
			expectedReason: source.ReasonInvalidConfiguration,
			expectedText:   "branch",
		},
		{
			name:           "missing url",
			node:           map[string]any{"ref": "v1"},
			expectedReason: source.ReasonInvalidConfiguration,
			expectedText:   "url is required",
		},
		{
			name:           "invalid match pattern",
			node:           map[string]any{"url": testSourceURLConstant, "track": "main", "match": []any{"v[0-9"}},
			expectedReason: source.ReasonInvalidConfiguration,
			expectedText:   "match pattern 'v[0-9' is invalid",
		},
		{
			name:           "empty track-extra entry",
			node:           map[string]any{"url": testSourceURLConstant, "track": "main", "track-extra": []any{""}},
			expectedReason: source.ReasonInvalidConfiguration,
			expectedText:   "track-extra entry #1 is empty",
		},
		{
			name:           "wrong value type",
			node:           map[string]any{"url": testSourceURLConstant, "ref": "v1", "use-lfs": "maybe"},
			expectedReason: source.ReasonInvalidConfiguration,
			expectedText:   "use-lfs",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			_, decodeError := source.DecodeConfiguration(testCase.node)
			require.Error(subTest, decodeError)
			reason, classified := gitmirror.ReasonOf(decodeError)
			require.True(subTest, classified)
			require.Equal(subTest, testCase.expectedReason, reason)
			require.Contains(subTest, decodeError.Error(), testCase.expectedText)
			require.NotContains(subTest, decodeError.Error(), "%!")
		})
	}
}

func TestValidateReportsEveryProblem(testInstance *testing.T) {
	configuration := source.Configuration{
		Track:   "main",
		Match:   []string{"v[0-9"},
		Exclude: []string{"[rc"},
	}

	validationError := configuration.Validate()
	require.Error(testInstance, validationError)
	require.Contains(testInstance, validationError.Error(), "url is required")
	require.Contains(testInstance, validationError.Error(), "match pattern")
	require.Contains(testInstance, validationError.Error(), "exclude pattern")
}

func TestLFSModeFollowsUseLFS(testInstance *testing.T) {
	enabled := true
	disabled := false
	testCases := []struct {
		name     string
		useLFS   *bool
		expected gitmirror.LFSMode
	}{
		{name: "unset", useLFS: nil, expected: gitmirror.LFSUnset},
		{name: "enabled", useLFS: &enabled, expected: gitmirror.LFSEnabled},
		{name: "disabled", useLFS: &disabled, expected: gitmirror.LFSDisabled},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expected, source.Configuration{UseLFS: testCase.useLFS}.LFSMode())
		})
	}
}

func TestShouldCheckoutPrefersPerPathOverride(testInstance *testing.T) {
	disabled := false
	configuration := source.Configuration{
		Submodules: map[string]source.SubmoduleConfiguration{
			"docs": {Checkout: &disabled},
			"lib":  {URL: "upstream:lib.git"},
		},
	}

	require.True(testInstance, configuration.CheckoutSubmodulesEnabled())
	require.False(testInstance, configuration.ShouldCheckout("docs"))
	require.True(testInstance, configuration.ShouldCheckout("lib"))
	require.True(testInstance, configuration.ShouldCheckout("vendor"))
}
