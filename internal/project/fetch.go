package project

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/gitmirror"
)

const (
	overridesNotConfiguredMessageConstant = "alias override provider not configured"
	fetchRetryMessageConstant             = "fetch failed temporarily, retrying"
	fetchAttemptFailedMessageConstant     = "fetch attempt failed"
	fetchCompletedMessageConstant         = "fetch completed"
	logFieldURLConstant                   = "url"
	logFieldOverrideConstant              = "alias_override"
	logFieldDelayConstant                 = "delay"
)

// ErrAliasOverridesNotConfigured indicates the orchestrator was built without an override provider.
var ErrAliasOverridesNotConfigured = errors.New(overridesNotConfiguredMessageConstant)

// Fetcher downloads one remote into its local mirror.
type Fetcher interface {
	Fetch(executionContext context.Context, aliasOverride string) error
	RemoteURL() string
}

// AliasOverrideProvider lists the alias overrides to try for a URL.
type AliasOverrideProvider interface {
	AliasOverrides(url string) []string
}

// FetchOrchestrator fetches every fetcher, trying each alias override in turn and retrying temporary failures.
type FetchOrchestrator struct {
	overrides      AliasOverrideProvider
	logger         *zap.Logger
	retries        uint64
	initialBackoff time.Duration
	maximumBackoff time.Duration
}

// NewFetchOrchestrator constructs a FetchOrchestrator.
func NewFetchOrchestrator(overrides AliasOverrideProvider, configuration FetchConfiguration, logger *zap.Logger) (*FetchOrchestrator, error) {
	if overrides == nil {
		return nil, ErrAliasOverridesNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := configuration.Retries
	if retries < 0 {
		retries = 0
	}
	return &FetchOrchestrator{
		overrides:      overrides,
		logger:         logger,
		retries:        uint64(retries),
		initialBackoff: configuration.InitialBackoff,
		maximumBackoff: configuration.MaximumBackoff,
	}, nil
}

// Fetch tries every alias override of the fetcher's URL until one succeeds.
// The returned error aggregates the failure of every attempt.
func (orchestrator *FetchOrchestrator) Fetch(executionContext context.Context, fetcher Fetcher) error {
	var attemptErrors *multierror.Error
	for _, override := range orchestrator.overrides.AliasOverrides(fetcher.RemoteURL()) {
		attemptError := orchestrator.attempt(executionContext, fetcher, override)
		if attemptError == nil {
			orchestrator.logger.Debug(
				fetchCompletedMessageConstant,
				zap.String(logFieldURLConstant, fetcher.RemoteURL()),
				zap.String(logFieldOverrideConstant, override),
			)
			return nil
		}
		orchestrator.logger.Debug(
			fetchAttemptFailedMessageConstant,
			zap.String(logFieldURLConstant, fetcher.RemoteURL()),
			zap.String(logFieldOverrideConstant, override),
			zap.Error(attemptError),
		)
		attemptErrors = multierror.Append(attemptErrors, attemptError)
		if executionContext.Err() != nil {
			break
		}
	}
	return attemptErrors.ErrorOrNil()
}

func (orchestrator *FetchOrchestrator) attempt(executionContext context.Context, fetcher Fetcher, override string) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	if orchestrator.initialBackoff > 0 {
		exponentialBackoff.InitialInterval = orchestrator.initialBackoff
	}
	if orchestrator.maximumBackoff > 0 {
		exponentialBackoff.MaxInterval = orchestrator.maximumBackoff
	}
	exponentialBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exponentialBackoff, orchestrator.retries), executionContext)
	operation := func() error {
		fetchError := fetcher.Fetch(executionContext, override)
		if fetchError != nil && !gitmirror.IsTemporary(fetchError) {
			return backoff.Permanent(fetchError)
		}
		return fetchError
	}
	notify := func(fetchError error, delay time.Duration) {
		orchestrator.logger.Warn(
			fetchRetryMessageConstant,
			zap.String(logFieldURLConstant, fetcher.RemoteURL()),
			zap.String(logFieldOverrideConstant, override),
			zap.Duration(logFieldDelayConstant, delay),
			zap.Error(fetchError),
		)
	}
	return backoff.RetryNotify(operation, policy, notify)
}
