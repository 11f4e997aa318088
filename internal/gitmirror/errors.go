package gitmirror

import (
	"errors"
	"fmt"
)

// Reason classifies a SourceError for callers and for logs.
type Reason string

// Known failure reasons.
const (
	ReasonCloneFailed        Reason = "clone-failed"
	ReasonFetchFailed        Reason = "fetch-failed"
	ReasonMoveFailed         Reason = "move-failed"
	ReasonRemoteFailed       Reason = "remote-failed"
	ReasonRefNotFound        Reason = "ref-not-found"
	ReasonDescribeFailed     Reason = "describe-failed"
	ReasonTimestampFailed    Reason = "timestamp-failed"
	ReasonStageFailed        Reason = "stage-failed"
	ReasonCheckoutFailed     Reason = "checkout-failed"
	ReasonGitmodulesFailed   Reason = "gitmodules-failed"
	ReasonTreeListingFailed  Reason = "tree-listing-failed"
	ReasonLFSFailed          Reason = "lfs-failed"
	ReasonMirrorInaccessible Reason = "mirror-inaccessible"
	ReasonFatalWarning       Reason = "fatal-warning"
)

// SourceError is the failure type of every mirror operation.
// Temporary errors are network-class failures the caller may retry.
type SourceError struct {
	Reason    Reason
	Message   string
	Detail    string
	Temporary bool
	Cause     error
}

// Error renders the message and the wrapped cause.
func (sourceError *SourceError) Error() string {
	if sourceError.Cause == nil {
		return sourceError.Message
	}
	return fmt.Sprintf("%s: %v", sourceError.Message, sourceError.Cause)
}

// Unwrap exposes the wrapped cause.
func (sourceError *SourceError) Unwrap() error {
	return sourceError.Cause
}

// IsTemporary reports whether err, or any error it wraps, is a temporary SourceError.
func IsTemporary(err error) bool {
	var sourceError *SourceError
	if errors.As(err, &sourceError) {
		return sourceError.Temporary
	}
	return false
}

// ReasonOf returns the Reason of the first SourceError in the chain.
func ReasonOf(err error) (Reason, bool) {
	var sourceError *SourceError
	if errors.As(err, &sourceError) {
		return sourceError.Reason, true
	}
	return "", false
}

func newFatalError(reason Reason, cause error, messageFormat string, arguments ...any) *SourceError {
	return &SourceError{Reason: reason, Message: fmt.Sprintf(messageFormat, arguments...), Cause: cause}
}

func newTemporaryError(reason Reason, cause error, messageFormat string, arguments ...any) *SourceError {
	return &SourceError{Reason: reason, Message: fmt.Sprintf(messageFormat, arguments...), Cause: cause, Temporary: true}
}
