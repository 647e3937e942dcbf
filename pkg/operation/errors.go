package operation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lonestarx1/opgraph/pkg/llm"
)

var (
	errNoCheckHook = errors.New("operation: ValidationOperation has no Check hook configured")
	errNoCallHook  = errors.New("operation: ExternalAPIOperation has no Call hook configured")
)

// FailureKind classifies why a step failed, controlling which
// failures the scheduler's retry policy considers retryable by
// default (Provider and Timeout only).
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureParse      FailureKind = "parse"
	FailureSuspicious FailureKind = "suspicious"
	FailureProvider   FailureKind = "provider"
	FailureTimeout    FailureKind = "timeout"
	FailureInternal   FailureKind = "internal"
)

// Retryable reports whether this failure kind is retried by default.
func (k FailureKind) Retryable() bool {
	return k == FailureProvider || k == FailureTimeout
}

// ValidationError aggregates every validation message produced by
// Validate, so a caller sees all problems at once rather than one at
// a time across repeated retries.
type ValidationError struct {
	OperationID string
	Messages    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("operation %q: validation failed: %s", e.OperationID, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Kind() FailureKind { return FailureValidation }

// SuspiciousContentError indicates the assembled prompt matched a
// prompt-injection heuristic and was not sent to any provider.
type SuspiciousContentError struct {
	OperationID string
	Reasons     []string
}

func (e *SuspiciousContentError) Error() string {
	return fmt.Sprintf("operation %q: suspicious content: %s", e.OperationID, strings.Join(e.Reasons, "; "))
}

func (e *SuspiciousContentError) Kind() FailureKind { return FailureSuspicious }

// TimeoutError indicates the provider call exceeded the tier's
// configured timeout.
type TimeoutError struct {
	OperationID string
	Timeout     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q: timed out after %s", e.OperationID, e.Timeout)
}

func (e *TimeoutError) Kind() FailureKind { return FailureTimeout }

// ParseError indicates the provider response could not be parsed as
// JSON even after repair. RawResponse is carried for forensic logging.
type ParseError struct {
	OperationID string
	RawResponse string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("operation %q: parse failed: %v", e.OperationID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Kind() FailureKind { return FailureParse }

// CancelledError indicates the step's context was cancelled — the
// pipeline run was aborted, or a sibling step's failure triggered
// cascade cancellation — before the operation completed.
type CancelledError struct {
	OperationID string
	Err         error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("operation %q: cancelled: %v", e.OperationID, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Kind() FailureKind { return FailureInternal }

// ProviderDispatchError wraps a failure from Provider.Complete that
// wasn't a context timeout. Its Kind defers to the wrapped
// *llm.ProviderError's Retryable flag when present — an auth or
// bad-request error classifies as FailureInternal so the scheduler
// doesn't burn a retry budget on a call that can never succeed, while
// a 5xx or rate-limit error classifies as FailureProvider and retries.
// An error that isn't an *llm.ProviderError at all (a registry lookup
// bug, a transport panic recovered upstream) defaults to FailureProvider,
// since it still originated from the provider-dispatch step.
type ProviderDispatchError struct {
	OperationID string
	Err         error
}

func (e *ProviderDispatchError) Error() string {
	return fmt.Sprintf("operation %q: provider dispatch failed: %v", e.OperationID, e.Err)
}

func (e *ProviderDispatchError) Unwrap() error { return e.Err }

func (e *ProviderDispatchError) Kind() FailureKind {
	var pe *llm.ProviderError
	if errors.As(e.Err, &pe) && !pe.Retryable {
		return FailureInternal
	}
	return FailureProvider
}

// InternalError wraps any failure that doesn't fit the other
// categories — a subclass hook panicking, a programmer error.
type InternalError struct {
	OperationID string
	Err         error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("operation %q: internal error: %v", e.OperationID, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func (e *InternalError) Kind() FailureKind { return FailureInternal }

// classifiable is implemented by every error type above, letting the
// engine's retry policy inspect a failure's kind without a type switch
// over every concrete type.
type classifiable interface {
	Kind() FailureKind
}

// ClassifyError returns the FailureKind of err if it is one of the
// concrete types above, or FailureInternal otherwise. The AI, Database
// and Validation operations wrap every failure in one of those types
// (a raw provider or selector error never escapes unwrapped);
// ExternalAPIOperation returns its Call hook's error as is, so such an
// error classifies by its own type, and an untyped one as
// FailureInternal — still handled deterministically rather than
// panicking.
func ClassifyError(err error) FailureKind {
	if c, ok := err.(classifiable); ok {
		return c.Kind()
	}
	return FailureInternal
}
