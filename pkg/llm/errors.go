package llm

import (
	"errors"
	"fmt"
)

// ProviderError describes a failed vendor call, for a Provider
// implementation that classifies its own failures. Retryable indicates
// whether the engine's retry policy should consider this failure for a
// retry (network errors, 5xx responses, and rate limiting are typically
// retryable; auth and bad-request errors are not). The bundled
// anthropic, openai, and gemini providers do not return it: they wrap
// SDK errors with fmt.Errorf.
type ProviderError struct {
	Provider   string
	Retryable  bool
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm: %s provider error (status=%d, retryable=%v): %s: %v",
			e.Provider, e.StatusCode, e.Retryable, e.Reason, e.Err)
	}
	return fmt.Sprintf("llm: %s provider error (status=%d, retryable=%v): %s",
		e.Provider, e.StatusCode, e.Retryable, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a ProviderError flagged retryable.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
