package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownProvider is wrapped in a fatal ProviderError when a provider
	// list names an identifier missing from the registry.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoProviders is returned when neither the call nor the registry
	// supplies any provider.
	ErrNoProviders = errors.New("no providers configured")
)

// ProviderError is one failed provider call, classified as retryable or
// fatal.
type ProviderError struct {
	Provider string
	Outcome  Outcome
	Err      error
}

func (e *ProviderError) Error() string {
	kind := "fatal"
	if e.Outcome == OutcomeRetryable {
		kind = "retryable"
	}
	return fmt.Sprintf("provider %s: %s failure: %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure allows advancing to the next provider.
func (e *ProviderError) Retryable() bool { return e.Outcome == OutcomeRetryable }

// IsRetryable reports whether err carries a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

// IsFatal reports whether err carries a fatal provider failure.
func IsFatal(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && !pe.Retryable()
}

// TimeoutError marks a call abandoned after the per-call timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call timed out after %s", e.After)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ExtractionFailedError is returned once every provider failed with a
// retryable error. Last is the most recent failure.
type ExtractionFailedError struct {
	Attempts []Attempt
	Last     error
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("extraction failed after %d attempts: %v", len(e.Attempts), e.Last)
}

func (e *ExtractionFailedError) Unwrap() error { return e.Last }
