package generation

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jonathan/brd-pipeline/internal/llm"
)

// SchemaViolationError is returned for a response that is not JSON, does not
// match the kind's schema, or fails semantic checks. It is retryable.
type SchemaViolationError struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *SchemaViolationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s response rejected: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s response rejected: %s", e.Kind, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Cause
}

// FatalError is a non-retryable failure of the generative service, such as a
// malformed request.
type FatalError struct {
	Kind    Kind
	Attempt int
	Cause   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s call failed on attempt %d: %v", e.Kind, e.Attempt, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// ExhaustedError is returned when every attempt of the retry budget failed
// with a retryable error. Last holds the final underlying error.
type ExhaustedError struct {
	Kind     Kind
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("external service exhausted after %d attempts for %s: %v", e.Attempts, e.Kind, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Retryable reports whether a single attempt's failure should consume another
// attempt of the budget. Throttling, timeouts and rejected responses are
// retryable; everything else is fatal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var violation *SchemaViolationError
	if errors.As(err, &violation) {
		return true
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Throttled()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
