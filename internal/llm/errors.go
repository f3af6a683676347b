package llm

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// StatusError is an HTTP-level failure reported by the generative service.
type StatusError struct {
	Code    int
	Message string
	Cause   error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generative service returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("generative service returned %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// Throttled reports whether the service asked the caller to back off.
func (e *StatusError) Throttled() bool {
	return e.Code == http.StatusTooManyRequests || e.Code == http.StatusServiceUnavailable
}

// classifyError converts provider errors carrying an HTTP status into a
// StatusError. Other errors are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &StatusError{Code: gerr.Code, Message: gerr.Message, Cause: err}
	}
	return err
}
