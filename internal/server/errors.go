package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/brd-pipeline/internal/artifacts"
	"github.com/jonathan/brd-pipeline/internal/ingestion"
	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/pipeline"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// validationError converts validator output into an ErrValidation naming the
// first failing field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ErrValidation{Field: fe.Field(), Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag())}
	}
	return &ErrValidation{Message: err.Error()}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *ErrValidation
		invalid     *pipeline.InvalidTransitionError
		dependency  *pipeline.DependencyError
		busy        *jobs.BusyError
		jobNotFound *jobs.NotFoundError
		notFound    *artifacts.NotFoundError
		unsupported *ingestion.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &invalid), errors.As(err, &unsupported),
		errors.Is(err, ingestion.ErrEmptyDocument), errors.Is(err, ingestion.ErrInvalidEncoding):
		return http.StatusBadRequest
	case errors.As(err, &jobNotFound), errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &busy), errors.As(err, &dependency):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrShuttingDown), errors.Is(err, jobs.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
