package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/jonathan/lead-collector/internal/export"
	"github.com/jonathan/lead-collector/internal/fetch"
	"github.com/jonathan/lead-collector/internal/jobs"
	"github.com/jonathan/lead-collector/internal/places"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNoResults indicates there is nothing to export
type ErrNoResults struct {
	Message string
}

func (e *ErrNoResults) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var noResults *ErrNoResults
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr),
		errors.Is(err, places.ErrInvalidQuery),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound), errors.As(err, &noResults):
		return http.StatusNotFound
	case errors.Is(err, places.ErrUpstreamUnavailable), errors.Is(err, fetch.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// validationError converts the first validator failure into an ErrValidation.
func validationError(err error) *ErrValidation {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := fe.Tag()
		if fe.Tag() == "required" {
			msg = "is required"
		}
		return &ErrValidation{Field: fe.Field(), Message: msg}
	}
	return &ErrValidation{Field: "body", Message: "invalid request"}
}
