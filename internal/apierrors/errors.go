// Package apierrors defines the error taxonomy returned by the HTTP API.
// Every client-visible failure maps to one of the codes below; unclassified
// errors are logged server-side and surfaced as a generic internal error.
package apierrors

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeInternal     = "internal_error"
)

// APIError is a client-visible error with an HTTP status and stable code.
// Field is set only for validation errors and names the offending input.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Validation(field, message string) *APIError {
	return &APIError{Code: CodeValidation, Message: message, Field: field, Status: http.StatusBadRequest}
}

func NotFound(message string) *APIError {
	return &APIError{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func Unauthorized(message string) *APIError {
	return &APIError{Code: CodeUnauthorized, Message: message, Status: http.StatusForbidden}
}

func RateLimited(message string) *APIError {
	return &APIError{Code: CodeRateLimited, Message: message, Status: http.StatusTooManyRequests}
}

// Internal hides the underlying error from the caller; the original must be
// logged by whoever constructs it.
func Internal(message string) *APIError {
	return &APIError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError}
}
