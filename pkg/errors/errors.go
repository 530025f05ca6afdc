package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

// Common errors
var (
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized   = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden      = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
)

// ErrUniqueViolation is returned by repositories when an insert lost a
// uniqueness race. Callers re-read the winning row instead of failing; it
// never crosses the HTTP boundary because the tracking endpoints answer 202
// regardless of pipeline outcome.
var ErrUniqueViolation = errors.New("unique constraint violation")

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a 400 error, optionally carrying the cause in
// the details field.
func NewValidationError(message string, cause error) *AppError {
	e := &AppError{Code: http.StatusBadRequest, Message: message}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewNotFoundError creates a 404 error, optionally carrying the cause in
// the details field.
func NewNotFoundError(message string, cause error) *AppError {
	e := &AppError{Code: http.StatusNotFound, Message: message}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// WithDetails adds details to an error
func WithDetails(err *AppError, details string) *AppError {
	return &AppError{
		Code:    err.Code,
		Message: err.Message,
		Details: details,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetStatusCode returns the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
