// Package errors is the error taxonomy shared by the store, the dialogue and
// the HTTP surfaces. Each code maps to one HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeExpired            = "HOLD_EXPIRED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeTooLarge           = "REQUEST_TOO_LARGE"
	CodeTimeout            = "TIMEOUT"
	CodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	CodeFatalConfiguration = "FATAL_CONFIGURATION"
	CodeInternal           = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeValidation:         http.StatusUnprocessableEntity,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeExpired:            http.StatusGone,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeTooLarge:           http.StatusRequestEntityTooLarge,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeUpstreamTimeout:    http.StatusGatewayTimeout,
	CodeFatalConfiguration: http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
}

type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode is the HTTP status for the error's code, 500 for unknown codes.
func (e *AppError) StatusCode() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func InvalidInput(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Details: details}
}

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: resource + " not found"}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// Conflict reports a slot that is not in the state the caller expected:
// already held by another session or already booked.
func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// Expired reports a hold whose TTL lapsed before confirmation.
func Expired(message string) *AppError {
	return &AppError{Code: CodeExpired, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

func RateLimited(message string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message}
}

func TooLarge(limit int64) *AppError {
	return &AppError{
		Code:    CodeTooLarge,
		Message: fmt.Sprintf("Request body exceeds %d bytes", limit),
		Details: map[string]any{"limit": limit},
	}
}

func Timeout(message string) *AppError {
	return &AppError{Code: CodeTimeout, Message: message}
}

// UpstreamTimeout reports an external dependency (language model, embeddings,
// speech synthesis) that did not answer in time, after retries.
func UpstreamTimeout(upstream string, err error) *AppError {
	return &AppError{
		Code:    CodeUpstreamTimeout,
		Message: upstream + " did not respond in time",
		Details: map[string]any{"upstream": upstream},
		Err:     err,
	}
}

func FatalConfiguration(message string, err error) *AppError {
	return &AppError{Code: CodeFatalConfiguration, Message: message, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// HasCode reports whether err, or anything it wraps, is an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError returns the AppError in err's chain, or wraps err as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
