// Package errors provides structured error handling for Attendly services
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an application error code
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrBadRequest ErrorCode = "BAD_REQUEST"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Input errors: the referenced entity does not exist. Permanent, the
	// caller must not retry with the same input.
	ErrEventNotFound ErrorCode = "EVENT_NOT_FOUND"
	ErrGuestNotFound ErrorCode = "GUEST_NOT_FOUND"

	// Dependency errors: a repository, cache, or signal provider failed or
	// timed out. Transient, safe to retry with backoff.
	ErrRepositoryUnavailable ErrorCode = "REPOSITORY_UNAVAILABLE"
	ErrCacheUnavailable      ErrorCode = "CACHE_UNAVAILABLE"
	ErrProviderUnavailable   ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrTimeout               ErrorCode = "TIMEOUT"

	// Invariant violations: a score left [0,100] or a weight left [0,1].
	// Indicates a bug in factor construction, never retryable.
	ErrInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

// Kind classifies errors the way callers need to decide fail-open vs
// fail-closed.
type Kind int

const (
	KindInternal Kind = iota
	KindInput
	KindDependency
	KindInvariant
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Kind       Kind                   `json:"-"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Err        error                  `json:"-"` // Original error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the original error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       ErrInternal,
		Kind:       KindInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest,
		Kind:       KindInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return &AppError{
		Code:       ErrValidation,
		Kind:       KindInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// EventNotFound creates an event not found error
func EventNotFound(eventID string) *AppError {
	return (&AppError{
		Code:       ErrEventNotFound,
		Kind:       KindInput,
		Message:    "Event not found",
		StatusCode: http.StatusNotFound,
	}).WithMetadata("event_id", eventID)
}

// GuestNotFound creates a guest not found error
func GuestNotFound(guestID string) *AppError {
	return (&AppError{
		Code:       ErrGuestNotFound,
		Kind:       KindInput,
		Message:    "Guest not found",
		StatusCode: http.StatusNotFound,
	}).WithMetadata("guest_id", guestID)
}

// RepositoryError wraps a failed repository read or append
func RepositoryError(operation string, err error) *AppError {
	return &AppError{
		Code:       ErrRepositoryUnavailable,
		Kind:       KindDependency,
		Message:    "Repository operation failed",
		Details:    operation,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// CacheError wraps a failed cache operation
func CacheError(operation string, err error) *AppError {
	return &AppError{
		Code:       ErrCacheUnavailable,
		Kind:       KindDependency,
		Message:    "Cache operation failed",
		Details:    operation,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// ProviderError wraps a failed external signal provider call
func ProviderError(provider string, err error) *AppError {
	return (&AppError{
		Code:       ErrProviderUnavailable,
		Kind:       KindDependency,
		Message:    "Signal provider unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}).WithMetadata("provider", provider)
}

// Timeout creates a timeout error
func Timeout(operation string) *AppError {
	return &AppError{
		Code:       ErrTimeout,
		Kind:       KindDependency,
		Message:    "Operation timed out",
		Details:    operation,
		StatusCode: http.StatusGatewayTimeout,
	}
}

// InvariantViolation reports a broken computation invariant
func InvariantViolation(message string) *AppError {
	return &AppError{
		Code:       ErrInvariantViolation,
		Kind:       KindInvariant,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// IsTransient reports whether the error is a dependency failure that the
// caller may retry with backoff.
func IsTransient(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind == KindDependency
	}
	return false
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON response structure for errors
type ErrorResponse struct {
	Error     ErrorCode              `json:"error"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HandleError sends an error response to the client
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = Internal("An unexpected error occurred", err)
	}

	requestID, _ := c.Get("request_id")
	reqIDStr, _ := requestID.(string)

	response := ErrorResponse{
		Error:     appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Metadata:  appErr.Metadata,
		RequestID: reqIDStr,
	}

	c.JSON(appErr.StatusCode, response)
}

// ErrorHandler is a middleware that handles panics and converts them to errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				var appErr *AppError

				switch e := err.(type) {
				case *AppError:
					appErr = e
				case error:
					appErr = Internal("Internal server error", e)
				default:
					appErr = Internal("Internal server error", fmt.Errorf("%v", err))
				}

				HandleError(c, appErr)
				c.Abort()
			}
		}()

		c.Next()
	}
}
