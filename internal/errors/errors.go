package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")

	// Business errors
	ErrInvalidState   = errors.New("operation not allowed in current state")
	ErrDuplicateOffer = errors.New("driver already has an offer on this request")
	ErrAlreadyDecided = errors.New("request already decided")
	ErrUnavailable    = errors.New("storage unavailable")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common API errors
func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func InvalidInput(message string) *APIError {
	return NewAPIError("invalid_input", message, http.StatusBadRequest)
}

func Forbidden(message string) *APIError {
	return NewAPIError("forbidden", message, http.StatusForbidden)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

func InvalidState(attempted, current string) *APIError {
	return NewAPIError("invalid_state", fmt.Sprintf("cannot %s a request that is %s", attempted, current), http.StatusBadRequest)
}

func DuplicateOffer() *APIError {
	return NewAPIError("duplicate_offer", "you already have an offer on this request", http.StatusConflict)
}

func AlreadyDecided() *APIError {
	return NewAPIError("already_decided", "this request was already settled", http.StatusConflict)
}

func Unavailable() *APIError {
	return NewAPIError("unavailable", "storage is temporarily unavailable, retry the operation", http.StatusServiceUnavailable)
}
