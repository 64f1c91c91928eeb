package common

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrNotFound reports that the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID reports an identifier that is not well-formed.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrStoreUnavailable wraps infrastructure failures and query timeouts.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// BadRequest builds a 400 AppError for malformed input that is not a field validation failure.
func BadRequest(message string, err error) *AppError {
	return NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
}

// NotFound builds a 404 AppError wrapping ErrNotFound.
func NotFound(message string) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, ErrNotFound)
}

// InvalidID builds a 400 AppError wrapping ErrInvalidID.
func InvalidID(message string) *AppError {
	return NewAppError("INVALID_ID", message, http.StatusBadRequest, ErrInvalidID)
}

// StoreError converts a store failure into an AppError, keeping the sentinel reachable via errors.Is.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &AppError{Code: "NOT_FOUND", Message: "resource not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrInvalidID):
		return &AppError{Code: "INVALID_ID", Message: "invalid id", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: "STORE_UNAVAILABLE", Message: "store unavailable", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	}
	return err
}

// WriteError renders any error using the canonical error envelope.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "validation failed", map[string]any{"fields": verr.Fields})
		return
	}
	var appErr *AppError
	if errors.As(StoreError(err), &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message := appErr.Message
		if message == "" {
			message = appErr.Error()
		}
		JSONError(w, status, appErr.Code, message, appErr.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
