package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrRejected
	ErrUnauthorized
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Err       error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// As extracts an *AppError from err, if there is one in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

// NewBadRequest covers validation failures; the message is field-specific
// and safe to surface to the submitting client.
func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewRejected covers abuse-filter rejections (honeypot, too-fast,
// rate-limited). Expected outcome for bot traffic, never retried.
func NewRejected(reason string) *AppError {
	return &AppError{
		Code:    ErrRejected,
		Message: reason,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:      ErrInternal,
		Message:   "internal server error",
		Retryable: true,
		Err:       err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}
