package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeInvalid          ErrorCode = "INVALID"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeMalformedTime    ErrorCode = "MALFORMED_TIME"
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeInternal         ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any domain error carrying the same code and message, so wrapped
// sentinels still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Unavailable marks err as a store failure. The result matches
// ErrStoreUnavailable and still unwraps to err.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err, ErrCodeStoreUnavailable) {
		return err
	}
	return WrapError(ErrCodeStoreUnavailable, op, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
}

// Common domain errors.
var (
	ErrUnauthenticated  = NewError(ErrCodeUnauthorized, "no active owner")
	ErrTaskNotFound     = NewError(ErrCodeNotFound, "task not found")
	ErrSessionNotFound  = NewError(ErrCodeNotFound, "session not found")
	ErrTemplateEmpty    = NewError(ErrCodeNotFound, "no saved template")
	ErrMalformedTime    = NewError(ErrCodeMalformedTime, "malformed time")
	ErrStoreUnavailable = NewError(ErrCodeStoreUnavailable, "store unavailable")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
