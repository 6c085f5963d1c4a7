package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeInvalid           ErrorCode = "INVALID"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeLockTimeout       ErrorCode = "LOCK_TIMEOUT"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal          ErrorCode = "INTERNAL"
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

// Is matches another *Error by code and message so wrapped sentinels compare equal.
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

// Invalidf builds a validation error with a formatted message.
func Invalidf(format string, args ...interface{}) *Error {
	return NewError(ErrCodeInvalid, fmt.Sprintf(format, args...))
}

// Common domain errors.
var (
	ErrAccountNotFound     = NewError(ErrCodeNotFound, "bank account not found")
	ErrTransactionNotFound = NewError(ErrCodeNotFound, "bank transaction not found")
	ErrInsufficientFunds   = NewError(ErrCodeInsufficientFunds, "insufficient funds")
	ErrInvalidTransition   = NewError(ErrCodeInvalidTransition, "invalid state transition")
	ErrLockTimeout         = NewError(ErrCodeLockTimeout, "lock not acquired in time")
	ErrVersionConflict     = NewError(ErrCodeConflict, "aggregate was modified concurrently")
	ErrEmailAlreadyExists  = NewError(ErrCodeInvalid, "email already registered")
	ErrInvalidPayload      = NewError(ErrCodeInvalid, "invalid payload")
	ErrBlankAggregateID    = NewError(ErrCodeInvalid, "aggregate id must not be blank")
	ErrNonPositiveAmount   = NewError(ErrCodeInvalid, "amount must be greater than zero")
	ErrNegativeAmount      = NewError(ErrCodeInvalid, "amount must not be negative")
	ErrUnauthorized        = NewError(ErrCodeUnauthorized, "unauthorized")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error in the chain, INTERNAL otherwise.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether redelivering the same message may succeed later.
// Business rule violations and malformed input never will.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrCodeLockTimeout, ErrCodeNotFound, ErrCodeInternal:
		return true
	case ErrCodeConflict:
		return errors.Is(err, ErrVersionConflict)
	default:
		return false
	}
}
