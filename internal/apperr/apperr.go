// Package apperr carries the error kinds callers branch on.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInsufficientStock Kind = "insufficient_stock"
	KindValidation        Kind = "validation"
)

// Error is a domain error with a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound: the referenced entity does not exist.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict: uniqueness violation or a business rule blocks the operation.
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// InsufficientStock: a withdrawal or reservation exceeds what is available.
func InsufficientStock(format string, args ...any) *Error {
	return newf(KindInsufficientStock, format, args...)
}

// Validation: malformed input, rejected before persistence.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsInsufficientStock(err error) bool { return KindOf(err) == KindInsufficientStock }
func IsValidation(err error) bool        { return KindOf(err) == KindValidation }
