// Package apperr defines the error kinds surfaced by kioku operations.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for reporting to callers.
type Kind int

const (
	// Internal is any error that has not been classified.
	Internal Kind = iota
	// Validation covers malformed or missing input, empty content and unsupported file types.
	Validation
	// NotFound is returned when a collection, document or conversation is absent.
	NotFound
	// AlreadyExists is returned when creating a collection whose name is taken.
	AlreadyExists
	// StorageUnavailable means the backing store could not be reached.
	StorageUnavailable
	// ModelUnavailable means the embedding provider failed to load or infer.
	ModelUnavailable
	// TransactionFailure means a transaction hit an unexpected error and was rolled back.
	TransactionFailure
)

// String returns the snake_case name used in JSON error bodies.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case StorageUnavailable:
		return "storage_unavailable"
	case ModelUnavailable:
		return "model_unavailable"
	case TransactionFailure:
		return "transaction_failure"
	default:
		return "internal_error"
	}
}

// Error is a classified error. Message is safe to show to clients for 4xx kinds.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind with no message,
// so that errors.Is(err, apperr.ErrNotFound) matches every NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &Error{Kind: Validation}
	ErrNotFound           = &Error{Kind: NotFound}
	ErrAlreadyExists      = &Error{Kind: AlreadyExists}
	ErrStorageUnavailable = &Error{Kind: StorageUnavailable}
	ErrModelUnavailable   = &Error{Kind: ModelUnavailable}
	ErrTransactionFailure = &Error{Kind: TransactionFailure}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf returns a Validation error.
func Validationf(format string, args ...interface{}) *Error {
	return newf(Validation, format, args...)
}

// NotFoundf returns a NotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return newf(NotFound, format, args...)
}

// AlreadyExistsf returns an AlreadyExists error.
func AlreadyExistsf(format string, args ...interface{}) *Error {
	return newf(AlreadyExists, format, args...)
}

// Wrap classifies err under kind with a message. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Internal.
// Context cancellation and deadline errors are reported as StorageUnavailable
// since they only surface from blocked storage or model calls.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StorageUnavailable
	}
	return Internal
}

// HasKind reports whether err carries a classification.
func HasKind(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
