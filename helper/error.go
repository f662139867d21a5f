package helper

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and HTTP status decisions.
type Kind int

const (
	// KindInternal is an unexpected or programmer error. Never retried silently.
	KindInternal Kind = iota
	// KindInvalidInput is a bad request shape or value. Not retried.
	KindInvalidInput
	// KindPortTimeout is a port call that exceeded its deadline. Transient.
	KindPortTimeout
	// KindPortUnavailable is a port that could not be reached. Transient.
	KindPortUnavailable
	// KindPermanentPort is a malformed payload or unsupported kind. Goes straight to quarantine.
	KindPermanentPort
	// KindStorage is an unreachable or failing chunk/job store. Transient.
	KindStorage
)

// String returns the wire name of the kind, used in error responses and job records.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindPortTimeout:
		return "port_timeout"
	case KindPortUnavailable:
		return "port_unavailable"
	case KindPermanentPort:
		return "permanent_port_error"
	case KindStorage:
		return "storage_error"
	default:
		return "internal_error"
	}
}

// Error wraps an underlying error with the operation that failed and a failure kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the failed operation. The kind of a wrapped *Error is
// preserved so classification survives layered wrapping.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// NewKindError wraps err with the failed operation and an explicit kind.
func NewKindError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the failure kind of err. Deadline and cancellation errors map
// to KindPortTimeout, everything unclassified to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindPortTimeout
	}
	return KindInternal
}

// IsTransient reports whether err is worth retrying. Internal errors count as
// transient so that a bug fix can drain the affected jobs via reprocessing.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindPortTimeout, KindPortUnavailable, KindStorage, KindInternal:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether err can never succeed on retry.
func IsPermanent(err error) bool {
	switch KindOf(err) {
	case KindInvalidInput, KindPermanentPort:
		return true
	default:
		return false
	}
}
