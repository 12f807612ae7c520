// Package cerrors defines the small set of error kinds the storage core
// surfaces to its RPC-layer caller, and the context-chaining helpers used
// to build them.
package cerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error the way the RPC layer maps it to a status code.
type Kind int

const (
	// Unknown is the zero value; errors that never passed through New/Wrap
	// report Unknown.
	Unknown Kind = iota
	NotFound
	InvalidArgument
	FailedPrecondition
	Internal
	Aborted
	DeadlineExceeded
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case InvalidArgument:
		return "InvalidArgument"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Internal:
		return "Internal"
	case Aborted:
		return "Aborted"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case Unavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// kindError carries a Kind alongside the pkg/errors context chain so that
// errors.Cause/errors.Unwrap still work for callers that only care about
// the chain, while KindOf still recovers the classification.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Cause() error  { return e.err }

// New creates a new error of the given kind with a message.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Errorf creates a new error of the given kind, formatted.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap annotates err with msg, preserving (or assigning) its Kind.
//
// If err already carries a Kind, that Kind is preserved; kind is assigned
// only when err has none. This lets a caller at a storage boundary
// classify a bare I/O error as Internal while letting an
// already-classified NotFound propagate untouched.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	effective := KindOf(err)
	if effective == Unknown {
		effective = kind
	}
	return &kindError{kind: effective, err: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	effective := KindOf(err)
	if effective == Unknown {
		effective = kind
	}
	return &kindError{kind: effective, err: errors.Wrapf(err, format, args...)}
}

// KindOf extracts the Kind classification from err, walking the chain.
// Errors that never passed through this package report Unknown.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			return Unknown
		}
		err = cause
	}
	return Unknown
}

// Merge folds a secondary failure (typically a best-effort cleanup that
// also failed) into the primary error's context chain instead of
// discarding it. The primary error's Kind is preserved.
func Merge(primary, secondary error) error {
	if secondary == nil {
		return primary
	}
	if primary == nil {
		return secondary
	}
	return Wrapf(KindOf(primary), primary, "cleanup also failed: %s", secondary.Error())
}

// Is reports whether err, or anything in its chain, is of the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

var _ fmt.Stringer = Unknown
