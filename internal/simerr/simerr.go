// Package simerr defines the error kinds shared by every simulation subsystem.
// Subsystems declare their own sentinels on top of these kinds so callers can
// match either the precise condition or the broad category with errors.Is.
package simerr

import "errors"

// Kind sentinels. NotFound and InvalidState abort the triggering action.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// kindError pairs a specific message with its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel error that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Kind returns the kind sentinel err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidState, ErrInsufficientResource, ErrInvalidArgument} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a stable machine-readable name for err's kind.
func KindName(err error) string {
	switch Kind(err) {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrInvalidState:
		return "INVALID_STATE"
	case ErrInsufficientResource:
		return "INSUFFICIENT_RESOURCE"
	case ErrInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "UNKNOWN"
	}
}
