package errors

import (
	"github.com/cockroachdb/errors"
)

// Re-exports from the underlying error library so callers need only one
// errors import alongside the typed constructors below.

// New creates an error with a simple message.
func New(msg string) error {
	return errors.New(msg)
}

// Newf creates an error with a formatted message.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// Wrap annotates err with a message, preserving the chain for Is/As.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches reference.
func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
