// Package errors carries the module's error handling: thin wrappers over
// the standard library's wrapping verbs (this file), a TypedError
// classification for remote/transport failures (error_types.go), and the
// cache-specific error kinds the pools return to their callers
// (vfs_errors.go). Call sites import this package instead of the standard
// library so both surfaces come from one place.
package errors

import (
	"errors"
	"fmt"
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap adds context to err, preserving the chain for Is/As. A nil err stays
// nil so call sites can wrap unconditionally.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Unwrap returns the next error in err's chain, if any.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type, setting
// target and reporting whether one was found.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
