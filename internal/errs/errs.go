// Package errs holds the error kinds shared by every package of the client.
package errs

import (
	"errors"
	"fmt"
)

// ErrQueueClosed is returned for commands pushed to (or pending in) a closed command queue.
var ErrQueueClosed = errors.New("command queue closed")

// TypeError reports malformed input.
type TypeError struct {
	name    string
	message string
}

func NewTypeError(format string, args ...interface{}) error {
	return TypeError{
		name:    "TypeError",
		message: fmt.Sprintf(format, args...),
	}
}

func (e TypeError) Error() string {
	return fmt.Sprintf("%s:%s", e.name, e.message)
}

// UnsupportedError indicating not support for something, such as a media kind without
// any negotiable codec. It is permanent and should not be retried.
type UnsupportedError struct {
	name    string
	message string
}

func NewUnsupportedError(format string, args ...interface{}) error {
	return UnsupportedError{
		name:    "UnsupportedError",
		message: fmt.Sprintf(format, args...),
	}
}

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("%s:%s", e.name, e.message)
}

// InvalidStateError produced when calling a method in an invalid state.
type InvalidStateError struct {
	name    string
	message string
}

func NewInvalidStateError(format string, args ...interface{}) error {
	return InvalidStateError{
		name:    "InvalidStateError",
		message: fmt.Sprintf(format, args...),
	}
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s:%s", e.name, e.message)
}

// TimeoutError produced when a remote request exceeds its deadline.
type TimeoutError struct {
	name    string
	message string
}

func NewTimeoutError(format string, args ...interface{}) error {
	return TimeoutError{
		name:    "TimeoutError",
		message: fmt.Sprintf(format, args...),
	}
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s:%s", e.name, e.message)
}

// NotFoundError produced when a sender, receiver or track is missing in the engine.
type NotFoundError struct {
	name    string
	message string
}

func NewNotFoundError(format string, args ...interface{}) error {
	return NotFoundError{
		name:    "NotFoundError",
		message: fmt.Sprintf(format, args...),
	}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s:%s", e.name, e.message)
}
