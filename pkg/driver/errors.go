package driver

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("wait timed out")
	// ErrClosed is returned by operations on a closed driver.
	ErrClosed = errors.New("driver closed")
	// ErrConnectionLost indicates the browser stopped responding.
	ErrConnectionLost = errors.New("browser connection lost")
	// ErrNotFound indicates the selector matched nothing.
	ErrNotFound = errors.New("element not found")
)

// CommandError wraps a failed browser command with its method name.
type CommandError struct {
	Method  string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("browser command %s: %s: %v", e.Method, e.Message, e.Err)
	}
	return fmt.Sprintf("browser command %s: %s", e.Method, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// WrapCommandError wraps err with command context.
func WrapCommandError(method, message string, err error) *CommandError {
	return &CommandError{Method: method, Message: message, Err: err}
}

// IsTimeout reports whether err is a bounded-wait expiry. Context
// deadlines count: a wait cut short by its deadline is still a timeout
// from the caller's point of view.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsConnectionError reports whether err means the browser itself is
// unusable and the session should be discarded.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrClosed)
}
