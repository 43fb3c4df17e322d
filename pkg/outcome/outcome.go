// Package outcome defines the typed results exchanged between the
// supervisor and its worker for a single work item. An Outcome always
// describes what happened to one item; a Fatality describes a condition
// that invalidates the whole run.
package outcome

import (
	"errors"
	"fmt"
)

// Kind discriminates the Outcome union.
type Kind string

const (
	// KindDuration marks a successful visit with its wall-clock time.
	KindDuration Kind = "duration"
	// KindTimeout marks a wait that exceeded its bound.
	KindTimeout Kind = "timeout"
	// KindError marks any other per-item failure.
	KindError Kind = "error"
)

// Outcome is the tagged result of executing one work item. Exactly one
// Outcome is produced per item; only KindDuration counts as a success
// for aggregate statistics.
type Outcome struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	Seconds float64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Message string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// Duration returns a success outcome with the elapsed wall time.
func Duration(seconds float64) Outcome {
	return Outcome{Kind: KindDuration, Seconds: seconds}
}

// Timeout returns the timed-out outcome.
func Timeout() Outcome {
	return Outcome{Kind: KindTimeout}
}

// Errorf returns a failure outcome with a formatted message.
func Errorf(format string, args ...any) Outcome {
	return Outcome{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// FromError turns an ordinary error into a failure outcome.
func FromError(err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindError, Message: "unknown error"}
	}
	return Outcome{Kind: KindError, Message: err.Error()}
}

// IsSuccess reports whether the outcome counts toward timing statistics.
func (o Outcome) IsSuccess() bool {
	return o.Kind == KindDuration
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindDuration:
		return fmt.Sprintf("%.2fs", o.Seconds)
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error: " + o.Message
	default:
		return "unknown"
	}
}

// Fatality is a run-aborting condition, distinct from a per-item
// failure. It flows through ordinary error returns and is detected with
// IsFatal; the supervisor never retries it.
type Fatality struct {
	Reason string
}

func (f *Fatality) Error() string {
	return "fatal: " + f.Reason
}

// Fatal constructs a Fatality with a formatted reason.
func Fatal(format string, args ...any) *Fatality {
	return &Fatality{Reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err carries a Fatality anywhere in its chain.
func IsFatal(err error) bool {
	var f *Fatality
	return errors.As(err, &f)
}
