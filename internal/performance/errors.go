package performance

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPoolExhausted is returned by VUPool.Acquire when the pool is at its
	// maximum size and every VU is busy. The arrival is recorded as dropped.
	ErrPoolExhausted = errors.New("virtual user pool exhausted")

	// ErrVUNotBusy is returned by VUPool.Release for a VU that is not
	// currently borrowed.
	ErrVUNotBusy = errors.New("virtual user is not busy")

	// ErrDrainTimeout marks iterations that were still in flight when the
	// graceful stop window elapsed.
	ErrDrainTimeout = errors.New("drain timeout elapsed")
)

// ConfigError is an invalid scenario configuration. It is the only error
// kind that prevents a run from starting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error on field '%s': %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// TransportError wraps a failure to perform a request (connection refused,
// timeout, unreadable body). It is recorded on the Outcome, never returned
// from a run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return "transport error: " + e.Err.Error()
	}
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CheckError records a check predicate that panicked. The check counts as
// failed.
type CheckError struct {
	Check string
	Cause interface{}
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %q panicked: %v", e.Check, e.Cause)
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTransportError reports whether err is, or wraps, a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
