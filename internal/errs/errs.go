// Package errs defines the error taxonomy shared by the grid builder, the
// labeling pipeline and the driver. Callers match categories with errors.Is
// against the sentinels and inspect details with errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid or missing options, unknown algorithm
	// names and unresolved grid extents.
	ErrConfiguration = errors.New("configuration error")
	// ErrData marks malformed event content.
	ErrData = errors.New("data error")
	// ErrState marks an operation invoked out of order.
	ErrState = errors.New("state error")
)

// ConfigError reports a configuration problem for one algorithm option.
type ConfigError struct {
	Algorithm string
	Option    string
	Err       error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Algorithm != "" && e.Option != "":
		return fmt.Sprintf("%s: option %q: %v", e.Algorithm, e.Option, e.Err)
	case e.Option != "":
		return fmt.Sprintf("option %q: %v", e.Option, e.Err)
	case e.Algorithm != "":
		return fmt.Sprintf("%s: %v", e.Algorithm, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports true for ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// DataError reports malformed event content.
type DataError struct {
	Event string
	Err   error
}

func (e *DataError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("event %s: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("event data: %v", e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Is reports true for ErrData.
func (e *DataError) Is(target error) bool { return target == ErrData }

// StateError reports an operation called in the wrong driver state.
type StateError struct {
	Op    string
	State string
	Want  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid in state %s (requires %s)", e.Op, e.State, e.Want)
}

// Is reports true for ErrState.
func (e *StateError) Is(target error) bool { return target == ErrState }

// Config builds a ConfigError with a formatted message.
func Config(algorithm, option, format string, args ...interface{}) error {
	return &ConfigError{Algorithm: algorithm, Option: option, Err: fmt.Errorf(format, args...)}
}

// Data builds a DataError with a formatted message.
func Data(event, format string, args ...interface{}) error {
	return &DataError{Event: event, Err: fmt.Errorf(format, args...)}
}
