package optimization

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig marks configuration errors detected before any
	// generation runs.
	ErrInvalidConfig = errors.New("invalid optimizer configuration")

	// ErrExhausted is returned once an engine has produced all of its
	// generations.
	ErrExhausted = errors.New("generations exhausted")
)

// Error is a failure raised by an engine or the optimizer driving it.
type Error struct {
	// Component names the engine, e.g. "evolution.guided".
	Component string
	// Op is the operation that failed.
	Op      string
	Message string
	Err     error
}

// Error renders component, operation, message and cause joined by ": ",
// skipping empty parts.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 4)
	for _, part := range []string{e.Component, e.Op, e.Message} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the failing operation and returns e.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the component and returns e.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// ConfigErrorf creates a configuration error. It matches ErrInvalidConfig
// under errors.Is.
func ConfigErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidConfig,
	}
}

// WrapErrorf adds context to err. It returns nil when err is nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError finds the first *Error in err's chain.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
