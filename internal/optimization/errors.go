package optimization

import (
	"errors"
	"fmt"
)

// Sentinel failures reported by solvers. Match them with errors.Is.
var (
	// ErrNotConverged means the iteration budget ran out before the
	// convergence criteria were met.
	ErrNotConverged = errors.New("did not converge")

	// ErrDegenerate means the problem produced non-finite residuals or a
	// singular system that no damping could recover from.
	ErrDegenerate = errors.New("degenerate problem")

	// ErrUnknownMethod is returned for an unrecognized method name.
	ErrUnknownMethod = errors.New("unknown method")
)

// Error is a solver error carrying the component and operation that
// produced it.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = e.Component + ": " + e.Op
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the operation that failed.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the component that failed.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates an error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// NewErrorf creates an error with a formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with additional context. It returns nil if err is nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// WrapErrorf wraps err with a formatted message. It returns nil if err is nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: fmt.Sprintf(format, args...), Err: err}
}

// IsOptimizationError reports whether err, or any error it wraps, is an
// *Error, and returns the outermost one.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
