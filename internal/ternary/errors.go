package ternary

import (
	"errors"
	"fmt"
)

// ErrUnsupportedExpression marks an expression whose value cannot be
// predicted for the live engine. Callers discard the expression.
var ErrUnsupportedExpression = errors.New("unsupported expression")

// UnsupportedError says which node could not be folded and why. It matches
// ErrUnsupportedExpression and, when set, the underlying cause.
type UnsupportedError struct {
	Node   string
	Reason string
	Cause  error
}

func (e *UnsupportedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unsupported expression %s: %s: %v", e.Node, e.Reason, e.Cause)
	}
	return fmt.Sprintf("unsupported expression %s: %s", e.Node, e.Reason)
}

func (e *UnsupportedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrUnsupportedExpression, e.Cause}
	}
	return []error{ErrUnsupportedExpression}
}

func unsupported(node any, reason string) error {
	return &UnsupportedError{Node: fmt.Sprintf("%T", node), Reason: reason}
}

func unsupportedCause(node any, reason string, cause error) error {
	return &UnsupportedError{Node: fmt.Sprintf("%T", node), Reason: reason, Cause: cause}
}
