package symbol

import "fmt"

// DomainError reports structurally incompatible or unknown region names
// encountered while building or discretising a tree. It is never recovered
// from: discretisation of the whole model aborts.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

// NewDomainError builds a DomainError with a formatted message.
func NewDomainError(format string, args ...any) *DomainError {
	return &DomainError{Msg: fmt.Sprintf(format, args...)}
}

// ModelError reports a semantic problem with a model: evaluated shape
// mismatches, insufficient initial conditions, malformed concatenations. The
// message carries the offending variable name and shapes so the failure can
// be diagnosed without re-running.
type ModelError struct {
	Msg string
}

func (e *ModelError) Error() string { return e.Msg }

// NewModelError builds a ModelError with a formatted message.
func NewModelError(format string, args ...any) *ModelError {
	return &ModelError{Msg: fmt.Sprintf(format, args...)}
}
