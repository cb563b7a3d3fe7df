package core

import (
	"fmt"
	"strings"
)

// SyntaxError is a malformed token or grammar production. Always fatal to
// the compilation that produced it.
type SyntaxError struct {
	Reason string
	Pos    position
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Syntax error %s: %s", e.Pos, e.Reason)
}

// TypeError is a type mismatch, an undeclared property, or an invalid
// operator use. The analyzer collects several of these before giving up.
type TypeError struct {
	Reason string
	Pos    position
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("Type error %s: %s", e.Pos, e.Reason)
}

// NameError is an identifier, Model, or View that does not resolve.
type NameError struct {
	Name string
	Pos  position
}

func (e *NameError) Error() string {
	return fmt.Sprintf("Name error %s: %s is not declared", e.Pos, e.Name)
}

// ErrorList is the analyzer's collected diagnostics, reported together.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// BindingError is an unbound or mistyped name in a `play ... with {}`
// mapping. It aborts only the play statement, never the host program.
type BindingError struct {
	Name   string
	Reason string
}

func (e *BindingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("Binding error: %s: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("Binding error: %s", e.Reason)
}

// RuntimeError terminates the running program with a diagnostic. Geometry
// violations (bad range bounds, division by zero, negative time) surface
// through here.
type RuntimeError struct {
	Reason string
	Pos    position
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("Runtime error %s: %s", e.Pos, e.Reason)
}
