// Package scripting hosts the shared JavaScript runtime that imports and
// libraries are evaluated into.
package scripting

import (
	"errors"
)

var (
	// ErrNoSuchFunction is returned when an invoked global is absent or not callable
	ErrNoSuchFunction = errors.New("no such function")

	// ErrInvocation is returned when a function throws, panics or is interrupted
	ErrInvocation = errors.New("function invocation failed")
)

// Engine is a shared scripting runtime. Evaluation defines globals that later
// invocations can reach. Implementations are not safe for concurrent use.
type Engine interface {
	Evaluate(name, source string) error
	InvokeFunction(name string, args ...any) (any, error)
}

// Factory builds a fresh engine with no state
type Factory func() (Engine, error)
