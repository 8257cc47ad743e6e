// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"time"

	"github.com/chattriggers/ctjs/internal/state"
	"github.com/chattriggers/ctjs/pkg/types"
)

// Listener receives host lifecycle signals on the dispatch goroutine
type Listener interface {
	OnTick()
	OnWorldLoad()
}

// ListenerRegistry accepts lifecycle listeners
type ListenerRegistry interface {
	Register(listener Listener)
}

// StateStore persists loader state
type StateStore interface {
	Save(state *state.LoaderState) error
	SetEntryPoint(ep types.EntryPoint, entryState types.EntryState, failure *types.Failure) error
}

// Notifier reports script problems to the user
type Notifier interface {
	NotifyScriptFailure(failure types.Failure)
	NotifyEntryPointDisabled(ep types.EntryPoint, err error)
	NotifyLoadComplete(imports, failures int, duration time.Duration)
}
