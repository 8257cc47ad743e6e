// Package types provides core types and configurations for ctjs
package types

import (
	"fmt"
	"strings"
	"time"
)

// Import is one user script bundle discovered under the imports root.
type Import struct {
	Name   string `json:"name" yaml:"name"`
	Script string `json:"-" yaml:"-"`
}

// Lines returns the number of lines in the aggregated script.
func (i Import) Lines() int {
	return strings.Count(i.Script, "\n")
}

// Size returns the script length in bytes.
func (i Import) Size() int {
	return len(i.Script)
}

// Signal represents a host signal kind that drives lifecycle entry points
type Signal string

const (
	SignalTick      Signal = "tick"
	SignalWorldLoad Signal = "world-load"
)

// EntryPoint identifies one optional lifecycle function defined by the libs.
type EntryPoint int

const (
	ProvidedLibsTick EntryPoint = iota
	CustomLibsTick
	ProvidedLibsWorld
	CustomLibsWorld

	entryPointCount
)

// EntryPointCount is the number of known entry points.
const EntryPointCount = int(entryPointCount)

var entryPointFunctions = [entryPointCount]string{
	ProvidedLibsTick:  "updateProvidedLibsTick",
	CustomLibsTick:    "updateCustomLibsTick",
	ProvidedLibsWorld: "updateProvidedLibsWorld",
	CustomLibsWorld:   "updateCustomLibsWorld",
}

var entryPointSignals = [entryPointCount]Signal{
	ProvidedLibsTick:  SignalTick,
	CustomLibsTick:    SignalTick,
	ProvidedLibsWorld: SignalWorldLoad,
	CustomLibsWorld:   SignalWorldLoad,
}

// AllEntryPoints returns every entry point in dispatch order.
func AllEntryPoints() []EntryPoint {
	return []EntryPoint{ProvidedLibsTick, CustomLibsTick, ProvidedLibsWorld, CustomLibsWorld}
}

// EntryPointsFor returns the entry points driven by a signal, provided libs first.
func EntryPointsFor(signal Signal) []EntryPoint {
	var result []EntryPoint
	for _, ep := range AllEntryPoints() {
		if ep.Signal() == signal {
			result = append(result, ep)
		}
	}
	return result
}

// Valid reports whether the entry point is one of the known values.
func (e EntryPoint) Valid() bool {
	return e >= 0 && e < entryPointCount
}

// FunctionName returns the global script function invoked for this entry point
func (e EntryPoint) FunctionName() string {
	if !e.Valid() {
		return ""
	}
	return entryPointFunctions[e]
}

// Signal returns the host signal that triggers this entry point
func (e EntryPoint) Signal() Signal {
	if !e.Valid() {
		return ""
	}
	return entryPointSignals[e]
}

func (e EntryPoint) String() string {
	if !e.Valid() {
		return fmt.Sprintf("EntryPoint(%d)", int(e))
	}
	return entryPointFunctions[e]
}

// EntryState is the dispatch state of a single entry point
type EntryState string

const (
	EntryStateEnabled  EntryState = "enabled"
	EntryStateDisabled EntryState = "disabled"
)

// Stage names a step of the load sequence
type Stage string

const (
	StageMaterialize Stage = "materialize"
	StageDiscover    Stage = "discover"
	StageAssets      Stage = "assets"
	StageAggregate   Stage = "aggregate"
	StageEvaluate    Stage = "evaluate"
	StageDispatch    Stage = "dispatch"
)

// Failure records a non-fatal error from one stage of loading or dispatch.
type Failure struct {
	Stage   Stage     `json:"stage"`
	Subject string    `json:"subject"`
	Err     error     `json:"-"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewFailure creates a failure record stamped with the current time
func NewFailure(stage Stage, subject string, err error) Failure {
	f := Failure{
		Stage:   stage,
		Subject: subject,
		Err:     err,
		Time:    time.Now(),
	}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %s", f.Stage, f.Subject, f.Message)
}

func (f Failure) Unwrap() error {
	return f.Err
}
