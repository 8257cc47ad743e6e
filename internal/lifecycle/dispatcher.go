// Package lifecycle invokes the optional per-tick and per-world-load script
// functions and disables each one permanently after its first failure.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/scripting"
	"github.com/chattriggers/ctjs/pkg/types"
)

// ErrUnknownTrigger is returned by Dispatch for a nil or foreign trigger
var ErrUnknownTrigger = errors.New("unknown trigger")

// DisabledFunc observes an entry point transition to disabled
type DisabledFunc func(ep types.EntryPoint, err error)

// Dispatcher owns the entry point table for one engine. It is used from the
// host dispatch goroutine only.
type Dispatcher struct {
	engine    scripting.Engine
	states    [types.EntryPointCount]types.EntryState
	observers []DisabledFunc
	logger    logger.Logger
}

// NewDispatcher creates a dispatcher with every entry point enabled
func NewDispatcher(engine scripting.Engine, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	d := &Dispatcher{
		engine: engine,
		logger: log.WithComponent("lifecycle"),
	}
	for i := range d.states {
		d.states[i] = types.EntryStateEnabled
	}
	return d
}

// OnDisabled registers fn to be called once per entry point when it is disabled
func (d *Dispatcher) OnDisabled(fn DisabledFunc) {
	if fn != nil {
		d.observers = append(d.observers, fn)
	}
}

// OnTick invokes the enabled tick entry points, provided libs first. The
// returned error joins the entry points disabled by this call.
func (d *Dispatcher) OnTick() error {
	return d.fire(types.SignalTick)
}

// OnWorldLoad invokes the enabled world load entry points, provided libs first
func (d *Dispatcher) OnWorldLoad() error {
	return d.fire(types.SignalWorldLoad)
}

// Dispatch routes a trigger. Call triggers invoke a named function and return
// its result without touching the entry point table.
func (d *Dispatcher) Dispatch(trigger types.Trigger) (any, error) {
	switch t := trigger.(type) {
	case types.TickTrigger:
		return nil, d.OnTick()
	case types.WorldLoadTrigger:
		return nil, d.OnWorldLoad()
	case types.CallTrigger:
		if t.Function == "" {
			return nil, fmt.Errorf("call trigger without function: %w", scripting.ErrNoSuchFunction)
		}
		return d.invoke(t.Function, t.Args...)
	default:
		return nil, fmt.Errorf("%s: %w", types.TriggerKind(trigger), ErrUnknownTrigger)
	}
}

// State returns the current state of ep
func (d *Dispatcher) State(ep types.EntryPoint) types.EntryState {
	if !ep.Valid() {
		return types.EntryStateDisabled
	}
	return d.states[ep]
}

// States returns a snapshot of the table keyed by function name
func (d *Dispatcher) States() map[string]types.EntryState {
	snapshot := make(map[string]types.EntryState, len(d.states))
	for _, ep := range types.AllEntryPoints() {
		snapshot[ep.String()] = d.states[ep]
	}
	return snapshot
}

func (d *Dispatcher) fire(signal types.Signal) error {
	var errs []error

	for _, ep := range types.EntryPointsFor(signal) {
		if d.states[ep] != types.EntryStateEnabled {
			continue
		}

		if _, err := d.invoke(ep.FunctionName()); err != nil {
			d.states[ep] = types.EntryStateDisabled
			disabled := fmt.Errorf("%s: %w: %w", ep, types.ErrEntryPointUnavailable, err)

			d.logger.Warn("Entry point disabled",
				logger.WithField("entry_point", ep.String()),
				logger.WithField("signal", string(signal)),
				logger.WithError(err))

			for _, observe := range d.observers {
				observe(ep, disabled)
			}
			errs = append(errs, disabled)
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) invoke(name string, args ...any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%s: %w: panic: %v", name, scripting.ErrInvocation, r)
		}
	}()

	if d.engine == nil {
		return nil, fmt.Errorf("%s: %w", name, scripting.ErrNoSuchFunction)
	}
	return d.engine.InvokeFunction(name, args...)
}
