package types

// Trigger is a closed set of dispatchable events. Each kind carries its own
// payload; consumers switch on the concrete type.
type Trigger interface {
	triggerKind() string
}

// TickTrigger fires the tick entry points.
type TickTrigger struct{}

// WorldLoadTrigger fires the world-load entry points.
type WorldLoadTrigger struct{}

// CallTrigger invokes an arbitrary global script function with arguments.
type CallTrigger struct {
	Function string
	Args     []any
}

func (TickTrigger) triggerKind() string      { return string(SignalTick) }
func (WorldLoadTrigger) triggerKind() string { return string(SignalWorldLoad) }
func (CallTrigger) triggerKind() string      { return "call" }

// TriggerKind returns a short name for logging.
func TriggerKind(t Trigger) string {
	if t == nil {
		return "none"
	}
	return t.triggerKind()
}
