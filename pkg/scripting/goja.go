package scripting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/types"
)

// GojaEngine implements Engine on top of goja
type GojaEngine struct {
	vm          *goja.Runtime
	logger      logger.Logger
	console     logger.Logger
	callTimeout time.Duration
}

// NewGojaEngine creates a runtime with print and console bound to log
func NewGojaEngine(log logger.Logger) *GojaEngine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	e := &GojaEngine{
		vm:      goja.New(),
		logger:  log.WithComponent("engine"),
		console: log.WithComponent("script"),
	}
	e.installConsole()
	return e
}

// NewGojaFactory returns a Factory producing independent goja engines
func NewGojaFactory(log logger.Logger, callTimeout time.Duration) Factory {
	return func() (Engine, error) {
		e := NewGojaEngine(log)
		e.SetCallTimeout(callTimeout)
		return e, nil
	}
}

// SetCallTimeout interrupts invocations running longer than d. Zero disables it.
func (e *GojaEngine) SetCallTimeout(d time.Duration) {
	e.callTimeout = d
}

// Evaluate runs source in the shared global scope
func (e *GojaEngine) Evaluate(name, source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate %s: %w: panic: %v", name, types.ErrScriptEval, r)
		}
	}()

	if _, err := e.vm.RunScript(name, source); err != nil {
		return fmt.Errorf("evaluate %s: %w: %s", name, types.ErrScriptEval, describe(err))
	}
	return nil
}

// InvokeFunction calls the global function name with args and returns its
// exported result
func (e *GojaEngine) InvokeFunction(name string, args ...any) (result any, err error) {
	fn, ok := goja.AssertFunction(e.vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoSuchFunction)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%s: %w: panic: %v", name, ErrInvocation, r)
		}
	}()

	if e.callTimeout > 0 {
		timer := time.AfterFunc(e.callTimeout, func() {
			e.vm.Interrupt(fmt.Sprintf("exceeded %s", e.callTimeout))
		})
		defer func() {
			timer.Stop()
			e.vm.ClearInterrupt()
		}()
	}

	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = e.vm.ToValue(arg)
	}

	value, err := fn(goja.Undefined(), values...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, ErrInvocation, describe(err))
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// HasFunction reports whether name is a callable global
func (e *GojaEngine) HasFunction(name string) bool {
	_, ok := goja.AssertFunction(e.vm.Get(name))
	return ok
}

func (e *GojaEngine) installConsole() {
	e.vm.Set("print", func(call goja.FunctionCall) goja.Value {
		e.console.Info(joinArgs(call.Arguments))
		return goja.Undefined()
	})

	console := e.vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value {
		e.console.Info(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	console.Set("warn", func(call goja.FunctionCall) goja.Value {
		e.console.Warn(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	console.Set("error", func(call goja.FunctionCall) goja.Value {
		e.console.Error(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	e.vm.Set("console", console)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

// describe keeps the script-side message and location without the Go stack
func describe(err error) string {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return exception.Error()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return "interrupted: " + interrupted.Error()
	}
	return err.Error()
}
