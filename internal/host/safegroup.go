package host

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/chattriggers/ctjs/pkg/logger"
)

// SafeGroup wraps errgroup.Group so a panicking goroutine becomes an error
// instead of taking the process down.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a SafeGroup whose context is cancelled on the first error
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn in a new goroutine, converting a panic into an error
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()

		return fn()
	})
}

// Wait blocks until all goroutines have returned and reports the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
