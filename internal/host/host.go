// Package host drives lifecycle listeners from a single dispatch goroutine.
// Ticks, world loads and submitted tasks never run concurrently with each other.
package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chattriggers/ctjs/pkg/interfaces"
	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/types"
)

// Listener receives host lifecycle signals
type Listener = interfaces.Listener

// Config controls the signal source
type Config struct {
	TickInterval     time.Duration
	WorldLoadOnStart bool
}

// ConfigFrom converts the file configuration
func ConfigFrom(cfg *types.HostConfig) Config {
	c := Config{TickInterval: cfg.TickInterval()}
	if cfg != nil {
		c.WorldLoadOnStart = cfg.WorldLoadOnStart
	}
	return c
}

// Host emits tick and world load signals to registered listeners
type Host struct {
	config    Config
	logger    logger.Logger
	mu        sync.Mutex
	listeners []Listener
	tasks     []func()
	wake      chan struct{}
	worldLoad chan struct{}
	ticks     atomic.Uint64
	running   atomic.Bool
}

// New creates a host. A non-positive tick interval selects the default.
func New(config Config, log logger.Logger) *Host {
	if config.TickInterval <= 0 {
		config.TickInterval = types.DefaultTickInterval
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Host{
		config:    config,
		logger:    log.WithComponent("host"),
		wake:      make(chan struct{}, 1),
		worldLoad: make(chan struct{}, 1),
	}
}

// Register adds a listener. Registering the same listener again is a no-op.
func (h *Host) Register(listener Listener) {
	if listener == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners {
		if l == listener {
			return
		}
	}
	h.listeners = append(h.listeners, listener)
}

// Listeners returns the number of registered listeners
func (h *Host) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Ticks returns the number of ticks delivered so far
func (h *Host) Ticks() uint64 {
	return h.ticks.Load()
}

// Running reports whether Run is active
func (h *Host) Running() bool {
	return h.running.Load()
}

// TriggerWorldLoad requests a world load signal. Requests made before the
// pending one is delivered are coalesced. Safe for concurrent use.
func (h *Host) TriggerWorldLoad() {
	select {
	case h.worldLoad <- struct{}{}:
	default:
	}
}

// Submit queues fn to run on the dispatch goroutine. Safe for concurrent use.
func (h *Host) Submit(fn func()) {
	if fn == nil {
		return
	}

	h.mu.Lock()
	h.tasks = append(h.tasks, fn)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run dispatches signals until ctx is cancelled. Tasks still queued at that
// point are dropped.
func (h *Host) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return fmt.Errorf("host is already running")
	}
	defer h.running.Store(false)

	ticker := time.NewTicker(h.config.TickInterval)
	defer ticker.Stop()

	h.logger.Info("Host started",
		logger.WithField("tick_interval", h.config.TickInterval.String()),
		logger.WithField("listeners", h.Listeners()))

	if h.config.WorldLoadOnStart {
		h.FireWorldLoad()
	}
	h.runTasks()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Host stopped", logger.WithField("ticks", h.Ticks()))
			return nil
		case <-h.wake:
			h.runTasks()
		case <-h.worldLoad:
			h.FireWorldLoad()
		case <-ticker.C:
			h.FireTick()
		}
	}
}

// FireTick delivers one tick on the calling goroutine. Callers must not race
// it with Run.
func (h *Host) FireTick() {
	h.ticks.Add(1)
	for _, l := range h.snapshot() {
		h.deliver("tick", l.OnTick)
	}
}

// FireWorldLoad delivers one world load on the calling goroutine
func (h *Host) FireWorldLoad() {
	for _, l := range h.snapshot() {
		h.deliver("world-load", l.OnWorldLoad)
	}
}

func (h *Host) snapshot() []Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Listener(nil), h.listeners...)
}

func (h *Host) runTasks() {
	h.mu.Lock()
	tasks := h.tasks
	h.tasks = nil
	h.mu.Unlock()

	for _, task := range tasks {
		h.deliver("task", task)
	}
}

func (h *Host) deliver(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Listener panic recovered",
				logger.WithField("signal", kind),
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
		}
	}()
	fn()
}
