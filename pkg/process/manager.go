// Package process provides process management utilities
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chattriggers/ctjs/pkg/logger"
)

// Manager handles process lifecycle and signals. SIGINT and SIGTERM run the
// shutdown handlers in reverse registration order; SIGHUP runs the reload
// handlers in registration order.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	reloadHandlers   []func()
	heartbeatFunc    func()
	heartbeatEvery   time.Duration
	heartbeatStop    chan struct{}
	signals          chan os.Signal
	stop             chan struct{}
	done             chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	shutdownOnce     sync.Once
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		logger:         log.WithComponent("process"),
		heartbeatEvery: 10 * time.Second,
		done:           make(chan struct{}),
	}
}

// RegisterShutdownHandler adds a shutdown handler
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// RegisterReloadHandler adds a handler run on SIGHUP
func (m *Manager) RegisterReloadHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reloadHandlers = append(m.reloadHandlers, handler)
}

// SetHeartbeat sets a function called periodically while running
func (m *Manager) SetHeartbeat(fn func(), every time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeatFunc = fn
	if every > 0 {
		m.heartbeatEvery = every
	}
}

// Start begins handling OS signals until ctx is done, a shutdown signal
// arrives, or Stop is called
func (m *Manager) Start(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	m.startWith(ctx, sigChan)
}

// Done is closed once shutdown handlers have run
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Signal feeds sig through the same path as an OS signal
func (m *Manager) Signal(sig os.Signal) {
	m.mu.Lock()
	signals := m.signals
	running := m.running
	m.mu.Unlock()

	if running && signals != nil {
		signals <- sig
	}
}

// Stop stops the process manager without running shutdown handlers
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) startWith(ctx context.Context, sigChan chan os.Signal) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.signals = sigChan
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		for {
			select {
			case <-ctx.Done():
				m.handleShutdown()
				return
			case <-stop:
				return
			case sig := <-sigChan:
				m.logger.Info("Received signal", logger.WithField("signal", sig.String()))
				if sig == syscall.SIGHUP {
					m.handleReload()
					continue
				}
				m.handleShutdown()
				return
			}
		}
	}()

	m.mu.Lock()
	hasHeartbeat := m.heartbeatFunc != nil
	m.mu.Unlock()
	if hasHeartbeat {
		m.startHeartbeat(ctx)
	}
}

func (m *Manager) handleReload() {
	m.mu.Lock()
	handlers := append([]func(){}, m.reloadHandlers...)
	m.mu.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

func (m *Manager) handleShutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Initiating graceful shutdown...")

		m.mu.Lock()
		handlers := append([]func(){}, m.shutdownHandlers...)
		m.running = false
		if m.heartbeatStop != nil {
			close(m.heartbeatStop)
			m.heartbeatStop = nil
		}
		m.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
		close(m.done)
	})
}

func (m *Manager) startHeartbeat(ctx context.Context) {
	m.mu.Lock()
	stop := make(chan struct{})
	m.heartbeatStop = stop
	interval := m.heartbeatEvery
	fn := m.heartbeatFunc
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
