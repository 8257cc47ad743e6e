package mocks

import (
	"sync"
	"time"

	"github.com/chattriggers/ctjs/internal/state"
	"github.com/chattriggers/ctjs/pkg/interfaces"
	"github.com/chattriggers/ctjs/pkg/types"
)

// MockStateStore is an in-memory StateStore for testing
type MockStateStore struct {
	mu          sync.Mutex
	saved       []*state.LoaderState
	transitions map[types.EntryPoint]types.EntryState
	failures    []types.Failure
	saveError   error
}

// NewMockStateStore creates a new mock state store
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		transitions: make(map[types.EntryPoint]types.EntryState),
	}
}

// Save records a loader state
func (m *MockStateStore) Save(s *state.LoaderState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveError != nil {
		return m.saveError
	}
	m.saved = append(m.saved, s)
	return nil
}

// SetEntryPoint records an entry point transition
func (m *MockStateStore) SetEntryPoint(ep types.EntryPoint, entryState types.EntryState, failure *types.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions[ep] = entryState
	if failure != nil {
		m.failures = append(m.failures, *failure)
	}
	return nil
}

// SetSaveError makes Save fail
func (m *MockStateStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Saved returns every saved state
func (m *MockStateStore) Saved() []*state.LoaderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*state.LoaderState(nil), m.saved...)
}

// Last returns the most recently saved state
func (m *MockStateStore) Last() *state.LoaderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

// EntryState returns the last recorded state of ep
func (m *MockStateStore) EntryState(ep types.EntryPoint) (types.EntryState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.transitions[ep]
	return s, ok
}

// MockNotifier records notifications
type MockNotifier struct {
	mu             sync.Mutex
	ScriptFailures []types.Failure
	Disabled       []types.EntryPoint
	LoadsCompleted int
	LastFailures   int
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyScriptFailure records a script failure
func (m *MockNotifier) NotifyScriptFailure(failure types.Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScriptFailures = append(m.ScriptFailures, failure)
}

// NotifyEntryPointDisabled records a disabled entry point
func (m *MockNotifier) NotifyEntryPointDisabled(ep types.EntryPoint, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disabled = append(m.Disabled, ep)
}

// NotifyLoadComplete records a finished load
func (m *MockNotifier) NotifyLoadComplete(imports, failures int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadsCompleted++
	m.LastFailures = failures
}

// MockRegistry records registered listeners
type MockRegistry struct {
	mu        sync.Mutex
	listeners []interfaces.Listener
}

// NewMockRegistry creates a new mock registry
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{}
}

// Register stores listener, ignoring duplicates
func (m *MockRegistry) Register(listener interfaces.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listeners {
		if l == listener {
			return
		}
	}
	m.listeners = append(m.listeners, listener)
}

// Listeners returns the registered listeners
func (m *MockRegistry) Listeners() []interfaces.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.Listener(nil), m.listeners...)
}

// FireTick delivers a tick to every listener
func (m *MockRegistry) FireTick() {
	for _, l := range m.Listeners() {
		l.OnTick()
	}
}

// FireWorldLoad delivers a world load to every listener
func (m *MockRegistry) FireWorldLoad() {
	for _, l := range m.Listeners() {
		l.OnWorldLoad()
	}
}
