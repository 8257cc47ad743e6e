// Package state persists the outcome of the most recent load so that other
// ctjs invocations can report on a running loader.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/types"
	"github.com/chattriggers/ctjs/pkg/utils"
)

// StateFileName is the name of the loader state file inside the state directory
const StateFileName = "loader.json"

// HeartbeatInterval is how often a running loader refreshes its heartbeat
var HeartbeatInterval = 10 * time.Second

// staleAfter marks a heartbeat as dead
const staleAfter = 30 * time.Second

// ImportSummary describes one loaded import without its source
type ImportSummary struct {
	Name  string `json:"name"`
	Lines int    `json:"lines"`
	Bytes int    `json:"bytes"`
}

// LoaderState represents the persisted state of a loader
type LoaderState struct {
	LoadID      string                      `json:"loadId"`
	LoadedAt    time.Time                   `json:"loadedAt"`
	Duration    time.Duration               `json:"duration"`
	LoadCount   int                         `json:"loadCount"`
	ProcessID   int                         `json:"processId"`
	Heartbeat   time.Time                   `json:"heartbeat"`
	Imports     []ImportSummary             `json:"imports"`
	EntryPoints map[string]types.EntryState `json:"entryPoints"`
	Failures    []types.Failure             `json:"failures,omitempty"`
}

// Summarize builds import summaries from loaded imports
func Summarize(imports []types.Import) []ImportSummary {
	summaries := make([]ImportSummary, 0, len(imports))
	for _, imp := range imports {
		summaries = append(summaries, ImportSummary{
			Name:  imp.Name,
			Lines: imp.Lines(),
			Bytes: imp.Size(),
		})
	}
	return summaries
}

// StateManager reads and writes the loader state file
type StateManager struct {
	stateDir       string
	logger         logger.Logger
	mu             sync.Mutex
	current        *LoaderState
	heartbeatStop  chan struct{}
	heartbeatDone  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewStateManager creates a state manager rooted at <modRoot>/.ctjs/state
func NewStateManager(modRoot string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StateManager{
		stateDir: filepath.Join(modRoot, types.StateDirName, "state"),
		logger:   log.WithComponent("state"),
	}
}

// Path returns the state file location
func (sm *StateManager) Path() string {
	return filepath.Join(sm.stateDir, StateFileName)
}

// Save records a completed load. The load counter carries over from the
// previous state file.
func (sm *StateManager) Save(state *LoaderState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	previous := sm.current
	if previous == nil {
		previous, _ = sm.loadStateFile()
	}
	if previous != nil {
		state.LoadCount = previous.LoadCount
	}
	state.LoadCount++
	state.ProcessID = os.Getpid()
	state.Heartbeat = time.Now()

	if err := sm.saveStateFile(state); err != nil {
		return err
	}
	sm.current = state
	return nil
}

// SetEntryPoint records a single entry point transition for the current load
func (sm *StateManager) SetEntryPoint(ep types.EntryPoint, entryState types.EntryState, failure *types.Failure) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return fmt.Errorf("no load has been recorded")
	}
	if sm.current.EntryPoints == nil {
		sm.current.EntryPoints = make(map[string]types.EntryState)
	}
	sm.current.EntryPoints[ep.String()] = entryState
	if failure != nil {
		sm.current.Failures = append(sm.current.Failures, *failure)
	}
	sm.current.Heartbeat = time.Now()

	return sm.saveStateFile(sm.current)
}

// Read returns the persisted state
func (sm *StateManager) Read() (*LoaderState, error) {
	return sm.loadStateFile()
}

// IsActive reports whether another live process owns the state file
func (sm *StateManager) IsActive() (bool, error) {
	state, err := sm.loadStateFile()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return IsAlive(state), nil
}

// IsAlive reports whether the process recorded in state is running and
// refreshed its heartbeat recently
func IsAlive(state *LoaderState) bool {
	if state == nil || state.ProcessID <= 0 {
		return false
	}
	if time.Since(state.Heartbeat) > staleAfter {
		return false
	}
	if state.ProcessID == os.Getpid() {
		return true
	}

	process, err := os.FindProcess(state.ProcessID)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Remove deletes the state file
func (sm *StateManager) Remove() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = nil
	if err := os.Remove(sm.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// StartHeartbeat periodically refreshes the heartbeat until ctx is done or
// StopHeartbeat is called
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	ticker := time.NewTicker(HeartbeatInterval)
	sm.heartbeatStop = stop
	sm.heartbeatDone = done
	sm.heartbeatTimer = ticker

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				sm.updateHeartbeat()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater. No heartbeat write happens after
// it returns.
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}
	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
	done := sm.heartbeatDone
	sm.heartbeatDone = nil
	sm.mu.Unlock()

	// the updater takes mu, so wait without holding it
	if done != nil {
		<-done
	}
}

// Cleanup stops the heartbeat and marks the state as no longer owned
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return nil
	}
	sm.current.ProcessID = 0
	if err := sm.saveStateFile(sm.current); err != nil {
		sm.logger.Warn("Failed to save final state", logger.WithError(err))
		return err
	}
	return nil
}

func (sm *StateManager) loadStateFile() (*LoaderState, error) {
	data, err := os.ReadFile(sm.Path())
	if err != nil {
		return nil, err
	}

	var state LoaderState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &state, nil
}

func (sm *StateManager) saveStateFile(state *LoaderState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := utils.WriteFileAtomic(sm.Path(), data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func (sm *StateManager) updateHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil {
		return
	}
	sm.current.Heartbeat = time.Now()
	if err := sm.saveStateFile(sm.current); err != nil {
		sm.logger.Debug("Failed to update heartbeat", logger.WithError(err))
	}
}
