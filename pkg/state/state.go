// Package state provides persistent per-pair state for linkwatch
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

	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// heartbeatInterval is how often live states get their heartbeat bumped
const heartbeatInterval = 10 * time.Second

// staleAfter is the heartbeat age past which a state's owner counts as dead
const staleAfter = 30 * time.Second

// PairState is the persisted view of one monitored pair
type PairState struct {
	Pair             types.Pair       `json:"pair"`
	Status           types.PairStatus `json:"status"`
	LastCheckTime    time.Time        `json:"lastCheckTime"`
	CheckCount       int              `json:"checkCount"`
	FailureCount     int              `json:"failureCount"`
	RecoveryAttempts int              `json:"recoveryAttempts"`
	CurrentInterval  time.Duration    `json:"currentInterval"`
	LastError        string           `json:"lastError,omitempty"`
	LastResponseMs   float64          `json:"lastResponseMs,omitempty"`
	ProcessID        int              `json:"processId"`
	Heartbeat        time.Time        `json:"heartbeat"`
}

// Manager handles the state files under <root>/.linkwatch/state
type Manager struct {
	stateDir string
	logger   logger.Logger

	mu             sync.RWMutex
	states         map[string]*PairState
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

// NewManager creates a state manager rooted at projectRoot
func NewManager(projectRoot string, log logger.Logger) *Manager {
	stateDir := filepath.Join(projectRoot, ".linkwatch", "state")

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &Manager{
		stateDir: stateDir,
		logger:   log,
		states:   make(map[string]*PairState),
	}
}

// InitializeState creates or refreshes the state for a pair. Counters
// from a previous run survive; ownership moves to this process.
func (m *Manager) InitializeState(pair types.Pair, baseInterval time.Duration) (*PairState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &PairState{
		Pair:            pair,
		Status:          types.PairStatusUnknown,
		CurrentInterval: baseInterval,
		ProcessID:       os.Getpid(),
		Heartbeat:       time.Now(),
	}

	if existing, err := m.loadStateFile(pair.Key()); err == nil && existing != nil {
		st.CheckCount = existing.CheckCount
		st.FailureCount = existing.FailureCount
		st.LastCheckTime = existing.LastCheckTime
	}

	if err := m.saveStateFile(st); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	m.states[pair.Key()] = st
	return st, nil
}

// ReadState returns the state for a pair, from memory if owned by this
// process, otherwise from disk
func (m *Manager) ReadState(pair types.Pair) (*PairState, error) {
	m.mu.RLock()
	if st, ok := m.states[pair.Key()]; ok {
		m.mu.RUnlock()
		return st, nil
	}
	m.mu.RUnlock()

	return m.loadStateFile(pair.Key())
}

// Update applies a mutation to a pair's state and persists it
func (m *Manager) Update(pair types.Pair, mutate func(*PairState)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[pair.Key()]
	if !ok {
		loaded, err := m.loadStateFile(pair.Key())
		if err != nil {
			return fmt.Errorf("pair state not found: %s", pair)
		}
		st = loaded
		m.states[pair.Key()] = st
	}

	mutate(st)
	st.Heartbeat = time.Now()

	return m.saveStateFile(st)
}

// RecordCheck persists the outcome of one check cycle
func (m *Manager) RecordCheck(pair types.Pair, result types.CheckResult, status types.PairStatus, interval time.Duration, recoveryAttempts int) error {
	return m.Update(pair, func(st *PairState) {
		st.Status = status
		st.LastCheckTime = time.Now()
		st.CheckCount++
		st.CurrentInterval = interval
		st.RecoveryAttempts = recoveryAttempts
		st.LastResponseMs = result.ResponseMillis()
		st.LastError = result.Err
		if !result.Available {
			st.FailureCount++
		}
	})
}

// RemoveState deletes a pair's state file
func (m *Manager) RemoveState(pair types.Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, pair.Key())

	stateFile := m.stateFilePath(pair.Key())
	if err := os.Remove(stateFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}

	return nil
}

// IsLocked reports whether another live process owns a pair's state
func (m *Manager) IsLocked(pair types.Pair) (bool, error) {
	st, err := m.loadStateFile(pair.Key())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if st.ProcessID == os.Getpid() {
		return false, nil
	}

	if time.Since(st.Heartbeat) > staleAfter {
		return false, nil
	}

	process, err := os.FindProcess(st.ProcessID)
	if err != nil {
		return false, nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, nil // Process doesn't exist
	}

	return true, nil
}

// DiscoverStates loads every state file in the state directory
func (m *Manager) DiscoverStates() (map[string]*PairState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*PairState)

	files, err := os.ReadDir(m.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		key := file.Name()[:len(file.Name())-5]
		st, err := m.loadStateFile(key)
		if err != nil {
			m.logger.Warn("Failed to load state file",
				logger.WithField("pair", key),
				logger.WithField("error", err))
			continue
		}

		states[key] = st
	}

	return states, nil
}

// StartHeartbeat starts the heartbeat updater
func (m *Manager) StartHeartbeat(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heartbeatTimer != nil {
		return // Already running
	}

	m.heartbeatStop = make(chan struct{})
	m.heartbeatTimer = time.NewTicker(heartbeatInterval)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.heartbeatStop:
				return
			case <-m.heartbeatTimer.C:
				m.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater
func (m *Manager) StopHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}

	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

// Cleanup releases ownership of all states on shutdown
func (m *Manager) Cleanup() error {
	m.StopHeartbeat()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.states {
		st.ProcessID = 0
		if err := m.saveStateFile(st); err != nil {
			m.logger.Warn("Failed to save final state",
				logger.WithField("pair", st.Pair.String()),
				logger.WithField("error", err))
		}
	}

	return nil
}

// Private methods

func (m *Manager) stateFilePath(key string) string {
	return filepath.Join(m.stateDir, key+".json")
}

func (m *Manager) loadStateFile(key string) (*PairState, error) {
	data, err := os.ReadFile(m.stateFilePath(key))
	if err != nil {
		return nil, err
	}

	var st PairState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return &st, nil
}

func (m *Manager) saveStateFile(st *PairState) error {
	stateFile := m.stateFilePath(st.Pair.Key())

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func (m *Manager) updateHeartbeats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, st := range m.states {
		st.Heartbeat = now
		if err := m.saveStateFile(st); err != nil {
			m.logger.Debug("Failed to update heartbeat",
				logger.WithField("pair", st.Pair.String()),
				logger.WithField("error", err))
		}
	}
}
