// Package mocks provides mock implementations of interfaces for testing.
// These follow Go best practices for test doubles.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/linkwatch/linkwatch/pkg/state"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// MockChecker is a scripted ServiceChecker
type MockChecker struct {
	mu      sync.Mutex
	results map[string][]types.CheckResult
	calls   map[string]int
}

// NewMockChecker creates a new mock checker
func NewMockChecker() *MockChecker {
	return &MockChecker{
		results: make(map[string][]types.CheckResult),
		calls:   make(map[string]int),
	}
}

// Script queues check results for a URL; the last one repeats
func (m *MockChecker) Script(url string, results ...types.CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[url] = results
}

// Check returns the next scripted result for the URL
func (m *MockChecker) Check(ctx context.Context, url string) types.CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[url]++
	queue := m.results[url]
	if len(queue) == 0 {
		return types.CheckResult{Available: false, Attempts: 1, Err: "unscripted url"}
	}

	result := queue[0]
	if len(queue) > 1 {
		m.results[url] = queue[1:]
	}
	return result
}

// Calls returns how many checks ran against the URL
func (m *MockChecker) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// MockExecutor records recovery command executions
type MockExecutor struct {
	mu         sync.Mutex
	executions []Execution
	err        error
	output     string
}

// Execution is one recorded recovery command run
type Execution struct {
	Config  types.SSHConfig
	Command string
	Pair    types.Pair
}

// NewMockExecutor creates a new mock executor
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{output: "ok"}
}

// FailWith makes every execution return err
func (m *MockExecutor) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Execute records the call and returns the configured outcome
func (m *MockExecutor) Execute(cfg types.SSHConfig, command string, pair types.Pair) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, Execution{Config: cfg, Command: command, Pair: pair})
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

// Executions returns all recorded runs
func (m *MockExecutor) Executions() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Execution(nil), m.executions...)
}

// MockNotifier records alerts instead of delivering them
type MockNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

// Alert is one recorded notification
type Alert struct {
	Pair      types.Pair
	Message   string
	Attempt   int
	NextCheck time.Duration
	Recovered bool
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyOutage records an outage alert
func (m *MockNotifier) NotifyOutage(pair types.Pair, message string, attempt int, nextCheck time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, Alert{Pair: pair, Message: message, Attempt: attempt, NextCheck: nextCheck})
}

// NotifyRecovery records a recovery alert
func (m *MockNotifier) NotifyRecovery(pair types.Pair, message string, attempts int, nextCheck time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, Alert{Pair: pair, Message: message, Attempt: attempts, NextCheck: nextCheck, Recovered: true})
}

// Alerts returns all recorded alerts
func (m *MockNotifier) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}

// MockStateStore is an in-memory StateStore
type MockStateStore struct {
	mu      sync.RWMutex
	states  map[string]*state.PairState
	locked  map[string]bool
	records []Record
}

// Record is one persisted check outcome
type Record struct {
	Pair     types.Pair
	Result   types.CheckResult
	Status   types.PairStatus
	Interval time.Duration
	Attempts int
}

// NewMockStateStore creates a new mock state store
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		states: make(map[string]*state.PairState),
		locked: make(map[string]bool),
	}
}

// Lock marks a pair as owned by another process
func (m *MockStateStore) Lock(pair types.Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[pair.Key()] = true
}

// InitializeState creates in-memory state for a pair
func (m *MockStateStore) InitializeState(pair types.Pair, baseInterval time.Duration) (*state.PairState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &state.PairState{
		Pair:            pair,
		Status:          types.PairStatusUnknown,
		CurrentInterval: baseInterval,
		Heartbeat:       time.Now(),
	}
	m.states[pair.Key()] = st
	return st, nil
}

// RecordCheck stores the outcome of one cycle
func (m *MockStateStore) RecordCheck(pair types.Pair, result types.CheckResult, status types.PairStatus, interval time.Duration, recoveryAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, Record{
		Pair: pair, Result: result, Status: status, Interval: interval, Attempts: recoveryAttempts,
	})
	if st, ok := m.states[pair.Key()]; ok {
		st.Status = status
		st.CurrentInterval = interval
		st.RecoveryAttempts = recoveryAttempts
		st.CheckCount++
		if !result.Available {
			st.FailureCount++
		}
	}
	return nil
}

// IsLocked reports scripted lock state
func (m *MockStateStore) IsLocked(pair types.Pair) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked[pair.Key()], nil
}

// StartHeartbeat is a no-op
func (m *MockStateStore) StartHeartbeat(ctx context.Context) {}

// Cleanup is a no-op
func (m *MockStateStore) Cleanup() error { return nil }

// Records returns all persisted check outcomes
func (m *MockStateStore) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.records...)
}

// States returns a copy of the in-memory state map
func (m *MockStateStore) States() map[string]*state.PairState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*state.PairState, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}
