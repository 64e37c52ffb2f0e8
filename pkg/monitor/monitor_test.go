package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/mocks"
	"github.com/linkwatch/linkwatch/pkg/types"
)

const testURL = "http://api.internal/health"

var testPair = types.Pair{DC: "DC1", Service: "API"}

type testHarness struct {
	monitor  *Monitor
	checker  *mocks.MockChecker
	executor *mocks.MockExecutor
	notifier *mocks.MockNotifier
	states   *mocks.MockStateStore
}

func newHarness(t *testing.T, cfg *types.MonitorConfig) *testHarness {
	t.Helper()

	if cfg == nil {
		cfg = &types.MonitorConfig{
			BaseInterval:    10 * time.Second,
			MaxInterval:     25 * time.Second,
			BackoffFactor:   2.0,
			CheckAttempts:   3,
			CheckRetryDelay: time.Millisecond,
			Command:         "systemctl restart uplink",
			Pairs:           []types.Pair{testPair},
			ServiceURLs:     map[string]string{"API": testURL},
			SSHConfigs: map[string]types.SSHConfig{
				"DC1": {Host: "10.0.0.1", Port: 22, Username: "ops", Password: "secret"},
			},
		}
	}

	h := &testHarness{
		checker:  mocks.NewMockChecker(),
		executor: mocks.NewMockExecutor(),
		notifier: mocks.NewMockNotifier(),
		states:   mocks.NewMockStateStore(),
	}
	h.monitor = New(cfg, logger.CreateConsoleLogger("error"), Dependencies{
		Checker:  h.checker,
		Executor: h.executor,
		Notifier: h.notifier,
		States:   h.states,
	})
	return h
}

// initPair mirrors what Start does for one pair so tests can drive
// check cycles directly
func (h *testHarness) initPair(pair types.Pair) {
	h.states.InitializeState(pair, h.monitor.config.BaseInterval)
	h.monitor.runtimes[pair.Key()] = &pairRuntime{
		status:   types.PairStatusUnknown,
		interval: h.monitor.config.BaseInterval,
		backoff:  h.monitor.newBackoff(),
	}
}

func (h *testHarness) cycle() {
	h.monitor.runCheck(context.Background(), testPair)
}

func up() types.CheckResult {
	return types.CheckResult{Available: true, ResponseTime: 20 * time.Millisecond, Attempts: 1, StatusCode: 200}
}

func down() types.CheckResult {
	return types.CheckResult{Available: false, Attempts: 3, Err: "connection refused"}
}

func TestFirstFailure_RunsRecoveryAndBacksOff(t *testing.T) {
	h := newHarness(t, nil)
	h.initPair(testPair)
	h.checker.Script(testURL, down())

	h.cycle()

	execs := h.executor.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 recovery execution, got %d", len(execs))
	}
	if execs[0].Command != "systemctl restart uplink" {
		t.Errorf("unexpected command: %s", execs[0].Command)
	}
	if execs[0].Config.Host != "10.0.0.1" {
		t.Errorf("unexpected SSH host: %s", execs[0].Config.Host)
	}

	alerts := h.notifier.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Recovered {
		t.Error("expected outage alert, got recovery")
	}
	if alerts[0].Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", alerts[0].Attempt)
	}
	if alerts[0].NextCheck != 20*time.Second {
		t.Errorf("expected backed-off next check 20s, got %s", alerts[0].NextCheck)
	}
	if !strings.Contains(alerts[0].Message, "Unavailable after 3 check attempts") {
		t.Errorf("unexpected first-detection message: %q", alerts[0].Message)
	}

	records := h.states.Records()
	if len(records) != 1 || records[0].Status != types.PairStatusDown {
		t.Errorf("expected a down record, got %+v", records)
	}
}

func TestRepeatedFailure_BackoffCapped(t *testing.T) {
	h := newHarness(t, nil)
	h.initPair(testPair)
	h.checker.Script(testURL, down())

	h.cycle()
	h.cycle()
	h.cycle()

	alerts := h.notifier.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}

	// base 10s, factor 2, cap 25s: 20, 25, 25
	wantIntervals := []time.Duration{20 * time.Second, 25 * time.Second, 25 * time.Second}
	for i, want := range wantIntervals {
		if alerts[i].NextCheck != want {
			t.Errorf("alert %d: expected next check %s, got %s", i, want, alerts[i].NextCheck)
		}
		if alerts[i].Attempt != i+1 {
			t.Errorf("alert %d: expected attempt %d, got %d", i, i+1, alerts[i].Attempt)
		}
	}

	if !strings.Contains(alerts[1].Message, "still unavailable after 2 recovery attempts") {
		t.Errorf("unexpected repeat message: %q", alerts[1].Message)
	}
	if len(h.executor.Executions()) != 3 {
		t.Errorf("expected recovery on every failed cycle, got %d", len(h.executor.Executions()))
	}
}

func TestRecovery_ResetsIntervalAndCounter(t *testing.T) {
	h := newHarness(t, nil)
	h.initPair(testPair)
	h.checker.Script(testURL, down(), up(), down())

	h.cycle() // down
	h.cycle() // recovered
	h.cycle() // down again

	alerts := h.notifier.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}

	recovery := alerts[1]
	if !recovery.Recovered {
		t.Fatal("expected second alert to be a recovery")
	}
	if recovery.Attempt != 1 {
		t.Errorf("expected recovery after 1 attempt, got %d", recovery.Attempt)
	}
	if recovery.NextCheck != 10*time.Second {
		t.Errorf("expected interval reset to base, got %s", recovery.NextCheck)
	}

	// Counter and backoff restart after recovery
	relapse := alerts[2]
	if relapse.Attempt != 1 {
		t.Errorf("expected relapse to count as attempt 1, got %d", relapse.Attempt)
	}
	if relapse.NextCheck != 20*time.Second {
		t.Errorf("expected backoff restart at 20s, got %s", relapse.NextCheck)
	}
	if !strings.Contains(relapse.Message, "Unavailable after") {
		t.Errorf("expected first-detection message after relapse: %q", relapse.Message)
	}
}

func TestSuccess_NoAlertsNoRecovery(t *testing.T) {
	h := newHarness(t, nil)
	h.initPair(testPair)
	h.checker.Script(testURL, up())

	h.cycle()
	h.cycle()

	if len(h.notifier.Alerts()) != 0 {
		t.Errorf("expected no alerts, got %v", h.notifier.Alerts())
	}
	if len(h.executor.Executions()) != 0 {
		t.Errorf("expected no recovery runs, got %d", len(h.executor.Executions()))
	}

	records := h.states.Records()
	if len(records) != 2 || records[0].Status != types.PairStatusUp {
		t.Errorf("expected up records, got %+v", records)
	}
}

func TestUnknownToUp_NoRecoveryAlert(t *testing.T) {
	h := newHarness(t, nil)
	h.initPair(testPair)
	h.checker.Script(testURL, up())

	h.cycle()

	if len(h.notifier.Alerts()) != 0 {
		t.Errorf("expected no recovery alert from unknown status, got %v", h.notifier.Alerts())
	}
}

func TestMissingURL_ReschedulesWithoutCheck(t *testing.T) {
	cfg := &types.MonitorConfig{
		BaseInterval:  10 * time.Second,
		MaxInterval:   25 * time.Second,
		BackoffFactor: 2.0,
		CheckAttempts: 3,
		Command:       "restart",
		Pairs:         []types.Pair{testPair},
		ServiceURLs:   map[string]string{},
		SSHConfigs:    map[string]types.SSHConfig{},
	}
	h := newHarness(t, cfg)
	h.initPair(testPair)

	h.cycle()

	if h.checker.Calls(testURL) != 0 {
		t.Error("expected no probe without a URL")
	}
	if h.monitor.sched.Len() != 1 {
		t.Error("expected pair rescheduled despite missing URL")
	}
}

func TestMissingSSHConfig_AlertsWithoutRecovery(t *testing.T) {
	cfg := &types.MonitorConfig{
		BaseInterval:  10 * time.Second,
		MaxInterval:   25 * time.Second,
		BackoffFactor: 2.0,
		CheckAttempts: 3,
		Command:       "restart",
		Pairs:         []types.Pair{testPair},
		ServiceURLs:   map[string]string{"API": testURL},
		SSHConfigs:    map[string]types.SSHConfig{},
	}
	h := newHarness(t, cfg)
	h.initPair(testPair)
	h.checker.Script(testURL, down())

	h.cycle()

	if len(h.executor.Executions()) != 0 {
		t.Error("expected no recovery execution without SSH config")
	}
	if len(h.notifier.Alerts()) != 1 {
		t.Errorf("expected outage alert regardless, got %d", len(h.notifier.Alerts()))
	}
}

func TestExecutorFailure_StillAlertsAndBacksOff(t *testing.T) {
	h := newHarness(t, nil)
	h.initPair(testPair)
	h.checker.Script(testURL, down())
	h.executor.FailWith(errors.New("ssh: handshake failed"))

	h.cycle()

	if len(h.executor.Executions()) != 1 {
		t.Errorf("expected execution attempted, got %d", len(h.executor.Executions()))
	}
	alerts := h.notifier.Alerts()
	if len(alerts) != 1 || alerts[0].NextCheck != 20*time.Second {
		t.Errorf("expected backed-off outage alert, got %+v", alerts)
	}
}

func TestStart_SkipsLockedPairs(t *testing.T) {
	other := types.Pair{DC: "DC2", Service: "WEB"}
	cfg := &types.MonitorConfig{
		BaseInterval:  10 * time.Second,
		MaxInterval:   25 * time.Second,
		BackoffFactor: 2.0,
		CheckAttempts: 3,
		Command:       "restart",
		Pairs:         []types.Pair{testPair, other},
		ServiceURLs:   map[string]string{"API": testURL, "WEB": "http://web/health"},
		SSHConfigs:    map[string]types.SSHConfig{},
	}
	h := newHarness(t, cfg)
	h.states.Lock(other)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.monitor.Start(ctx); err != nil {
		t.Fatalf("expected start to succeed with one free pair: %v", err)
	}

	if _, ok := h.states.States()[other.Key()]; ok {
		t.Error("expected locked pair not to be initialized")
	}
	if _, ok := h.states.States()[testPair.Key()]; !ok {
		t.Error("expected free pair to be initialized")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	cancel()
	h.monitor.Stop(shutdownCtx)
}

func TestStart_AllPairsLocked(t *testing.T) {
	h := newHarness(t, nil)
	h.states.Lock(testPair)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.monitor.Start(ctx); err == nil {
		t.Error("expected error when every pair is locked")
	}
}

func TestLifecycle_ChecksRunThroughLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("loop test uses real scheduler ticks")
	}

	cfg := &types.MonitorConfig{
		BaseInterval:  time.Second,
		MaxInterval:   2 * time.Second,
		BackoffFactor: 2.0,
		CheckAttempts: 1,
		Command:       "restart",
		Pairs:         []types.Pair{testPair},
		ServiceURLs:   map[string]string{"API": testURL},
		SSHConfigs: map[string]types.SSHConfig{
			"DC1": {Host: "10.0.0.1", Port: 22, Username: "ops", Password: "x"},
		},
	}
	h := newHarness(t, cfg)
	h.checker.Script(testURL, up())

	ctx, cancel := context.WithCancel(context.Background())
	if err := h.monitor.Start(ctx); err != nil {
		t.Fatalf("failed to start monitor: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for h.checker.Calls(testURL) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one check through the loop")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	h.monitor.Stop(shutdownCtx)

	if err := h.monitor.Cleanup(); err != nil {
		t.Errorf("cleanup failed: %v", err)
	}
}
