package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/types"
	"golang.org/x/sync/errgroup"
)

// tickInterval is the scheduler poll granularity
const tickInterval = time.Second

// Dependencies contains the monitor's injectable collaborators
type Dependencies struct {
	Checker  ServiceChecker
	Executor CommandExecutor
	Notifier AlertNotifier
	States   StateStore
}

// pairRuntime tracks the in-memory check cycle state of one pair
type pairRuntime struct {
	status   types.PairStatus
	attempts int
	interval time.Duration
	backoff  *backoff.ExponentialBackOff
}

// Monitor owns the check loop for all configured pairs
type Monitor struct {
	config *types.MonitorConfig
	logger logger.Logger
	deps   Dependencies
	sched  *Scheduler

	mu       sync.Mutex
	runtimes map[string]*pairRuntime
	inflight map[string]bool

	cancel context.CancelFunc
	group  *errgroup.Group
	checks sync.WaitGroup
}

// New creates a monitor with injected dependencies
func New(cfg *types.MonitorConfig, log logger.Logger, deps Dependencies) *Monitor {
	return &Monitor{
		config:   cfg,
		logger:   log,
		deps:     deps,
		sched:    NewScheduler(),
		runtimes: make(map[string]*pairRuntime),
		inflight: make(map[string]bool),
	}
}

// Start initializes pair state and launches the scheduler loop. It
// returns once the loop is running; cancellation of ctx begins
// shutdown.
func (m *Monitor) Start(ctx context.Context) error {
	m.logStartup()

	started := 0
	now := time.Now()
	for _, pair := range m.config.Pairs {
		locked, err := m.deps.States.IsLocked(pair)
		if err != nil {
			m.logger.Warn("Failed to inspect pair lock",
				logger.WithField("pair", pair.String()),
				logger.WithField("error", err))
		}
		if locked {
			m.logger.Error("Pair is monitored by another process, skipping",
				logger.WithField("pair", pair.String()))
			continue
		}

		if _, err := m.deps.States.InitializeState(pair, m.config.BaseInterval); err != nil {
			return fmt.Errorf("failed to initialize state for %s: %w", pair, err)
		}

		m.runtimes[pair.Key()] = &pairRuntime{
			status:   types.PairStatusUnknown,
			interval: m.config.BaseInterval,
			backoff:  m.newBackoff(),
		}
		m.sched.Schedule(pair, now)
		started++
	}

	if started == 0 {
		return fmt.Errorf("no pairs available to monitor")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.deps.States.StartHeartbeat(runCtx)

	g, gctx := errgroup.WithContext(runCtx)
	m.group = g
	g.Go(func() error {
		m.run(gctx)
		return nil
	})

	return nil
}

// Stop cancels the loop and waits for in-flight checks, bounded by ctx
func (m *Monitor) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.checks.Wait()
		if m.group != nil {
			m.group.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown timed out waiting for in-flight checks")
	}
}

// Cleanup releases persistent state ownership
func (m *Monitor) Cleanup() error {
	return m.deps.States.Cleanup()
}

// Private methods

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pair := range m.sched.PopDue(time.Now()) {
				m.dispatch(ctx, pair)
			}
		}
	}
}

func (m *Monitor) dispatch(ctx context.Context, pair types.Pair) {
	m.mu.Lock()
	if m.inflight[pair.Key()] {
		// Completion of the running check owns rescheduling
		m.mu.Unlock()
		return
	}
	m.inflight[pair.Key()] = true
	m.mu.Unlock()

	m.checks.Add(1)
	go func() {
		defer m.checks.Done()
		defer func() {
			m.mu.Lock()
			delete(m.inflight, pair.Key())
			m.mu.Unlock()
		}()
		m.runCheck(ctx, pair)
	}()
}

func (m *Monitor) runCheck(ctx context.Context, pair types.Pair) {
	rt := m.runtimes[pair.Key()]
	pairLog := m.logger.WithPair(pair.String())
	cycleID := uuid.New().String()[:8]

	url, ok := m.config.URLFor(pair.Service)
	if !ok {
		pairLog.Error(fmt.Sprintf("No URL configured for %s (variable %s_URL)", pair.Service, pair.Service))
		m.sched.Schedule(pair, time.Now().Add(rt.interval))
		return
	}

	result := m.deps.Checker.Check(ctx, url)
	if ctx.Err() != nil {
		return
	}

	statusWord := "unavailable"
	if result.Available {
		statusWord = "available"
	}
	statusMsg := fmt.Sprintf("check %s: %s [%.2fms] (attempts: %d/%d)",
		url, statusWord, result.ResponseMillis(), result.Attempts, m.config.CheckAttempts)

	if result.Available {
		if m.config.Log.LogSuccess {
			pairLog.Info(statusMsg, logger.WithField("cycle", cycleID))
		} else {
			pairLog.Debug(statusMsg, logger.WithField("cycle", cycleID))
		}
		m.handleAvailable(pair, rt, result, pairLog)
	} else {
		pairLog.Warn(statusMsg, logger.WithField("cycle", cycleID))
		m.handleUnavailable(pair, rt, result, pairLog)
	}

	if err := m.deps.States.RecordCheck(pair, result, rt.status, rt.interval, rt.attempts); err != nil {
		pairLog.Warn("Failed to persist check result", logger.WithField("error", err))
	}

	m.sched.Schedule(pair, time.Now().Add(rt.interval))
}

func (m *Monitor) handleAvailable(pair types.Pair, rt *pairRuntime, result types.CheckResult, pairLog logger.Logger) {
	recovered := rt.status == types.PairStatusDown
	rt.status = types.PairStatusUp

	if !recovered {
		return
	}

	attempts := rt.attempts
	rt.interval = m.config.BaseInterval
	rt.backoff.Reset()
	rt.attempts = 0

	message := fmt.Sprintf("Service recovered: %s after %d recovery attempts", pair, attempts)
	pairLog.Success(message)

	m.deps.Notifier.NotifyRecovery(pair, message, attempts, rt.interval)
}

func (m *Monitor) handleUnavailable(pair types.Pair, rt *pairRuntime, result types.CheckResult, pairLog logger.Logger) {
	firstDetection := rt.status != types.PairStatusDown
	rt.attempts++

	m.runRecovery(pair, rt, pairLog)

	rt.interval = rt.backoff.NextBackOff()
	rt.status = types.PairStatusDown

	var message string
	if firstDetection {
		message = fmt.Sprintf("Unavailable after %d check attempts. Executed command: `%s`",
			result.Attempts, m.config.Command)
	} else {
		message = fmt.Sprintf(
			"Service still unavailable after %d recovery attempts. Last command: `%s` (check attempts: %d, backoff factor: %.1f)",
			rt.attempts, m.config.Command, result.Attempts, m.config.BackoffFactor)
	}

	m.deps.Notifier.NotifyOutage(pair, message, rt.attempts, rt.interval)
}

// runRecovery executes the recovery command on the pair's DC host.
// It runs on every failed cycle, like the attempt counter implies.
func (m *Monitor) runRecovery(pair types.Pair, rt *pairRuntime, pairLog logger.Logger) {
	sshCfg, ok := m.config.SSHFor(pair.DC)
	if !ok {
		pairLog.Error(fmt.Sprintf("Incomplete SSH configuration for %s", pair.DC))
		return
	}

	pairLog.Info(fmt.Sprintf("Executing recovery command on %s (attempt #%d): %s",
		pair.DC, rt.attempts, m.config.Command))

	output, err := m.deps.Executor.Execute(sshCfg, m.config.Command, pair)
	if err != nil {
		pairLog.Error(fmt.Sprintf("Recovery command failed on %s (attempt #%d)", pair.DC, rt.attempts),
			logger.WithField("error", err))
		return
	}

	pairLog.Info(fmt.Sprintf("Recovery command succeeded on %s (attempt #%d)", pair.DC, rt.attempts),
		logger.WithField("output_bytes", len(output)))
}

func (m *Monitor) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	// The first failed cycle already moves past the base interval,
	// matching min(interval*factor, max) applied per failure
	b.InitialInterval = time.Duration(float64(m.config.BaseInterval) * m.config.BackoffFactor)
	if b.InitialInterval > m.config.MaxInterval {
		b.InitialInterval = m.config.MaxInterval
	}
	b.Multiplier = m.config.BackoffFactor
	b.MaxInterval = m.config.MaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (m *Monitor) logStartup() {
	pairNames := make([]string, len(m.config.Pairs))
	for i, p := range m.config.Pairs {
		pairNames[i] = p.String()
	}

	m.logger.Info(fmt.Sprintf("Starting monitoring with %s interval", m.config.BaseInterval))
	m.logger.Info(fmt.Sprintf("Backoff factor: %.1f, max interval: %s", m.config.BackoffFactor, m.config.MaxInterval))
	m.logger.Info(fmt.Sprintf("Check attempts before failure: %d, retry delay: %s",
		m.config.CheckAttempts, m.config.CheckRetryDelay))
	m.logger.Info("Monitored pairs: " + strings.Join(pairNames, ", "))
	if m.config.Log.LogSuccess {
		m.logger.Info("Logging of successful checks: enabled")
	}
}
