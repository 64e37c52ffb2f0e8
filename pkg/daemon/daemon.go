// Package daemon provides background daemon functionality
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linkwatch/linkwatch/pkg/config"
	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/monitor"
	"github.com/linkwatch/linkwatch/pkg/process"
)

// Manager manages the linkwatch daemon
type Manager struct {
	projectRoot    string
	envFile        string
	pidFile        string
	stateDir       string
	logger         logger.Logger
	processManager *process.Manager
	monitor        *monitor.Monitor

	mu           sync.RWMutex
	started      bool
	shutdownOnce sync.Once
}

// Config represents daemon configuration
type Config struct {
	ProjectRoot string
	EnvFile     string
	LogLevel    string
}

// NewManager creates a new daemon manager
func NewManager(cfg Config) (*Manager, error) {
	stateDir := filepath.Join(cfg.ProjectRoot, ".linkwatch")
	pidFile := filepath.Join(stateDir, "daemon.pid")

	manager := config.NewManager()
	monitorCfg, warnings, err := manager.Load(cfg.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.CreateLogger(monitorCfg.Log, cfg.LogLevel)
	for _, w := range warnings {
		log.Warn(w)
	}

	if err := manager.Validate(monitorCfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	deps := monitor.NewDefaultDependencies(cfg.ProjectRoot, monitorCfg, log)

	return &Manager{
		projectRoot:    cfg.ProjectRoot,
		envFile:        cfg.EnvFile,
		pidFile:        pidFile,
		stateDir:       stateDir,
		logger:         log,
		processManager: process.NewManager(log),
		monitor:        monitor.New(monitorCfg, log, deps),
	}, nil
}

// NewControl creates a manager bound to the PID file only, for
// commands that inspect or stop a daemon without loading the monitor
// configuration
func NewControl(projectRoot string) *Manager {
	stateDir := filepath.Join(projectRoot, ".linkwatch")
	return &Manager{
		projectRoot: projectRoot,
		pidFile:     filepath.Join(stateDir, "daemon.pid"),
		stateDir:    stateDir,
		logger:      logger.CreateConsoleLogger("info"),
	}
}

// Start starts the daemon with the given context
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning() {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := m.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	m.processManager.RegisterShutdownHandler(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.shutdown(shutdownCtx)
	})
	m.processManager.Start(ctx)

	if err := m.monitor.Start(ctx); err != nil {
		m.removePIDFile()
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	m.started = true
	m.logger.Info("Daemon started", logger.WithField("pid", os.Getpid()))
	return nil
}

// Stop stops a running daemon owned by this process. Safe to call
// after a signal already triggered shutdown.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.started = false
	m.mu.Unlock()

	m.shutdown(ctx)
	return nil
}

// StopRemote terminates the daemon recorded in the PID file, which may
// belong to another process
func (m *Manager) StopRemote() error {
	pid, err := m.readPIDFile()
	if err != nil {
		return ErrNotRunning
	}

	info, err := process.GetInfo(pid)
	if err != nil || !info.IsRunning {
		m.removePIDFile()
		return ErrNotRunning
	}

	if err := process.Kill(pid); err != nil {
		return fmt.Errorf("failed to stop daemon pid %d: %w", pid, err)
	}

	m.removePIDFile()
	return nil
}

// Status describes the daemon process
type Status struct {
	Running bool
	PID     int
}

// Status returns the daemon status from the PID file
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pid, err := m.readPIDFile()
	if err != nil {
		return Status{}
	}

	info, err := process.GetInfo(pid)
	if err != nil || !info.IsRunning {
		return Status{}
	}

	return Status{Running: true, PID: pid}
}

// IsRunning checks if the daemon is running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning()
}

// Wait blocks until the context is cancelled
func (m *Manager) Wait(ctx context.Context) {
	<-ctx.Done()
}

// Private methods

func (m *Manager) shutdown(ctx context.Context) {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Stopping daemon...")

		if m.monitor != nil {
			m.monitor.Stop(ctx)
			if err := m.monitor.Cleanup(); err != nil {
				m.logger.Warn("Cleanup failed", logger.WithField("error", err))
			}
		}

		m.processManager.Stop()
		m.removePIDFile()

		m.logger.Info("Daemon stopped")
	})
}

func (m *Manager) isRunning() bool {
	pid, err := m.readPIDFile()
	if err != nil {
		return false
	}

	info, err := process.GetInfo(pid)
	if err != nil {
		return false
	}
	return info.IsRunning
}

func (m *Manager) writePIDFile() error {
	return os.WriteFile(m.pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

func (m *Manager) readPIDFile() (int, error) {
	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}

	return pid, nil
}

func (m *Manager) removePIDFile() {
	os.Remove(m.pidFile)
}
