// Package monitor drives the check/recover/alert cycle for all pairs
package monitor

import (
	"context"
	"time"

	"github.com/linkwatch/linkwatch/pkg/state"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// ServiceChecker probes a service URL
type ServiceChecker interface {
	Check(ctx context.Context, url string) types.CheckResult
}

// CommandExecutor runs the recovery command on a DC host
type CommandExecutor interface {
	Execute(cfg types.SSHConfig, command string, pair types.Pair) (string, error)
}

// AlertNotifier delivers status alerts
type AlertNotifier interface {
	NotifyOutage(pair types.Pair, message string, attempt int, nextCheck time.Duration)
	NotifyRecovery(pair types.Pair, message string, attempts int, nextCheck time.Duration)
}

// StateStore persists per-pair state across runs
type StateStore interface {
	InitializeState(pair types.Pair, baseInterval time.Duration) (*state.PairState, error)
	RecordCheck(pair types.Pair, result types.CheckResult, status types.PairStatus, interval time.Duration, recoveryAttempts int) error
	IsLocked(pair types.Pair) (bool, error)
	StartHeartbeat(ctx context.Context)
	Cleanup() error
}
