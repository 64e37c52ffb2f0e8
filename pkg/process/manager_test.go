package process_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/process"
)

func testLogger() logger.Logger {
	return logger.CreateConsoleLogger("error")
}

func TestManager_ShutdownHandlersReverseOrder(t *testing.T) {
	m := process.NewManager(testLogger())

	var order []int
	done := make(chan struct{})
	m.RegisterShutdownHandler(func() { order = append(order, 1) })
	m.RegisterShutdownHandler(func() { order = append(order, 2) })
	m.RegisterShutdownHandler(func() {
		order = append(order, 3)
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	if !m.IsRunning() {
		t.Error("expected manager running after start")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown handlers did not run")
	}

	// Handler 3 runs first, then 2, then 1
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("expected reverse order [3 2 1], got %v", order)
	}
	if m.IsRunning() {
		t.Error("expected manager stopped after shutdown")
	}
}

func TestManager_StartIdempotent(t *testing.T) {
	m := process.NewManager(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	m.Start(ctx) // Second start is a no-op
	m.Stop()
	m.Stop() // As is a second stop

	if m.IsRunning() {
		t.Error("expected manager stopped")
	}
}

func TestGetInfo_OwnProcess(t *testing.T) {
	info, err := process.GetInfo(os.Getpid())
	if err != nil {
		t.Fatalf("failed to get process info: %v", err)
	}
	if !info.IsRunning {
		t.Error("expected own process to be running")
	}
	if info.PID != os.Getpid() {
		t.Errorf("expected own pid, got %d", info.PID)
	}
}

func TestGetInfo_DeadProcess(t *testing.T) {
	info, err := process.GetInfo(999999)
	if err != nil {
		// FindProcess errors are acceptable for nonsense pids
		return
	}
	if info.IsRunning {
		t.Error("expected pid 999999 not to be running")
	}
}
