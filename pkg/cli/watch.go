package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkwatch/linkwatch/pkg/daemon"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Start monitoring in the foreground",
		Long: `Start linkwatch in the foreground. All configured DC:SRV pairs are
checked on their schedule until the process receives SIGINT or SIGTERM.

This is the mode to use inside a container, where the monitor should be
the single foreground process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func runWatch() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := daemon.NewManager(daemon.Config{
		ProjectRoot: projectRoot,
		EnvFile:     envFile,
		LogLevel:    verbosity,
	})
	if err != nil {
		return err
	}

	printInfo(fmt.Sprintf("Starting linkwatch v%s", version))

	if err := m.Start(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("another linkwatch instance is already running for this root")
		}
		return fmt.Errorf("failed to start: %w", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	printInfo(fmt.Sprintf("Received signal: %s", sig))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	printInfo("Shutting down gracefully...")
	if err := m.Stop(shutdownCtx); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
		printWarning(fmt.Sprintf("Shutdown error: %v", err))
	}

	printSuccess("linkwatch stopped gracefully")
	return nil
}
