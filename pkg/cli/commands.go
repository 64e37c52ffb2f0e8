package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/linkwatch/linkwatch/pkg/config"
	"github.com/linkwatch/linkwatch/pkg/daemon"
	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/state"
	"github.com/linkwatch/linkwatch/pkg/types"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all monitored pairs",
		Long:  `Display the last known state of every DC:SRV pair, including check counts and the current interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the monitor configuration",
		Long:  `Load the environment configuration and check that every pair has a URL, SSH access and alerting configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example .env configuration",
		Long:  `Create an annotated example .env file in the project root to start from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing .env file")

	return cmd
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the linkwatch daemon",
		Long:  `Control the linkwatch background daemon process.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start the daemon",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonStart()
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the daemon",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonStop()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show daemon status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemonStatus()
			},
		},
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of linkwatch",
		Long:  `Print the version number of linkwatch`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("📡 linkwatch v%s\n", version)
		},
	}
}

// Implementation functions

func runStatus() error {
	sm := state.NewManager(projectRoot, logger.CreateConsoleLogger(verbosity))

	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}

	if len(states) == 0 {
		printWarning("No state found. Run 'linkwatch watch' to start monitoring.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tSTATUS\tLAST CHECK\tCHECKS\tFAILURES\tINTERVAL")
	fmt.Fprintln(w, "----\t------\t----------\t------\t--------\t--------")

	for _, st := range states {
		lastCheck := "-"
		if !st.LastCheckTime.IsZero() {
			lastCheck = st.LastCheckTime.Format("15:04:05")
		}

		statusColor := color.WhiteString(string(st.Status))
		switch st.Status {
		case types.PairStatusUp:
			statusColor = color.GreenString(string(st.Status))
		case types.PairStatusDown:
			statusColor = color.RedString(string(st.Status))
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			st.Pair,
			statusColor,
			lastCheck,
			st.CheckCount,
			st.FailureCount,
			st.CurrentInterval,
		)
	}

	w.Flush()
	return nil
}

func runValidate() error {
	manager := config.NewManager()

	cfg, warnings, err := manager.Load(envFile)
	if err != nil {
		printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	if len(warnings) > 0 {
		printWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  ⚠ %s\n", warn)
		}
	}

	if err := manager.Validate(cfg); err != nil {
		printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	printSuccess(fmt.Sprintf("Configuration is valid: %d pair(s), base interval %s",
		len(cfg.Pairs), cfg.BaseInterval))
	return nil
}

const exampleEnv = `# linkwatch configuration

# Seconds between checks while a link is up
INTERVAL=60

# Backoff while a link stays down
MAX_INTERVAL=300
BACKOFF_FACTOR=2.0

# HTTP probe behaviour
CHECK_ATTEMPTS=3
CHECK_RETRY_DELAY=1

# DC:SRV pairs to monitor
MAPPINGS=DC1:API,DC2:API

# Recovery command executed on the DC host when a link is down
COMMAND=systemctl restart uplink

# Per-service health endpoints
API_URL=https://api.example.com/health

# Per-DC SSH access
DC1_SSH_HOST=10.0.1.1
DC1_SSH_PORT=22
DC1_SSH_USERNAME=ops
DC1_SSH_PASSWORD=
DC1_SSH_KEY_PATH=/etc/linkwatch/id_rsa
DC2_SSH_HOST=10.0.2.1
DC2_SSH_USERNAME=ops
DC2_SSH_KEY_PATH=/etc/linkwatch/id_rsa

# Telegram alerting
TELEGRAM_BOT_TOKEN=
TELEGRAM_CHAT_ID=

# Logging
LOG_FILE=monitor.log
LOG_MAX_SIZE=10
LOG_BACKUP_COUNT=3
LOG_SUCCESS_REQUESTS=false
`

func runInit(force bool) error {
	path := envFile
	if path == "" {
		path = filepath.Join(projectRoot, ".env")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	if err := os.WriteFile(path, []byte(exampleEnv), 0600); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}

	printSuccess(fmt.Sprintf("Created configuration at %s", path))
	printInfo("Fill in the endpoints, SSH access and Telegram credentials")

	return nil
}

func runDaemonStart() error {
	if daemon.NewControl(projectRoot).IsRunning() {
		return daemon.ErrAlreadyRunning
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}

	args := []string{"watch", "--root", projectRoot, "--verbosity", verbosity}
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}

	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Let go of the child so it is not reaped by us
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		printWarning(fmt.Sprintf("Failed to release daemon process: %v", err))
	}

	printSuccess(fmt.Sprintf("Daemon started (pid %d)", pid))
	return nil
}

func runDaemonStop() error {
	printInfo("Stopping daemon...")
	if err := daemon.NewControl(projectRoot).StopRemote(); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			printWarning("Daemon is not running")
			return nil
		}
		return err
	}

	printSuccess("Daemon stopped")
	return nil
}

func runDaemonStatus() error {
	status := daemon.NewControl(projectRoot).Status()
	if !status.Running {
		printWarning("Daemon is not running")
		return nil
	}

	printSuccess(fmt.Sprintf("Daemon is running (pid %d)", status.PID))
	return nil
}
