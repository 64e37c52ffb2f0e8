// Package config handles configuration loading and management
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Environment variables required for the monitor to start
var requiredVars = []string{
	"INTERVAL",
	"MAPPINGS",
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID",
	"COMMAND",
}

// Defaults applied when the optional variables are unset
const (
	DefaultMaxInterval     = 300 * time.Second
	DefaultBackoffFactor   = 2.0
	DefaultCheckAttempts   = 3
	DefaultCheckRetryDelay = time.Second
	DefaultSSHPort         = 22
	DefaultLogFile         = "monitor.log"
	DefaultLogMaxSizeMB    = 10
	DefaultLogBackupCount  = 3
)

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// Load resolves the monitor configuration from the environment. An
// optional .env file is merged in first without overriding variables
// already present in the process environment. Non-fatal problems
// (malformed mappings, incomplete per-DC blocks) come back as warnings;
// missing required variables are fatal.
func (m *Manager) Load(envFile string) (*types.MonitorConfig, []string, error) {
	var warnings []string

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		// Default .env in the working directory is optional
		_ = godotenv.Load()
	}

	if missing := m.missingRequired(); len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	baseInterval, err := envSeconds("INTERVAL", 0)
	if err != nil {
		return nil, nil, err
	}
	if baseInterval <= 0 {
		return nil, nil, fmt.Errorf("INTERVAL must be positive, got %s", os.Getenv("INTERVAL"))
	}

	maxInterval, err := envSeconds("MAX_INTERVAL", DefaultMaxInterval)
	if err != nil {
		return nil, nil, err
	}

	backoffFactor, err := envFloat("BACKOFF_FACTOR", DefaultBackoffFactor)
	if err != nil {
		return nil, nil, err
	}
	if backoffFactor < 1.0 {
		warnings = append(warnings, fmt.Sprintf(
			"BACKOFF_FACTOR %.2f < 1.0 risks a retry storm, clamping to 1.0", backoffFactor))
		backoffFactor = 1.0
	}

	checkAttempts, err := envInt("CHECK_ATTEMPTS", DefaultCheckAttempts)
	if err != nil {
		return nil, nil, err
	}
	if checkAttempts < 1 {
		checkAttempts = 1
	}

	checkRetryDelay, err := envDurationSeconds("CHECK_RETRY_DELAY", DefaultCheckRetryDelay)
	if err != nil {
		return nil, nil, err
	}

	pairs, malformed := types.ParseMappings(os.Getenv("MAPPINGS"))
	for _, entry := range malformed {
		warnings = append(warnings, fmt.Sprintf("malformed mapping entry: %q", entry))
	}
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("MAPPINGS contains no valid DC:SRV pairs")
	}

	chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("TELEGRAM_CHAT_ID must be numeric: %w", err)
	}

	cfg := &types.MonitorConfig{
		BaseInterval:    baseInterval,
		MaxInterval:     maxInterval,
		BackoffFactor:   backoffFactor,
		CheckAttempts:   checkAttempts,
		CheckRetryDelay: checkRetryDelay,
		Command:         os.Getenv("COMMAND"),
		Pairs:           pairs,
		ServiceURLs:     make(map[string]string),
		SSHConfigs:      make(map[string]types.SSHConfig),
		Telegram: types.TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   chatID,
		},
		Log: types.LogConfig{
			File:        envString("LOG_FILE", DefaultLogFile),
			MaxSizeMB:   mustInt("LOG_MAX_SIZE", DefaultLogMaxSizeMB),
			BackupCount: mustInt("LOG_BACKUP_COUNT", DefaultLogBackupCount),
			LogSuccess:  envBool("LOG_SUCCESS_REQUESTS"),
		},
	}

	warnings = append(warnings, m.resolvePairs(cfg)...)

	return cfg, warnings, nil
}

// Validate checks a loaded configuration for problems that would keep
// the monitor from doing useful work
func (m *Manager) Validate(cfg *types.MonitorConfig) error {
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("no pairs configured")
	}
	if cfg.Command == "" {
		return fmt.Errorf("no recovery command configured")
	}
	if cfg.BaseInterval <= 0 {
		return fmt.Errorf("base interval must be positive")
	}
	if cfg.MaxInterval < cfg.BaseInterval {
		return fmt.Errorf("max interval %s is below base interval %s", cfg.MaxInterval, cfg.BaseInterval)
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram alerting is not configured")
	}

	seen := make(map[types.Pair]bool)
	for _, pair := range cfg.Pairs {
		if seen[pair] {
			return fmt.Errorf("duplicate pair: %s", pair)
		}
		seen[pair] = true
	}

	return nil
}

// Private methods

func (m *Manager) missingRequired() []string {
	var missing []string
	for _, name := range requiredVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// resolvePairs fills the per-service URL and per-DC SSH lookup tables.
// Gaps are warnings, not errors: the monitor reports them on every
// cycle for the affected pair while the rest keep working.
func (m *Manager) resolvePairs(cfg *types.MonitorConfig) []string {
	var warnings []string

	for _, pair := range cfg.Pairs {
		if _, ok := cfg.ServiceURLs[pair.Service]; !ok {
			urlVar := pair.Service + "_URL"
			if url := os.Getenv(urlVar); url != "" {
				cfg.ServiceURLs[pair.Service] = url
			} else {
				warnings = append(warnings, fmt.Sprintf("no URL configured for %s (variable %s)", pair.Service, urlVar))
			}
		}

		if _, ok := cfg.SSHConfigs[pair.DC]; !ok {
			sshCfg := sshConfigFromEnv(pair.DC)
			if sshCfg.Complete() {
				cfg.SSHConfigs[pair.DC] = sshCfg
			} else {
				warnings = append(warnings, fmt.Sprintf("incomplete SSH configuration for %s", pair.DC))
			}
		}
	}

	return warnings
}

func sshConfigFromEnv(dc string) types.SSHConfig {
	prefix := dc + "_SSH_"
	port := DefaultSSHPort
	if v := os.Getenv(prefix + "PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	return types.SSHConfig{
		Host:     os.Getenv(prefix + "HOST"),
		Port:     port,
		Username: os.Getenv(prefix + "USERNAME"),
		Password: os.Getenv(prefix + "PASSWORD"),
		KeyPath:  os.Getenv(prefix + "KEY_PATH"),
	}
}

// Environment helpers

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envBool(name string) bool {
	return strings.EqualFold(os.Getenv(name), "true")
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return n, nil
}

func mustInt(name string, fallback int) int {
	n, err := envInt(name, fallback)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(name string, fallback float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return f, nil
}

// envSeconds reads a whole-second interval variable
func envSeconds(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", name, err)
	}
	return time.Duration(n) * time.Second, nil
}

// envDurationSeconds reads a possibly fractional seconds variable
func envDurationSeconds(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number of seconds: %w", name, err)
	}
	return time.Duration(f * float64(time.Second)), nil
}
