// Package types provides core types and configurations for linkwatch
package types

import (
	"fmt"
	"strings"
	"time"
)

// PairStatus represents the availability status of a monitored pair
type PairStatus string

const (
	PairStatusUnknown PairStatus = "unknown"
	PairStatusUp      PairStatus = "up"
	PairStatusDown    PairStatus = "down"
)

// Pair is a datacenter-to-service mapping. The DC side names the host
// that runs the recovery command, the Service side names the URL that
// gets probed.
type Pair struct {
	DC      string `json:"dc"`
	Service string `json:"service"`
}

// String returns the canonical "DC-Service" form used in logs and alerts
func (p Pair) String() string {
	return p.DC + "-" + p.Service
}

// Key returns a stable identifier safe for file names
func (p Pair) Key() string {
	return p.DC + "_" + p.Service
}

// ParseMappings parses a comma-separated "DC:SRV,DC:SRV" list.
// Malformed entries are returned separately so the caller can log and
// continue, matching the tolerant behavior of the monitor startup.
func ParseMappings(s string) ([]Pair, []string) {
	var pairs []Pair
	var malformed []string

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dc, srv, ok := strings.Cut(entry, ":")
		if !ok {
			malformed = append(malformed, entry)
			continue
		}
		dc = strings.TrimSpace(dc)
		srv = strings.TrimSpace(srv)
		if dc == "" || srv == "" {
			malformed = append(malformed, entry)
			continue
		}
		pairs = append(pairs, Pair{DC: dc, Service: srv})
	}

	return pairs, malformed
}

// CheckResult is the outcome of probing a service URL
type CheckResult struct {
	Available    bool          `json:"available"`
	ResponseTime time.Duration `json:"responseTime"`
	Attempts     int           `json:"attempts"`
	StatusCode   int           `json:"statusCode,omitempty"`
	Err          string        `json:"error,omitempty"`
}

// ResponseMillis returns the response time in milliseconds for display
func (r CheckResult) ResponseMillis() float64 {
	return float64(r.ResponseTime.Microseconds()) / 1000.0
}

// CommandRecord captures one recovery command execution for the
// structured execution log
type CommandRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Pair      string    `json:"pair"`
	Host      string    `json:"dc_host"`
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	Status    string    `json:"status"`
}

// SSHConfig holds the per-DC credentials for recovery command execution
type SSHConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	KeyPath  string
}

// Complete reports whether the config carries enough to open a session.
// Either a password or a key path satisfies the credential requirement.
func (c SSHConfig) Complete() bool {
	if c.Host == "" || c.Username == "" || c.Port <= 0 {
		return false
	}
	return c.Password != "" || c.KeyPath != ""
}

// Validate returns a descriptive error for an unusable config
func (c SSHConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Username == "" {
		return fmt.Errorf("missing username")
	}
	if c.Password == "" && c.KeyPath == "" {
		return fmt.Errorf("no password or key path configured")
	}
	return nil
}

// TelegramConfig holds the alerting credentials
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// LogConfig controls file logging and rotation
type LogConfig struct {
	File        string
	MaxSizeMB   int
	BackupCount int
	LogSuccess  bool
}

// MonitorConfig is the fully resolved monitor configuration
type MonitorConfig struct {
	BaseInterval    time.Duration
	MaxInterval     time.Duration
	BackoffFactor   float64
	CheckAttempts   int
	CheckRetryDelay time.Duration
	Command         string
	Pairs           []Pair

	ServiceURLs map[string]string
	SSHConfigs  map[string]SSHConfig

	Telegram TelegramConfig
	Log      LogConfig
}

// URLFor returns the probe URL for a service, if configured
func (c *MonitorConfig) URLFor(service string) (string, bool) {
	url, ok := c.ServiceURLs[service]
	return url, ok
}

// SSHFor returns the SSH credentials for a DC, if configured
func (c *MonitorConfig) SSHFor(dc string) (SSHConfig, bool) {
	cfg, ok := c.SSHConfigs[dc]
	return cfg, ok
}
