// Package sshexec runs recovery commands on DC hosts over SSH
package sshexec

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/types"
	"golang.org/x/crypto/ssh"
)

// DefaultDialTimeout bounds connection establishment
const DefaultDialTimeout = 15 * time.Second

// Executor opens an SSH session per command execution. Key-file auth
// wins over password auth when both are configured.
type Executor struct {
	dialTimeout time.Duration
	logger      logger.Logger

	// dial is swappable for tests
	dial func(network, addr string, config *ssh.ClientConfig) (sshClient, error)
}

// sshClient is the subset of *ssh.Client the executor needs
type sshClient interface {
	NewSession() (*ssh.Session, error)
	Close() error
}

// New creates an executor
func New(log logger.Logger) *Executor {
	return &Executor{
		dialTimeout: DefaultDialTimeout,
		logger:      log,
		dial: func(network, addr string, config *ssh.ClientConfig) (sshClient, error) {
			return ssh.Dial(network, addr, config)
		},
	}
}

// Execute runs command on the pair's DC host and returns the combined
// output. Every execution is logged as a structured JSON record so the
// log file doubles as an audit trail.
func (e *Executor) Execute(cfg types.SSHConfig, command string, pair types.Pair) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("ssh config for %s: %w", pair.DC, err)
	}

	clientCfg, err := e.clientConfig(cfg)
	if err != nil {
		return "", err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := e.dial("tcp", addr, clientCfg)
	if err != nil {
		return "", fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session on %s: %w", addr, err)
	}
	defer session.Close()

	output, runErr := session.CombinedOutput(command)

	record := types.CommandRecord{
		Timestamp: time.Now().UTC(),
		Pair:      pair.String(),
		Host:      cfg.Host,
		Command:   command,
		Output:    string(output),
		Status:    "executed",
	}
	if runErr != nil {
		record.Status = fmt.Sprintf("failed: %v", runErr)
	}
	e.logRecord(record)

	if runErr != nil {
		return string(output), fmt.Errorf("remote command on %s: %w", cfg.Host, runErr)
	}
	return string(output), nil
}

// Private methods

func (e *Executor) clientConfig(cfg types.SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if cfg.KeyPath != "" {
		keyData, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", cfg.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", cfg.KeyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	return &ssh.ClientConfig{
		User: cfg.Username,
		Auth: auth,
		// Hosts are operator-configured DC machines; first-contact
		// trust matches the original monitor's behavior.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106
		Timeout:         e.dialTimeout,
	}, nil
}

func (e *Executor) logRecord(record types.CommandRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		e.logger.Error("failed to encode command record", logger.WithField("error", err))
		return
	}
	e.logger.Info("COMMAND_EXECUTED: " + string(data))
}
