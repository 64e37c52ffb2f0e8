package daemon

import "errors"

var (
	// ErrAlreadyRunning means a live daemon owns the PID file
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning means no live daemon was found
	ErrNotRunning = errors.New("daemon is not running")
)
