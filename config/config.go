package config

import "github.com/lambda-feedback/imapvisor/internal/supervisor"

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// LockFile is the path of the lock file preventing two supervisors
	// from running on the same host. Empty disables the lock.
	LockFile string `conf:"lock_file"`

	// Supervisor is the supervisor configuration
	Supervisor supervisor.Config `conf:",squash"`
}

// DefaultConfig holds the flat default values for Config.
var DefaultConfig = supervisor.Defaults()
