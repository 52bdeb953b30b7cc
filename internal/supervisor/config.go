package supervisor

import "time"

type Config struct {
	// Directory is the directory scanned for worker configurations
	Directory string `conf:"config_dir"`

	// Suffix is the file name suffix of a worker configuration.
	// An empty suffix accepts every regular file.
	Suffix string `conf:"config_suffix"`

	// SpawnDelay is the pause between two successive worker spawns.
	// It only keeps the startup output of workers apart, zero disables it.
	SpawnDelay time.Duration `conf:"spawn_delay"`

	// CheckInterval is the interval of the liveness check
	CheckInterval time.Duration `conf:"check_interval"`
}

var DefaultConfig = Config{
	Directory:     "/config",
	Suffix:        ".yaml",
	SpawnDelay:    5 * time.Second,
	CheckInterval: 10 * time.Minute,
}

// Defaults returns the default config as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"config_dir":     DefaultConfig.Directory,
		"config_suffix":  DefaultConfig.Suffix,
		"spawn_delay":    DefaultConfig.SpawnDelay,
		"check_interval": DefaultConfig.CheckInterval,
	}
}
