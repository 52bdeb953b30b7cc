package cmd

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/lambda-feedback/imapvisor/app"
	"github.com/lambda-feedback/imapvisor/internal/supervisor"
	"github.com/lambda-feedback/imapvisor/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var ErrLocked = errors.New("another supervisor holds the lock")

var (
	runCmdDescription = `The run command scans the config directory for worker
configuration files and starts one worker per file. It then
checks periodically that every worker is still running.

SIGINT and SIGTERM ask every worker to stop and exit with 0.
If a worker stops on its own, the supervisor exits with 1, so
a container orchestrator can restart it.`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Start one worker per configuration file and supervise them.",
		Description: runCmdDescription,
		Action:      runAction,
		Flags: append(discoveryFlags(),
			&cli.DurationFlag{
				Name:     "spawn-delay",
				Usage:    "pause between starting two workers, 0 disables it.",
				Value:    supervisor.DefaultConfig.SpawnDelay,
				Category: "supervisor",
				EnvVars:  []string{"SPAWN_DELAY"},
			},
			&cli.DurationFlag{
				Name:     "check-interval",
				Usage:    "interval of the worker liveness check.",
				Value:    supervisor.DefaultConfig.CheckInterval,
				Category: "supervisor",
				EnvVars:  []string{"CHECK_INTERVAL"},
			},
			&cli.PathFlag{
				Name:     "lock-file",
				Usage:    "lock file preventing concurrent supervisors. Empty disables locking.",
				Category: "supervisor",
				EnvVars:  []string{"LOCK_FILE"},
			},
		),
	}
)

func discoveryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:     "config-dir",
			Usage:    "directory containing the worker configuration files.",
			Aliases:  []string{"d"},
			Value:    supervisor.DefaultConfig.Directory,
			Category: "supervisor",
			EnvVars:  []string{"CONFIG_DIR"},
		},
		&cli.StringFlag{
			Name:     "config-suffix",
			Usage:    "file name suffix of worker configuration files.",
			Value:    supervisor.DefaultConfig.Suffix,
			Category: "supervisor",
			EnvVars:  []string{"CONFIG_SUFFIX"},
		},
	}
}

func runAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if cfg.LockFile != "" {
		lock := flock.New(cfg.LockFile)

		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("error acquiring lock %s: %w", cfg.LockFile, err)
		}

		if !locked {
			return fmt.Errorf("%w: %s", ErrLocked, cfg.LockFile)
		}

		defer lock.Unlock()

		log.Debug("lock acquired", zap.String("lock_file", cfg.LockFile))
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	return app.Run(ctx.Context, supervisor.Module(cfg.Supervisor))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, runCmd)
}
