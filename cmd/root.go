package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lambda-feedback/imapvisor/config"
	"github.com/lambda-feedback/imapvisor/internal/shell"
	"github.com/lambda-feedback/imapvisor/util/conf"
	"github.com/lambda-feedback/imapvisor/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	appName  = "imapvisor"
	appUsage = `Supervises one IMAP to SMTP bridge worker per configuration
file and exits as soon as one of them stops.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		DefaultCommand:  "run",
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "env-file",
				Usage:   "load configuration from a .env, yaml or json file.",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
		// exit codes are handled by Execute
		ExitErrHandler: func(*cli.Context, error) {},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

// Execute runs the cli app and returns the process exit code.
func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return 0
	}

	// if app exited with ExitError, exit with given exit code
	if shell.IsExitError(err) {
		return shell.ExitCode(err)
	}

	fmt.Fprintf(os.Stderr, "exit error: %s\n", err.Error())

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode()
	}

	// otherwise, exit with exit code 1
	return 1
}

// loadConfig parses the config from defaults, the env file, env vars
// and cli flags, and stores it in the cli context.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Cli:      ctx,
		Defaults: config.DefaultConfig,
		FileName: ctx.Path("env-file"),
		Log:      log,
	})
	if err != nil {
		return cfg, err
	}

	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	return cfg, nil
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
