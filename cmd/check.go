package cmd

import (
	"github.com/lambda-feedback/imapvisor/internal/supervisor"
	"github.com/lambda-feedback/imapvisor/internal/worker"
	"github.com/lambda-feedback/imapvisor/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	checkCmdDescription = `The check command discovers all worker configuration
files and validates them without starting any worker. It
exits with 1 if the config directory can not be read or any
configuration is invalid.`
	checkCmd = &cli.Command{
		Name:        "check",
		Usage:       "Validate the worker configuration files.",
		Description: checkCmdDescription,
		Action:      checkAction,
		Flags:       discoveryFlags(),
	}
)

func checkAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	descriptors, err := supervisor.Discover(cfg.Supervisor.Directory, cfg.Supervisor.Suffix, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	invalid := 0
	for _, d := range descriptors {
		if _, err := worker.New(d.Path, log); err != nil {
			log.Error("invalid configuration", zap.String("worker", d.ID), zap.Error(err))
			invalid++
			continue
		}

		log.Info("configuration valid", zap.String("worker", d.ID))
	}

	if invalid > 0 {
		return cli.Exit("invalid worker configuration", 1)
	}

	log.Info("all configurations valid", zap.Int("workers", len(descriptors)))

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, checkCmd)
}
