package app

import (
	"github.com/lambda-feedback/imapvisor/config"
	"github.com/lambda-feedback/imapvisor/internal/shell"
	"github.com/lambda-feedback/imapvisor/internal/worker"
	"github.com/lambda-feedback/imapvisor/util/conf"
	"github.com/lambda-feedback/imapvisor/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide worker factory
		fx.Provide(func() worker.Factory { return worker.New }),
	)

	return shell.New(log, sharedModule), nil
}
