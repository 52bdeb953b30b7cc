package supervisor

import (
	"context"

	"github.com/lambda-feedback/imapvisor/internal/worker"
	"github.com/lambda-feedback/imapvisor/util/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module(config Config) fx.Option {
	return fx.Module(
		"supervisor",
		// rename logger for module
		logging.DecorateLogger("supervisor"),
		// provide config
		fx.Supply(config),
		// provide supervisor
		fx.Provide(NewLifecycleSupervisor),
		// invoke supervisor
		fx.Invoke(func(*Supervisor) {}),
	)
}

type LifecycleParams struct {
	fx.In

	// Context is the application context, workers and the monitor
	// loop are bound to it
	Context context.Context

	Config     Config
	Factory    worker.Factory
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
}

func NewLifecycleSupervisor(params LifecycleParams, lc fx.Lifecycle) (*Supervisor, error) {
	exit := func(code int) {
		if err := params.Shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
			params.Logger.Error("error requesting shutdown", zap.Error(err))
		}
	}

	s, err := New(Params{
		Config:  params.Config,
		Factory: params.Factory,
		Exit:    exit,
		Log:     params.Logger,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start(params.Context)
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})

	return s, nil
}
