package supervisor

import (
	"context"
	"errors"

	"github.com/lambda-feedback/imapvisor/internal/worker"
	"go.uber.org/zap"
)

var ErrNoFactory = errors.New("no worker factory")

type Params struct {
	// Config is the supervisor config
	Config Config

	// Factory creates a worker from a configuration file
	Factory worker.Factory

	// Exit terminates the process, defaults to os.Exit
	Exit Exiter

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

// Supervisor discovers worker configurations, spawns one worker per
// configuration and watches them until the process exits.
type Supervisor struct {
	config Config

	registry    *Registry
	coordinator *Coordinator
	monitor     *Monitor

	cancel context.CancelFunc
	done   chan struct{}

	log *zap.Logger
}

func New(params Params) (*Supervisor, error) {
	if params.Factory == nil {
		return nil, ErrNoFactory
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	registry := NewRegistry(params.Factory, log)
	coordinator := NewCoordinator(registry, params.Exit, log)

	monitor, err := NewMonitor(registry, coordinator, params.Config.CheckInterval, log)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		config:      params.Config,
		registry:    registry,
		coordinator: coordinator,
		monitor:     monitor,
		done:        make(chan struct{}),
		log:         log,
	}, nil
}

// Start discovers the worker configurations and arms the signal
// handlers. Spawning and monitoring continue in the background, bound
// to ctx. A config directory that can not be read fails the start.
func (s *Supervisor) Start(ctx context.Context) error {
	s.log.Info("discovering worker configurations",
		zap.String("directory", s.config.Directory),
		zap.String("suffix", s.config.Suffix),
	)

	descriptors, err := Discover(s.config.Directory, s.config.Suffix, s.log)
	if err != nil {
		s.log.Error("error discovering worker configurations", zap.Error(err))
		// the failed start exits the process with the startup exit code
		s.coordinator.Drain(ReasonStartup)
		return err
	}

	s.coordinator.Arm()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(runCtx, descriptors)

	return nil
}

func (s *Supervisor) run(ctx context.Context, descriptors []Descriptor) {
	defer close(s.done)

	spawned := s.registry.SpawnAll(ctx, descriptors, s.config.SpawnDelay)

	if !s.coordinator.MarkRunning() {
		return
	}

	s.log.Info("supervisor running",
		zap.Int("configurations", len(descriptors)),
		zap.Int("workers", spawned),
	)

	s.monitor.Run(ctx)
}

// Stop asks every worker to stop, unless a shutdown already happened,
// and waits for the background loop to return.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.coordinator.Drain(ReasonSignal)
	s.coordinator.Disarm()

	if s.cancel == nil {
		return nil
	}

	s.cancel()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the background loop returned.
func (s *Supervisor) Wait() {
	<-s.done
}

func (s *Supervisor) Registry() *Registry {
	return s.registry
}

func (s *Supervisor) State() State {
	return s.coordinator.State()
}

// Check runs a single liveness check, see Monitor.Check.
func (s *Supervisor) Check() *Handle {
	return s.monitor.Check()
}
