package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Reason describes why the supervisor shuts down.
type Reason int

const (
	// ReasonSignal is a regular shutdown requested by SIGINT or SIGTERM
	ReasonSignal Reason = iota
	// ReasonUnhealthy is a shutdown after a worker stopped unexpectedly
	ReasonUnhealthy
	// ReasonStartup is a shutdown after the supervisor failed to start
	ReasonStartup
)

func (r Reason) String() string {
	switch r {
	case ReasonSignal:
		return "signal"
	case ReasonUnhealthy:
		return "unhealthy"
	case ReasonStartup:
		return "startup"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit code for the shutdown reason.
func (r Reason) ExitCode() int {
	if r == ReasonSignal {
		return 0
	}

	return 1
}

// Exiter terminates the supervisor process with the given exit code.
type Exiter func(code int)

// Coordinator turns termination signals and fatal conditions into a
// single shutdown: every registered worker is asked to stop once, then
// the process exits.
type Coordinator struct {
	registry *Registry
	state    stateFlag
	exit     Exiter

	armOnce    sync.Once
	disarmOnce sync.Once
	signals    chan os.Signal
	disarmed   chan struct{}

	log *zap.Logger
}

func NewCoordinator(registry *Registry, exit Exiter, log *zap.Logger) *Coordinator {
	if exit == nil {
		exit = os.Exit
	}

	return &Coordinator{
		registry: registry,
		exit:     exit,
		signals:  make(chan os.Signal, 1),
		disarmed: make(chan struct{}),
		log:      log,
	}
}

// Arm installs the handlers for SIGINT and SIGTERM. It must be called
// before any worker starts. Subsequent calls are no-ops.
func (c *Coordinator) Arm() {
	c.armOnce.Do(func() {
		signal.Notify(c.signals, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			select {
			case sig := <-c.signals:
				c.shutdown(ReasonSignal, sig, true)
			case <-c.disarmed:
			}
		}()

		c.log.Debug("signal handlers armed")
	})
}

// Disarm removes the signal handlers.
func (c *Coordinator) Disarm() {
	c.disarmOnce.Do(func() {
		signal.Stop(c.signals)
		close(c.disarmed)
	})
}

// State returns the current supervisor state.
func (c *Coordinator) State() State {
	return c.state.Load()
}

// MarkRunning moves the supervisor from starting to running. It
// reports false if a shutdown already began.
func (c *Coordinator) MarkRunning() bool {
	return c.state.CompareAndSwap(StateStarting, StateRunning)
}

// RequestShutdown signals every worker to stop and exits the process
// with the exit code of reason. Only the first request has an effect,
// it reports whether this call performed the shutdown.
func (c *Coordinator) RequestShutdown(reason Reason) bool {
	return c.shutdown(reason, nil, true)
}

// Drain signals every worker to stop without exiting the process. It
// is used when the process is already on its way out, usually because
// the application saw the termination signal first.
func (c *Coordinator) Drain(reason Reason) bool {
	var sig os.Signal
	if reason == ReasonSignal {
		sig = c.pendingSignal()
	}

	return c.shutdown(reason, sig, false)
}

// pendingSignal returns a signal delivered but not yet handled, if any.
func (c *Coordinator) pendingSignal() os.Signal {
	select {
	case sig := <-c.signals:
		return sig
	default:
		return nil
	}
}

func (c *Coordinator) shutdown(reason Reason, sig os.Signal, exit bool) bool {
	if !c.begin() {
		return false
	}

	log := c.log.With(zap.Stringer("reason", reason))
	if sig != nil {
		log = log.With(zap.Stringer("signal", sig))
	}

	log.Info("shutting down")

	handles := c.registry.Seal()
	for _, h := range handles {
		h.RequestStop()
	}

	c.state.Store(StateExited)

	log.Info("stop requested from all workers",
		zap.Int("workers", len(handles)),
		zap.Int("exit_code", reason.ExitCode()),
	)

	if exit {
		c.exit(reason.ExitCode())
	}

	return true
}

func (c *Coordinator) begin() bool {
	for {
		current := c.state.Load()
		if current >= StateShuttingDown {
			return false
		}

		if c.state.CompareAndSwap(current, StateShuttingDown) {
			return true
		}
	}
}
