package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Monitor periodically checks that every registered worker is still
// running. A worker that stopped without being asked to is fatal for
// the whole supervisor.
type Monitor struct {
	registry    *Registry
	coordinator *Coordinator
	interval    time.Duration

	log *zap.Logger
}

func NewMonitor(
	registry *Registry,
	coordinator *Coordinator,
	interval time.Duration,
	log *zap.Logger,
) (*Monitor, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	return &Monitor{
		registry:    registry,
		coordinator: coordinator,
		interval:    interval,
		log:         log,
	}, nil
}

// Run checks the workers every interval until ctx is cancelled or a
// dead worker triggered the shutdown.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Debug("monitoring workers", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dead := m.Check(); dead != nil {
				return
			}
		}
	}
}

// Check performs a single liveness check. If a worker stopped without
// a stop request, it requests an unhealthy shutdown and returns the
// handle of that worker.
func (m *Monitor) Check() *Handle {
	// nothing to check while starting or on the way out
	if m.coordinator.State() != StateRunning {
		return nil
	}

	for _, h := range m.registry.All() {
		if h.Running() || h.StopRequested() {
			continue
		}

		err := fmt.Errorf("%w: %s", ErrWorkerStopped, h.Descriptor.ID)
		if cause := h.Err(); cause != nil {
			err = fmt.Errorf("%w: %w", err, cause)
		}

		m.log.Error("worker is not running",
			zap.String("worker", h.Descriptor.ID),
			zap.Stringer("run_id", h.RunID),
			zap.Error(err),
		)

		reportError(err, h.Descriptor, "liveness")

		m.coordinator.RequestShutdown(ReasonUnhealthy)

		return h
	}

	return nil
}
