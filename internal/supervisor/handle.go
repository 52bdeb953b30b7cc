package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lambda-feedback/imapvisor/internal/worker"
	"go.uber.org/zap"
)

// Handle is the runtime handle of a spawned worker.
type Handle struct {
	// Descriptor is the configuration the worker was created from
	Descriptor Descriptor

	// RunID uniquely identifies this worker run in logs and reports
	RunID uuid.UUID

	worker worker.Worker

	mu            sync.Mutex
	started       bool
	stopRequested bool
	cancel        context.CancelFunc

	done chan struct{}
	err  error

	log *zap.Logger
}

func newHandle(d Descriptor, w worker.Worker, log *zap.Logger) *Handle {
	runID := uuid.New()

	return &Handle{
		Descriptor: d,
		RunID:      runID,
		worker:     w,
		done:       make(chan struct{}),
		log: log.With(
			zap.String("worker", d.ID),
			zap.Stringer("run_id", runID),
		),
	}
}

// Start runs the worker in its own goroutine and returns immediately.
// The worker is detached from the cancellation of ctx, it only stops
// once RequestStop is called. A worker that was asked to stop before
// it started is never run.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrWorkerAlreadyStarted
	}

	h.started = true

	if h.stopRequested {
		close(h.done)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel

	go h.run(runCtx)

	return nil
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("worker panicked: %v", r)
			h.log.Error("worker panicked", zap.Any("panic", r))
		}
	}()

	h.log.Info("worker started")

	err := h.worker.Run(ctx)
	if err != nil {
		h.err = err
		h.log.Error("worker exited", zap.Error(err))
		return
	}

	h.log.Info("worker exited")
}

// RequestStop asks the worker to finish its current unit of work and
// exit. It does not wait for the worker. Calling it more than once, or
// on a worker that already stopped, is a no-op.
func (h *Handle) RequestStop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopRequested {
		return
	}

	h.stopRequested = true

	if h.cancel != nil {
		h.log.Info("requesting worker stop")
		h.cancel()
	}
}

// StopRequested reports whether RequestStop was called.
func (h *Handle) StopRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stopRequested
}

// Running reports whether the worker was started and has not exited yet.
func (h *Handle) Running() bool {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if !started {
		return false
	}

	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed once the worker exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the error the worker exited with. It is only
// meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
