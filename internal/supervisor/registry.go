package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lambda-feedback/imapvisor/internal/worker"
	"go.uber.org/zap"
)

// Registry maps configuration ids to their spawned workers. It is
// written during startup only and keeps discovery order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	handles map[string]*Handle
	sealed  bool

	factory worker.Factory

	log *zap.Logger
}

func NewRegistry(factory worker.Factory, log *zap.Logger) *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		factory: factory,
		log:     log,
	}
}

// Spawn creates the worker for d, records it and starts it. Errors
// from the worker factory are returned as *WorkerConstructionError.
func (r *Registry) Spawn(ctx context.Context, d Descriptor) (*Handle, error) {
	log := r.log.With(zap.String("worker", d.ID), zap.String("path", d.Path))

	w, err := r.factory(d.Path, log)
	if err != nil {
		return nil, &WorkerConstructionError{Descriptor: d, Err: err}
	}

	h := newHandle(d, w, r.log)

	if err := r.insert(h); err != nil {
		return nil, err
	}

	// the handle is recorded before it starts, so a concurrent
	// shutdown can always reach it
	if err := h.Start(ctx); err != nil {
		return nil, err
	}

	return h, nil
}

func (r *Registry) insert(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}

	if _, ok := r.handles[h.Descriptor.ID]; ok {
		return ErrDuplicateWorker
	}

	r.handles[h.Descriptor.ID] = h
	r.order = append(r.order, h.Descriptor.ID)

	return nil
}

// SpawnAll spawns a worker per descriptor, pausing delay between two
// successful spawns. A descriptor that fails to spawn is reported and
// skipped. It returns the number of workers spawned.
func (r *Registry) SpawnAll(ctx context.Context, descriptors []Descriptor, delay time.Duration) int {
	spawned := 0

	for _, d := range descriptors {
		if spawned > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return spawned
			case <-time.After(delay):
			}
		}

		if ctx.Err() != nil {
			return spawned
		}

		r.log.Info("starting worker", zap.String("worker", d.ID), zap.String("path", d.Path))

		h, err := r.Spawn(ctx, d)
		if errors.Is(err, ErrRegistrySealed) {
			r.log.Info("registry sealed, not starting further workers")
			return spawned
		} else if err != nil {
			r.log.Error("error starting worker", zap.String("worker", d.ID), zap.Error(err))
			reportError(err, d, "construction")
			continue
		}

		r.log.Info("worker spawned",
			zap.String("worker", d.ID),
			zap.Stringer("run_id", h.RunID),
		)

		spawned++
	}

	return spawned
}

// All returns a snapshot of all handles in insertion order.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot()
}

func (r *Registry) snapshot() []*Handle {
	handles := make([]*Handle, 0, len(r.order))
	for _, id := range r.order {
		handles = append(handles, r.handles[id])
	}

	return handles
}

// Get returns the handle registered for id.
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	return h, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Seal freezes the registry and returns its final contents. Spawning
// into a sealed registry fails with ErrRegistrySealed.
func (r *Registry) Seal() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true

	return r.snapshot()
}
