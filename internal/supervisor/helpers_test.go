package supervisor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lambda-feedback/imapvisor/internal/supervisor"
	"github.com/lambda-feedback/imapvisor/internal/worker"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBadConfig = errors.New("bad config")

// fakeWorker runs until it is stopped or told to die.
type fakeWorker struct {
	started chan struct{}
	die     chan error
	stops   atomic.Int32
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{
		started: make(chan struct{}),
		die:     make(chan error, 1),
	}
}

func (w *fakeWorker) Run(ctx context.Context) error {
	close(w.started)

	select {
	case <-ctx.Done():
		w.stops.Add(1)
		return nil
	case err := <-w.die:
		return err
	}
}

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fakeFactory hands out a fakeWorker per config file name. Names
// starting with "bad" fail to construct.
type fakeFactory struct {
	mu      sync.Mutex
	workers map[string]*fakeWorker
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{workers: make(map[string]*fakeWorker)}
}

func (f *fakeFactory) New(path string, _ *zap.Logger) (worker.Worker, error) {
	name := filepath.Base(path)

	if len(name) >= 3 && name[:3] == "bad" {
		return nil, errBadConfig
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w := newFakeWorker()
	f.workers[name] = w

	return w, nil
}

func (f *fakeFactory) Worker(name string) *fakeWorker {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.workers[name]
}

func (f *fakeFactory) All() []*fakeWorker {
	f.mu.Lock()
	defer f.mu.Unlock()

	workers := make([]*fakeWorker, 0, len(f.workers))
	for _, w := range f.workers {
		workers = append(workers, w)
	}

	return workers
}

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *exitRecorder) Exit(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes = append(r.codes, code)
}

func (r *exitRecorder) Codes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int(nil), r.codes...)
}

func (r *exitRecorder) Exited() bool {
	return len(r.Codes()) > 0
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		err := os.WriteFile(filepath.Join(dir, name), []byte("kind: exec\n"), 0o644)
		require.NoError(t, err)
	}
}

func descriptors(dir string, names ...string) []supervisor.Descriptor {
	ds := make([]supervisor.Descriptor, 0, len(names))
	for _, name := range names {
		ds = append(ds, supervisor.Descriptor{ID: name, Path: filepath.Join(dir, name)})
	}

	return ds
}

func ids(handles []*supervisor.Handle) []string {
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		ids = append(ids, h.Descriptor.ID)
	}

	return ids
}

func factoryFor(w worker.Worker) worker.Factory {
	return func(string, *zap.Logger) (worker.Worker, error) {
		return w, nil
	}
}
