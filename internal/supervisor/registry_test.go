package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/lambda-feedback/imapvisor/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_SpawnAll_RegistersEveryWorker(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	names := []string{"a.yaml", "b.yaml", "c.yaml", "d.yaml"}

	n := r.SpawnAll(context.Background(), descriptors("/config", names...), 0)

	assert.Equal(t, len(names), n)
	assert.Equal(t, len(names), r.Len())
	assert.Equal(t, names, ids(r.All()))

	for _, name := range names {
		h, ok := r.Get(name)
		require.True(t, ok)
		assert.Equal(t, "/config/"+name, h.Descriptor.Path)

		<-f.Worker(name).started
		assert.True(t, h.Running())
	}

	r.Seal()
	for _, h := range r.All() {
		h.RequestStop()
	}
}

func TestRegistry_SpawnAll_AssignsDistinctRunIDs(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	r.SpawnAll(context.Background(), descriptors("/config", "a.yaml", "b.yaml"), 0)

	handles := r.All()
	require.Len(t, handles, 2)
	assert.NotEqual(t, handles[0].RunID, handles[1].RunID)
}

func TestRegistry_SpawnAll_SkipsBrokenConfiguration(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	n := r.SpawnAll(context.Background(), descriptors("/config", "a.yaml", "bad.yaml", "c.yaml"), 0)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a.yaml", "c.yaml"}, ids(r.All()))

	_, ok := r.Get("bad.yaml")
	assert.False(t, ok)
}

func TestRegistry_Spawn_ReturnsConstructionError(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	d := supervisor.Descriptor{ID: "bad.yaml", Path: "/config/bad.yaml"}

	_, err := r.Spawn(context.Background(), d)

	var constructionErr *supervisor.WorkerConstructionError
	require.ErrorAs(t, err, &constructionErr)
	assert.Equal(t, d, constructionErr.Descriptor)
	assert.ErrorIs(t, err, errBadConfig)
}

func TestRegistry_Spawn_RejectsDuplicates(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	d := supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"}

	_, err := r.Spawn(context.Background(), d)
	require.NoError(t, err)

	_, err = r.Spawn(context.Background(), d)
	assert.ErrorIs(t, err, supervisor.ErrDuplicateWorker)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Spawn_FailsWhenSealed(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	r.Seal()

	_, err := r.Spawn(context.Background(), supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"})
	assert.ErrorIs(t, err, supervisor.ErrRegistrySealed)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SpawnAll_WaitsBetweenSpawns(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	start := time.Now()
	n := r.SpawnAll(context.Background(), descriptors("/config", "a.yaml", "b.yaml", "c.yaml"), 50*time.Millisecond)

	assert.Equal(t, 3, n)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRegistry_SpawnAll_StopsWhenContextCancelled(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int)
	go func() {
		done <- r.SpawnAll(ctx, descriptors("/config", "a.yaml", "b.yaml"), time.Hour)
	}()

	require.Eventually(t, func() bool { return r.Len() == 1 }, time.Second, time.Millisecond)

	cancel()

	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("spawn did not return after cancel")
	}
}

func TestHandle_RequestStop_IsIdempotent(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	h, err := r.Spawn(context.Background(), supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"})
	require.NoError(t, err)

	w := f.Worker("a.yaml")
	<-w.started

	h.RequestStop()
	<-h.Done()

	// stopping an already stopped worker must not fault
	assert.NotPanics(t, h.RequestStop)

	assert.Equal(t, int32(1), w.stops.Load())
	assert.True(t, h.StopRequested())
	assert.False(t, h.Running())
	assert.NoError(t, h.Err())
}

func TestHandle_WorkerIsDetachedFromSpawnContext(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	h, err := r.Spawn(ctx, supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"})
	require.NoError(t, err)

	<-f.Worker("a.yaml").started

	cancel()

	assert.Never(t, func() bool { return !h.Running() }, 50*time.Millisecond, 5*time.Millisecond)

	h.RequestStop()
	<-h.Done()
}

func TestHandle_Start_FailsIfStarted(t *testing.T) {
	f := newFakeFactory()
	r := supervisor.NewRegistry(f.New, zap.NewNop())

	h, err := r.Spawn(context.Background(), supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"})
	require.NoError(t, err)

	assert.ErrorIs(t, h.Start(context.Background()), supervisor.ErrWorkerAlreadyStarted)

	h.RequestStop()
}

func TestHandle_RecoversWorkerPanic(t *testing.T) {
	w := &mockWorker{}
	w.On("Run", mock.Anything).Panic("boom")

	r := supervisor.NewRegistry(factoryFor(w), zap.NewNop())

	h, err := r.Spawn(context.Background(), supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"})
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit")
	}

	assert.False(t, h.Running())
	assert.ErrorContains(t, h.Err(), "boom")
	w.AssertCalled(t, "Run", mock.Anything)
}

func TestHandle_KeepsWorkerError(t *testing.T) {
	w := &mockWorker{}
	w.On("Run", mock.Anything).Return(assert.AnError)

	r := supervisor.NewRegistry(factoryFor(w), zap.NewNop())

	h, err := r.Spawn(context.Background(), supervisor.Descriptor{ID: "a.yaml", Path: "/config/a.yaml"})
	require.NoError(t, err)

	<-h.Done()

	assert.ErrorIs(t, h.Err(), assert.AnError)
	assert.False(t, h.StopRequested())
}
