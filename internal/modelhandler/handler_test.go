package modelhandler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	loads     atomic.Int32
	unloads   atomic.Int32
	failLoad  bool
	batchSize int
	failIndex int // -1 disables
}

func (f *fakeBackend) Load(ctx context.Context) error {
	if f.failLoad {
		return errors.New("boom")
	}
	f.loads.Add(1)
	return nil
}

func (f *fakeBackend) Unload(ctx context.Context) { f.unloads.Add(1) }

func (f *fakeBackend) Infer(ctx context.Context, items []string) ([]string, []error) {
	out := make([]string, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		if f.failIndex >= 0 && i == f.failIndex {
			errs[i] = errors.New("item boom")
			continue
		}
		out[i] = item + "-processed"
	}
	return out, errs
}

func (f *fakeBackend) BatchSize() int {
	if f.batchSize == 0 {
		return 32
	}
	return f.batchSize
}

func TestProcess_LazyLoadsOnFirstUse(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{failIndex: -1}
	h := New[string, string](backend, time.Minute)
	defer h.Shutdown(context.Background())

	assert.Equal(t, int32(0), backend.loads.Load())
	outputs, errs := h.Process(context.Background(), []string{"a", "b"})
	require.Equal(t, []error{nil, nil}, errs)
	assert.Equal(t, []string{"a-processed", "b-processed"}, outputs)
	assert.Equal(t, int32(1), backend.loads.Load())
}

func TestProcess_BatchesBySize(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{batchSize: 2, failIndex: -1}
	h := New[string, string](backend, time.Minute)
	defer h.Shutdown(context.Background())

	outputs, errs := h.Process(context.Background(), []string{"a", "b", "c", "d", "e"})
	for _, e := range errs {
		assert.NoError(t, e)
	}
	assert.Equal(t, []string{"a-processed", "b-processed", "c-processed", "d-processed", "e-processed"}, outputs)
}

func TestProcess_ItemFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{failIndex: 1}
	h := New[string, string](backend, time.Minute)
	defer h.Shutdown(context.Background())

	outputs, errs := h.Process(context.Background(), []string{"a", "b", "c"})
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
	assert.Equal(t, "a-processed", outputs[0])
	assert.Equal(t, "c-processed", outputs[2])
}

func TestProcess_LoadFailureIsFatalForBatch(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{failLoad: true, failIndex: -1}
	h := New[string, string](backend, time.Minute)
	defer h.Shutdown(context.Background())

	_, errs := h.Process(context.Background(), []string{"a"})
	require.Error(t, errs[0])
	assert.ErrorIs(t, errs[0], ErrLoadFailed)
}

func TestIdleOffload_ReloadsAfterTimeout(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{failIndex: -1}
	h := New[string, string](backend, 20*time.Millisecond)
	defer h.Shutdown(context.Background())

	_, errs := h.Process(context.Background(), []string{"a"})
	require.NoError(t, errs[0])
	assert.Equal(t, int32(1), backend.loads.Load())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), backend.unloads.Load())

	_, errs = h.Process(context.Background(), []string{"b"})
	require.NoError(t, errs[0])
	assert.Equal(t, int32(2), backend.loads.Load())
}

func TestShutdown_ReleasesImmediately(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{failIndex: -1}
	h := New[string, string](backend, time.Hour)

	_, errs := h.Process(context.Background(), []string{"a"})
	require.NoError(t, errs[0])

	h.Shutdown(context.Background())
	assert.Equal(t, int32(1), backend.unloads.Load())
}
