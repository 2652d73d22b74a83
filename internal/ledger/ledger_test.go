package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/storage"
)

func newTestLedger() *Ledger {
	return New(storage.NewMemory(), zerolog.Nop())
}

// failingStorage wraps a Storage and makes Read fail with an arbitrary,
// non-ErrNotFound error, simulating a transient backend failure (e.g. a
// degraded S3 endpoint) rather than "no record yet".
type failingStorage struct {
	storage.Storage
	readErr error
}

func (f *failingStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return nil, f.readErr
}

func TestLoad_FreshRecordWhenMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger()

	rec, err := l.Load(ctx, "fid-1")
	require.NoError(t, err)
	assert.Equal(t, "fid-1", rec.FileIdentifier)
	assert.Equal(t, asset.KindUnknown, rec.Metadata.Kind)
	assert.Empty(t, rec.Tasks)
}

func TestLoad_FreshRecordWhenCorrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Write(ctx, "artifacts/fid/fid-2/artifacts.json", []byte("{not json")))
	l := New(store, zerolog.Nop())

	rec, err := l.Load(ctx, "fid-2")
	require.NoError(t, err)
	assert.Equal(t, asset.KindUnknown, rec.Metadata.Kind)
}

func TestLoad_PropagatesStorageIOErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backendErr := errors.New("dial s3: connection reset")
	l := New(&failingStorage{Storage: storage.NewMemory(), readErr: backendErr}, zerolog.Nop())

	rec, err := l.Load(ctx, "fid-3")
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.ErrorIs(t, err, backendErr)
}

func TestSetMetadata_Persists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger()

	rec, err := l.Load(ctx, "fid-3")
	require.NoError(t, err)
	meta := asset.ImageContent(asset.ImageMetadata{Width: 100, Height: 50, Format: "png"})
	require.NoError(t, l.SetMetadata(ctx, rec, meta))

	reloaded, err := l.Load(ctx, "fid-3")
	require.NoError(t, err)
	assert.Equal(t, asset.KindImage, reloaded.Metadata.Kind)
	assert.Equal(t, 100, reloaded.Metadata.Image.Width)
}

func TestCreateRun_NoDependencies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger()
	rec, err := l.Load(ctx, "fid-4")
	require.NoError(t, err)

	params, _ := json.Marshal(map[string]string{"model": "stella-A"})
	run, err := l.CreateRun(ctx, rec, asset.ImageEmbed, params, nil,
		func(asset.TaskType) (string, bool) { return "", false },
		func(runID string) asset.Output { return asset.FileOutput("embed-" + runID + ".bin") })
	require.NoError(t, err)
	assert.False(t, run.Completed)
	assert.Len(t, rec.Tasks[asset.ImageEmbed], 1)

	require.NoError(t, l.CompleteRun(ctx, rec, run))
	assert.True(t, run.Completed)
}

func TestCreateRun_MissingDependencyErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger()
	rec, err := l.Load(ctx, "fid-5")
	require.NoError(t, err)

	_, err = l.CreateRun(ctx, rec, asset.RawTextChunkEmbed, json.RawMessage(`{}`), []asset.TaskType{asset.RawTextChunk},
		func(asset.TaskType) (string, bool) { return "", false },
		func(runID string) asset.Output { return asset.DataOutput(nil) })
	assert.Error(t, err)
}

// TestMemoisation exercises the invariant that a re-execution of a task is
// skipped iff TargetRun finds a completed run with matching parameters and
// dependency run-ids, and that a parameter change forces a new run.
func TestMemoisation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger()
	rec, err := l.Load(ctx, "fid-6")
	require.NoError(t, err)

	paramsA, _ := json.Marshal(map[string]string{"model": "stella-A"})
	runA, err := l.CreateRun(ctx, rec, asset.RawTextChunkEmbed, paramsA, nil,
		func(asset.TaskType) (string, bool) { return "", false },
		func(runID string) asset.Output { return asset.DataOutput(nil) })
	require.NoError(t, err)
	require.NoError(t, l.CompleteRun(ctx, rec, runA))

	target := l.TargetRun(rec, asset.RawTextChunkEmbed, paramsA, nil)
	require.NotNil(t, target)
	assert.Equal(t, runA.ID, target.ID)

	paramsB, _ := json.Marshal(map[string]string{"model": "stella-B"})
	target = l.TargetRun(rec, asset.RawTextChunkEmbed, paramsB, nil)
	assert.Nil(t, target)

	runB, err := l.CreateRun(ctx, rec, asset.RawTextChunkEmbed, paramsB, nil,
		func(asset.TaskType) (string, bool) { return "", false },
		func(runID string) asset.Output { return asset.DataOutput(nil) })
	require.NoError(t, err)
	require.NoError(t, l.CompleteRun(ctx, rec, runB))

	assert.NotEqual(t, runA.ID, runB.ID)
	assert.Len(t, rec.Tasks[asset.RawTextChunkEmbed], 2)

	target = l.TargetRun(rec, asset.RawTextChunkEmbed, paramsB, nil)
	require.NotNil(t, target)
	assert.Equal(t, runB.ID, target.ID)
}

func TestDelete_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger()
	rec, err := l.Load(ctx, "fid-7")
	require.NoError(t, err)
	require.NoError(t, l.SetMetadata(ctx, rec, asset.Unknown()))

	require.NoError(t, l.Delete(ctx, "fid-7"))
	require.NoError(t, l.Delete(ctx, "fid-7"))

	reloaded, err := l.Load(ctx, "fid-7")
	require.NoError(t, err)
	assert.Empty(t, reloaded.Tasks)
}
