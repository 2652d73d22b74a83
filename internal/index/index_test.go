package index

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/ledger"
	"lumenarchive/internal/searchstore"
	"lumenarchive/internal/storage"
	"lumenarchive/internal/tasks"
)

func noopDeps(asset.TaskType) (string, bool) { return "", false }

// createCompleted allocates and completes one run of taskType with the
// given dependency types (resolved through resolve); the caller writes
// whatever files the run needs first.
func createCompleted(t *testing.T, goCtx context.Context, lg *ledger.Ledger, rec *asset.TaskRecord, taskType asset.TaskType, out asset.Output, depTypes []asset.TaskType, resolve ledger.DependencyResolver) *asset.TaskRunRecord {
	t.Helper()
	run, err := lg.CreateRun(goCtx, rec, taskType, json.RawMessage(`{}`), depTypes, resolve, func(string) asset.Output { return out })
	require.NoError(t, err)
	require.NoError(t, lg.CompleteRun(goCtx, rec, run))
	return run
}

func TestIndexAssetImageEmbedVisionOnly(t *testing.T) {
	goCtx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	lg := ledger.New(store, zerolog.Nop())
	vec, fts := searchstore.NewMemory()
	w := New(store, lg, vec, fts, nil)

	fid := "img-1"
	rec, err := lg.Load(goCtx, fid)
	require.NoError(t, err)

	run := createCompleted(t, goCtx, lg, rec, asset.ImageEmbed, asset.FileOutput("image.embedding"), nil, noopDeps)
	data, err := tasks.EncodeEmbedding([]float32{0.1, 0.2, 0.3})
	require.NoError(t, err)
	require.NoError(t, store.Write(goCtx, tasks.AssetPath(fid, run.Output.Path), data))

	require.NoError(t, w.IndexAsset(goCtx, fid, asset.ImageEmbed))

	hits, err := vec.Search(goCtx, searchstore.CollectionVision, []float32{0.1, 0.2, 0.3}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, fid, hits[0].Payload.FileIdentifier)
}

func TestIndexAssetRawTextChunkEmbedPairsText(t *testing.T) {
	goCtx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	lg := ledger.New(store, zerolog.Nop())
	vec, fts := searchstore.NewMemory()
	w := New(store, lg, vec, fts, nil)

	fid := "text-1"
	rec, err := lg.Load(goCtx, fid)
	require.NoError(t, err)

	chunkRun := createCompleted(t, goCtx, lg, rec, asset.RawTextChunk, asset.FileOutput("chunks.json"), nil, noopDeps)
	chunks := []map[string]any{{"start_index": 0, "end_index": 10, "text": "hello world"}}
	chunkData, err := json.Marshal(chunks)
	require.NoError(t, err)
	require.NoError(t, store.Write(goCtx, tasks.AssetPath(fid, chunkRun.Output.Path), chunkData))

	resolve := func(dt asset.TaskType) (string, bool) {
		if dt == asset.RawTextChunk {
			return chunkRun.ID, true
		}
		return "", false
	}
	embedRun := createCompleted(t, goCtx, lg, rec, asset.RawTextChunkEmbed, asset.FolderOutput("chunk_embeddings"), []asset.TaskType{asset.RawTextChunk}, resolve)
	vecData, err := tasks.EncodeEmbedding([]float32{1, 0})
	require.NoError(t, err)
	require.NoError(t, store.Write(goCtx, tasks.AssetPath(fid, fmt.Sprintf("%s/0-10.embedding", embedRun.Output.Path)), vecData))

	require.NoError(t, w.IndexAsset(goCtx, fid, asset.RawTextChunkEmbed))

	hits, err := vec.Search(goCtx, searchstore.CollectionLanguage, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Payload.Metadata.StartIndex)
	require.Equal(t, int64(0), *hits[0].Payload.Metadata.StartIndex)

	ftsHits, err := fts.Search(goCtx, []string{"hello"}, false, 5)
	require.NoError(t, err)
	require.Len(t, ftsHits, 1)
}
