package video

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type transChunkParams struct {
	ChunkSize int `json:"chunk_size"`
}

// chunkFile is the §6 on-disk chunks.json shape: one entry per packed
// window with its millisecond span.
type chunkFile struct {
	Start int64  `json:"start_timestamp_ms"`
	End   int64  `json:"end_timestamp_ms"`
	Text  string `json:"text"`
}

// TransChunk implements Video::TransChunk: token-budgeted sliding-overlap
// chunking of the transcript, File "chunks.json".
type TransChunk struct{}

func (TransChunk) Type() asset.TaskType           { return asset.VideoTransChunk }
func (TransChunk) Dependencies() []asset.TaskType { return []asset.TaskType{asset.VideoTranscript} }

func (TransChunk) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(transChunkParams{ChunkSize: ctx.ChunkSize})
}

func (TransChunk) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("chunks.json")
}

func (TransChunk) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	transcriptRun, ok := deps[asset.VideoTranscript]
	if !ok {
		return tasks.ErrMissingDependency
	}

	data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, transcriptRun.Output.Path))
	if err != nil {
		return fmt.Errorf("video.trans_chunk: read transcript: %w", err)
	}
	var tf transcriptFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("video.trans_chunk: parse transcript: %w", err)
	}

	items := make([]tasks.ChunkItem, len(tf.Transcriptions))
	for i, seg := range tf.Transcriptions {
		items[i] = tasks.ChunkItem{
			Start:  seg.StartMs,
			End:    seg.EndMs,
			Text:   seg.Text,
			Tokens: modelhandler.EstimateTokens(seg.Text),
		}
	}
	if err := goCtxDone(goCtx); err != nil {
		return err
	}

	packed := tasks.PackChunks(items, ctx.ChunkSize)
	out := make([]chunkFile, len(packed))
	for i, c := range packed {
		out[i] = chunkFile{Start: c.Start, End: c.End, Text: c.Text}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("video.trans_chunk: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

var _ tasks.Task = TransChunk{}
