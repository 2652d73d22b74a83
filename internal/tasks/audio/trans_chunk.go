package audio

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

type chunkFile struct {
	Start int64  `json:"start_timestamp_ms"`
	End   int64  `json:"end_timestamp_ms"`
	Text  string `json:"text"`
}

// TransChunk implements Audio::TransChunk: token-budgeted sliding-overlap
// chunking of the transcript, File "chunks.json".
type TransChunk struct{}

func (TransChunk) Type() asset.TaskType           { return asset.AudioTransChunk }
func (TransChunk) Dependencies() []asset.TaskType { return []asset.TaskType{asset.AudioTranscript} }

func (TransChunk) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(transChunkParams{ChunkSize: ctx.ChunkSize})
}

func (TransChunk) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("chunks.json")
}

func (TransChunk) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	transcriptRun, ok := deps[asset.AudioTranscript]
	if !ok {
		return tasks.ErrMissingDependency
	}

	data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, transcriptRun.Output.Path))
	if err != nil {
		return fmt.Errorf("audio.trans_chunk: read transcript: %w", err)
	}
	var tf transcriptFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("audio.trans_chunk: parse transcript: %w", err)
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
		return fmt.Errorf("audio.trans_chunk: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

var _ tasks.Task = TransChunk{}
