package audio

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type transChunkSumParams struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type chunkSummary struct {
	Start   int64  `json:"start_timestamp_ms"`
	End     int64  `json:"end_timestamp_ms"`
	Summary string `json:"summary"`
}

// TransChunkSum implements Audio::TransChunkSum: per-chunk LLM summaries,
// each carrying the previous chunk's text as context, Folder of
// "<start>-<end>.json".
type TransChunkSum struct{}

func (TransChunkSum) Type() asset.TaskType           { return asset.AudioTransChunkSum }
func (TransChunkSum) Dependencies() []asset.TaskType { return []asset.TaskType{asset.AudioTransChunk} }

func (TransChunkSum) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(transChunkSumParams{Model: ctx.ModelIDs.LLM, Language: ctx.Language})
}

func (TransChunkSum) OutputTemplate(_ string) asset.Output {
	return asset.FolderOutput("trans_chunk_summaries")
}

func (TransChunkSum) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	chunkRun, ok := deps[asset.AudioTransChunk]
	if !ok {
		return tasks.ErrMissingDependency
	}

	data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, chunkRun.Output.Path))
	if err != nil {
		return fmt.Errorf("audio.trans_chunk_sum: read chunks: %w", err)
	}
	var chunks []chunkFile
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("audio.trans_chunk_sum: parse chunks: %w", err)
	}

	handler, err := ctx.Models.RequireLLM()
	if err != nil {
		return err
	}

	prevText := ""
	for _, c := range chunks {
		if err := goCtxDone(goCtx); err != nil {
			return err
		}
		prompt := tasks.SummaryPrompt(ctx.Language, prevText, c.Text)
		results, errs := handler.Process(goCtx, []modelhandler.LLMPrompt{prompt})
		if errs[0] != nil {
			return fmt.Errorf("audio.trans_chunk_sum: summarise %d-%d: %w", c.Start, c.End, errs[0])
		}
		prevText = c.Text

		payload, err := json.Marshal(chunkSummary{Start: c.Start, End: c.End, Summary: results[0]})
		if err != nil {
			return fmt.Errorf("audio.trans_chunk_sum: marshal: %w", err)
		}
		path := tasks.AssetPath(fi.FileIdentifier, fmt.Sprintf("%s/%d-%d.json", run.Output.Path, c.Start, c.End))
		if err := ctx.Storage.Write(goCtx, path, payload); err != nil {
			return fmt.Errorf("audio.trans_chunk_sum: write summary %d-%d: %w", c.Start, c.End, err)
		}
	}
	return nil
}

var _ tasks.Task = TransChunkSum{}
