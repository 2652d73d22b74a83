package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type transChunkSumEmbedParams struct {
	Model string `json:"model"`
}

// TransChunkSumEmbed implements Audio::TransChunkSumEmbed: text embedding
// of each chunk summary, Folder of "<start>-<end>.embedding".
type TransChunkSumEmbed struct{}

func (TransChunkSumEmbed) Type() asset.TaskType { return asset.AudioTransChunkSumEmbed }
func (TransChunkSumEmbed) Dependencies() []asset.TaskType {
	return []asset.TaskType{asset.AudioTransChunkSum}
}

func (TransChunkSumEmbed) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(transChunkSumEmbedParams{Model: ctx.ModelIDs.TextEmbedding})
}

func (TransChunkSumEmbed) OutputTemplate(_ string) asset.Output {
	return asset.FolderOutput("trans_chunk_sum_embeddings")
}

func (TransChunkSumEmbed) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	sumRun, ok := deps[asset.AudioTransChunkSum]
	if !ok {
		return tasks.ErrMissingDependency
	}

	entries, err := ctx.Storage.ListDir(goCtx, tasks.AssetPath(fi.FileIdentifier, sumRun.Output.Path))
	if err != nil {
		return fmt.Errorf("audio.trans_chunk_sum_embed: list summaries: %w", err)
	}

	handler, err := ctx.Models.RequireTextEmbedding()
	if err != nil {
		return err
	}

	var summaries []chunkSummary
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		name := strings.TrimSuffix(e.Name, ".json")
		if _, _, ok := splitSpan(name); !ok {
			continue
		}
		data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, sumRun.Output.Path+"/"+e.Name))
		if err != nil {
			return fmt.Errorf("audio.trans_chunk_sum_embed: read summary %s: %w", e.Name, err)
		}
		var cs chunkSummary
		if err := json.Unmarshal(data, &cs); err != nil {
			return fmt.Errorf("audio.trans_chunk_sum_embed: parse summary %s: %w", e.Name, err)
		}
		summaries = append(summaries, cs)
	}

	texts := make([]string, len(summaries))
	for i, s := range summaries {
		texts[i] = s.Summary
	}
	vectors, errs := handler.Process(goCtx, texts)
	for i, s := range summaries {
		if err := goCtxDone(goCtx); err != nil {
			return err
		}
		if errs[i] != nil {
			return fmt.Errorf("audio.trans_chunk_sum_embed: embed %d-%d: %w", s.Start, s.End, errs[i])
		}
		payload, err := tasks.EncodeEmbedding(vectors[i])
		if err != nil {
			return err
		}
		path := tasks.AssetPath(fi.FileIdentifier, fmt.Sprintf("%s/%d-%d.embedding", run.Output.Path, s.Start, s.End))
		if err := ctx.Storage.Write(goCtx, path, payload); err != nil {
			return fmt.Errorf("audio.trans_chunk_sum_embed: write embedding %d-%d: %w", s.Start, s.End, err)
		}
	}
	return nil
}

func splitSpan(name string) (start, end int64, ok bool) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return s, e, true
}

var _ tasks.Task = TransChunkSumEmbed{}
