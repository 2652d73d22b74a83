package rawtext

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type chunkEmbedParams struct {
	Model string `json:"model"`
}

// ChunkEmbed implements RawText::ChunkEmbed: a text embedding of each
// packed chunk, Folder of "<start>-<end>.embedding".
type ChunkEmbed struct{}

func (ChunkEmbed) Type() asset.TaskType           { return asset.RawTextChunkEmbed }
func (ChunkEmbed) Dependencies() []asset.TaskType { return []asset.TaskType{asset.RawTextChunk} }

func (ChunkEmbed) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(chunkEmbedParams{Model: ctx.ModelIDs.TextEmbedding})
}

func (ChunkEmbed) OutputTemplate(_ string) asset.Output {
	return asset.FolderOutput("chunk_embeddings")
}

func (ChunkEmbed) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	chunkRun, ok := deps[asset.RawTextChunk]
	if !ok {
		return tasks.ErrMissingDependency
	}

	data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, chunkRun.Output.Path))
	if err != nil {
		return fmt.Errorf("raw_text.chunk_embed: read chunks: %w", err)
	}
	var chunks []chunkFile
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("raw_text.chunk_embed: parse chunks: %w", err)
	}

	handler, err := ctx.Models.RequireTextEmbedding()
	if err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, errs := handler.Process(goCtx, texts)
	for i, c := range chunks {
		if err := goCtxDone(goCtx); err != nil {
			return err
		}
		if errs[i] != nil {
			return fmt.Errorf("raw_text.chunk_embed: embed %d-%d: %w", c.StartIndex, c.EndIndex, errs[i])
		}
		payload, err := tasks.EncodeEmbedding(vectors[i])
		if err != nil {
			return err
		}
		path := tasks.AssetPath(fi.FileIdentifier, fmt.Sprintf("%s/%d-%d.embedding", run.Output.Path, c.StartIndex, c.EndIndex))
		if err := ctx.Storage.Write(goCtx, path, payload); err != nil {
			return fmt.Errorf("raw_text.chunk_embed: write embedding %d-%d: %w", c.StartIndex, c.EndIndex, err)
		}
	}
	return nil
}

var _ tasks.Task = ChunkEmbed{}
