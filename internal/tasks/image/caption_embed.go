package image

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type captionEmbedParams struct {
	Model string `json:"model"`
}

// CaptionEmbed implements Image::CaptionEmbed: a text embedding of the
// Caption task's output, File "caption.embedding".
type CaptionEmbed struct{}

func (CaptionEmbed) Type() asset.TaskType           { return asset.ImageCaptionEmbed }
func (CaptionEmbed) Dependencies() []asset.TaskType { return []asset.TaskType{asset.ImageCaption} }

func (CaptionEmbed) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(captionEmbedParams{Model: ctx.ModelIDs.TextEmbedding})
}

func (CaptionEmbed) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("caption.embedding")
}

func (CaptionEmbed) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	captionRun, ok := deps[asset.ImageCaption]
	if !ok {
		return tasks.ErrMissingDependency
	}

	data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, captionRun.Output.Path))
	if err != nil {
		return fmt.Errorf("image.caption_embed: read caption: %w", err)
	}
	var cf captionFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("image.caption_embed: parse caption: %w", err)
	}

	handler, err := ctx.Models.RequireTextEmbedding()
	if err != nil {
		return err
	}
	vectors, errs := handler.Process(goCtx, []string{cf.Caption})
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	if errs[0] != nil {
		return fmt.Errorf("image.caption_embed: embed: %w", errs[0])
	}

	payload, err := tasks.EncodeEmbedding(vectors[0])
	if err != nil {
		return err
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

var _ tasks.Task = CaptionEmbed{}
