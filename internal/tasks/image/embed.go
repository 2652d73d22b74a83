package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type embedParams struct {
	Model string `json:"model"`
}

// Embed implements Image::Embed: a direct multi-modal embedding of the
// image itself (independent of any caption), File "image.embedding". This
// is the vector the vision collection indexes alongside CaptionEmbed's
// text-space vector, giving an image asset two independent retrieval
// routes into the same content.
type Embed struct{}

func (Embed) Type() asset.TaskType           { return asset.ImageEmbed }
func (Embed) Dependencies() []asset.TaskType { return nil }

func (Embed) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(embedParams{Model: ctx.ModelIDs.MultiModalEmbedding})
}

func (Embed) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("image.embedding")
}

func (Embed) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	data, err := os.ReadFile(fi.FilePath)
	if err != nil {
		return fmt.Errorf("image.embed: read source: %w", err)
	}

	handler, err := ctx.Models.RequireMultiModalEmbedding()
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	vectors, errs := handler.Process(goCtx, []string{encoded})
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	if errs[0] != nil {
		return fmt.Errorf("image.embed: embed: %w", errs[0])
	}

	payload, err := tasks.EncodeEmbedding(vectors[0])
	if err != nil {
		return err
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

var _ tasks.Task = Embed{}
