// Package image implements the Image media kind's task catalogue: a
// caption of the whole image, a text embedding of that caption, and a
// direct multi-modal embedding of the image itself.
package image

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type captionParams struct {
	Model string `json:"model"`
}

// captionFile is the Data shape "caption.json" holds.
type captionFile struct {
	Caption string `json:"caption"`
}

// Caption implements Image::Caption: a single caption of the whole image,
// File "caption.json".
type Caption struct{}

func (Caption) Type() asset.TaskType           { return asset.ImageCaption }
func (Caption) Dependencies() []asset.TaskType { return nil }

func (Caption) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(captionParams{Model: ctx.ModelIDs.ImageCaption})
}

func (Caption) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("caption.json")
}

func (Caption) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	data, err := os.ReadFile(fi.FilePath)
	if err != nil {
		return fmt.Errorf("image.caption: read source: %w", err)
	}

	handler, err := ctx.Models.RequireImageCaption()
	if err != nil {
		return err
	}
	captions, errs := handler.Process(goCtx, []modelhandler.CaptionInput{{Data: data}})
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	if errs[0] != nil {
		return fmt.Errorf("image.caption: caption: %w", errs[0])
	}

	payload, err := json.Marshal(captionFile{Caption: captions[0]})
	if err != nil {
		return fmt.Errorf("image.caption: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

func goCtxDone(goCtx context.Context) error {
	select {
	case <-goCtx.Done():
		return goCtx.Err()
	default:
		return nil
	}
}

var _ tasks.Task = Caption{}
