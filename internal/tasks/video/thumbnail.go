// Package video implements the Video::* task catalogue entries (§4.4's
// task table): thumbnail and key-frame extraction, frame captioning and
// embedding, audio demux, transcription, transcript chunking,
// summarisation, and summary embedding.
package video

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

// thumbnailParams is empty: the thumbnail task has no configuration that
// affects its output beyond the source file itself, so its Parameters JSON
// is a constant `{}` and it only ever re-runs when its dependencies (none)
// change, i.e. never, unless the asset is deleted and re-ingested.
type thumbnailParams struct{}

// Thumbnail implements Video::Thumbnail: one frame at t=0, File
// "thumbnail.jpg".
type Thumbnail struct{}

func (Thumbnail) Type() asset.TaskType           { return asset.VideoThumbnail }
func (Thumbnail) Dependencies() []asset.TaskType { return nil }

func (Thumbnail) Parameters(_ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(thumbnailParams{})
}

func (Thumbnail) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("thumbnail.jpg")
}

func (Thumbnail) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	if ctx.Codecs.Video == nil {
		return tasks.ErrCodecUnavailable
	}
	jpg, err := ctx.Codecs.Video.Thumbnail(goCtx, fi.FilePath)
	if err != nil {
		return fmt.Errorf("video.thumbnail: %w", err)
	}
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), jpg)
}

// goCtxDone returns goCtx.Err() if it has already been cancelled, the
// cancellation-observance check every task body performs immediately
// before committing an artifact (§4.4: "on cancellation no artifact is
// committed").
func goCtxDone(goCtx context.Context) error {
	select {
	case <-goCtx.Done():
		return goCtx.Err()
	default:
		return nil
	}
}

var _ tasks.Task = Thumbnail{}
