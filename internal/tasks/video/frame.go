package video

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

const frameFPS = 1.0

type frameParams struct {
	FPS float64 `json:"fps"`
}

// Frame implements Video::Frame: key frames at 1fps, Folder "frames/" with
// "<ms>.jpg" per extracted frame.
type Frame struct{}

func (Frame) Type() asset.TaskType           { return asset.VideoFrame }
func (Frame) Dependencies() []asset.TaskType { return nil }

func (Frame) Parameters(_ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(frameParams{FPS: frameFPS})
}

func (Frame) OutputTemplate(_ string) asset.Output {
	return asset.FolderOutput("frames")
}

func (Frame) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	if ctx.Codecs.Video == nil {
		return tasks.ErrCodecUnavailable
	}
	frames, err := ctx.Codecs.Video.Frames(goCtx, fi.FilePath, frameFPS)
	if err != nil {
		return fmt.Errorf("video.frame: %w", err)
	}
	for _, f := range frames {
		if err := goCtxDone(goCtx); err != nil {
			return err
		}
		path := tasks.AssetPath(fi.FileIdentifier, fmt.Sprintf("%s/%d.jpg", run.Output.Path, f.TimestampMs))
		if err := ctx.Storage.Write(goCtx, path, f.JPEG); err != nil {
			return fmt.Errorf("video.frame: write frame %d: %w", f.TimestampMs, err)
		}
	}
	return nil
}

var _ tasks.Task = Frame{}
