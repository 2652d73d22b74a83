package video

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type frameDescriptionParams struct {
	Model string `json:"model"`
}

// frameCaption is the Data shape each "<ms>.json" output file holds.
type frameCaption struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Caption     string `json:"caption"`
}

// FrameDescription implements Video::FrameDescription: captions each frame
// from the Frame task's output via the image-caption handler, Folder of
// "<ms>.json".
type FrameDescription struct{}

func (FrameDescription) Type() asset.TaskType           { return asset.VideoFrameDescription }
func (FrameDescription) Dependencies() []asset.TaskType { return []asset.TaskType{asset.VideoFrame} }

func (FrameDescription) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(frameDescriptionParams{Model: ctx.ModelIDs.ImageCaption})
}

func (FrameDescription) OutputTemplate(_ string) asset.Output {
	return asset.FolderOutput("frame_descriptions")
}

func (FrameDescription) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	frameRun, ok := deps[asset.VideoFrame]
	if !ok {
		return tasks.ErrMissingDependency
	}

	entries, err := ctx.Storage.ListDir(goCtx, tasks.AssetPath(fi.FileIdentifier, frameRun.Output.Path))
	if err != nil {
		return fmt.Errorf("video.frame_description: list frames: %w", err)
	}

	handler, err := ctx.Models.RequireImageCaption()
	if err != nil {
		return err
	}

	type frameFile struct {
		timestampMs int64
		data        []byte
	}
	frames := make([]frameFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(e.Name, ".jpg"), 10, 64)
		if err != nil {
			continue
		}
		data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, frameRun.Output.Path+"/"+e.Name))
		if err != nil {
			return fmt.Errorf("video.frame_description: read frame %s: %w", e.Name, err)
		}
		frames = append(frames, frameFile{timestampMs: ms, data: data})
	}

	inputs := make([]modelhandler.CaptionInput, len(frames))
	for i, f := range frames {
		inputs[i] = modelhandler.CaptionInput{Data: f.data}
	}

	captions, errs := handler.Process(goCtx, inputs)
	for i, f := range frames {
		if err := goCtxDone(goCtx); err != nil {
			return err
		}
		if errs[i] != nil {
			return fmt.Errorf("video.frame_description: caption frame %d: %w", f.timestampMs, errs[i])
		}
		payload, err := json.Marshal(frameCaption{TimestampMs: f.timestampMs, Caption: captions[i]})
		if err != nil {
			return fmt.Errorf("video.frame_description: marshal caption: %w", err)
		}
		path := tasks.AssetPath(fi.FileIdentifier, fmt.Sprintf("%s/%d.json", run.Output.Path, f.timestampMs))
		if err := ctx.Storage.Write(goCtx, path, payload); err != nil {
			return fmt.Errorf("video.frame_description: write caption %d: %w", f.timestampMs, err)
		}
	}
	return nil
}

var _ tasks.Task = FrameDescription{}
