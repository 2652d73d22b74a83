package video

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type frameDescEmbedParams struct {
	Model string `json:"model"`
}

// FrameDescEmbed implements Video::FrameDescEmbed: text embedding of each
// frame caption, Folder of "<ms>.embedding".
type FrameDescEmbed struct{}

func (FrameDescEmbed) Type() asset.TaskType { return asset.VideoFrameDescEmbed }
func (FrameDescEmbed) Dependencies() []asset.TaskType {
	return []asset.TaskType{asset.VideoFrameDescription}
}

func (FrameDescEmbed) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(frameDescEmbedParams{Model: ctx.ModelIDs.TextEmbedding})
}

func (FrameDescEmbed) OutputTemplate(_ string) asset.Output {
	return asset.FolderOutput("frame_desc_embeddings")
}

func (FrameDescEmbed) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	descRun, ok := deps[asset.VideoFrameDescription]
	if !ok {
		return tasks.ErrMissingDependency
	}

	entries, err := ctx.Storage.ListDir(goCtx, tasks.AssetPath(fi.FileIdentifier, descRun.Output.Path))
	if err != nil {
		return fmt.Errorf("video.frame_desc_embed: list captions: %w", err)
	}

	handler, err := ctx.Models.RequireTextEmbedding()
	if err != nil {
		return err
	}

	type captionFile struct {
		timestampMs int64
		caption     string
	}
	var captions []captionFile
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(e.Name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		data, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, descRun.Output.Path+"/"+e.Name))
		if err != nil {
			return fmt.Errorf("video.frame_desc_embed: read caption %s: %w", e.Name, err)
		}
		var fc frameCaption
		if err := json.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("video.frame_desc_embed: parse caption %s: %w", e.Name, err)
		}
		captions = append(captions, captionFile{timestampMs: ms, caption: fc.Caption})
	}

	texts := make([]string, len(captions))
	for i, c := range captions {
		texts[i] = c.caption
	}
	vectors, errs := handler.Process(goCtx, texts)
	for i, c := range captions {
		if err := goCtxDone(goCtx); err != nil {
			return err
		}
		if errs[i] != nil {
			return fmt.Errorf("video.frame_desc_embed: embed caption %d: %w", c.timestampMs, errs[i])
		}
		payload, err := tasks.EncodeEmbedding(vectors[i])
		if err != nil {
			return err
		}
		path := tasks.AssetPath(fi.FileIdentifier, fmt.Sprintf("%s/%d.embedding", run.Output.Path, c.timestampMs))
		if err := ctx.Storage.Write(goCtx, path, payload); err != nil {
			return fmt.Errorf("video.frame_desc_embed: write embedding %d: %w", c.timestampMs, err)
		}
	}
	return nil
}

var _ tasks.Task = FrameDescEmbed{}
