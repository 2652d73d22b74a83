package video

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type audioParams struct {
	SampleRate int `json:"sample_rate"`
}

// Audio implements Video::Audio: demux the audio track resampled to 16kHz
// mono, File "audio.wav". Only runs if the asset's metadata declares
// has_audio.
type Audio struct{}

func (Audio) Type() asset.TaskType           { return asset.VideoAudio }
func (Audio) Dependencies() []asset.TaskType { return nil }

func (Audio) Parameters(_ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(audioParams{SampleRate: 16000})
}

func (Audio) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("audio.wav")
}

func (Audio) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	if rec.Metadata.Kind != asset.KindVideo || rec.Metadata.Video == nil || !rec.Metadata.Video.HasAudio {
		return fmt.Errorf("video.audio: asset has no audio track")
	}
	if ctx.Codecs.Video == nil {
		return tasks.ErrCodecUnavailable
	}
	wav, err := ctx.Codecs.Video.DemuxAudio(goCtx, fi.FilePath)
	if err != nil {
		return fmt.Errorf("video.audio: %w", err)
	}
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), wav)
}

var _ tasks.Task = Audio{}
