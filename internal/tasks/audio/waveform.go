// Package audio implements the Audio media kind's task catalogue: resample
// to 16kHz mono, then the same transcribe → chunk → summarise → embed
// pipeline the video package runs over its demuxed audio track.
package audio

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/tasks"
)

type waveformParams struct {
	SampleRate int `json:"sample_rate"`
}

// Waveform implements Audio::Waveform: resample the source audio file to
// 16kHz mono, File "waveform.wav".
type Waveform struct{}

func (Waveform) Type() asset.TaskType           { return asset.AudioWaveform }
func (Waveform) Dependencies() []asset.TaskType { return nil }

func (Waveform) Parameters(_ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(waveformParams{SampleRate: 16000})
}

func (Waveform) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("waveform.wav")
}

func (Waveform) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	if ctx.Codecs.Audio == nil {
		return tasks.ErrCodecUnavailable
	}
	wav, err := ctx.Codecs.Audio.ResampleMono16k(goCtx, fi.FilePath)
	if err != nil {
		return fmt.Errorf("audio.waveform: %w", err)
	}
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), wav)
}

func goCtxDone(goCtx context.Context) error {
	select {
	case <-goCtx.Done():
		return goCtx.Err()
	default:
		return nil
	}
}

var _ tasks.Task = Waveform{}
