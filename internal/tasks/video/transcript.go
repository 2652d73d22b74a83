package video

import (
	"context"
	"encoding/json"
	"fmt"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/modelhandler"
	"lumenarchive/internal/tasks"
)

type transcriptParams struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

// transcriptFile is the §6 on-disk transcript.json shape.
type transcriptFile struct {
	Transcriptions []modelhandler.TranscriptSegment `json:"transcriptions"`
	Language       string                            `json:"language"`
}

// Transcript implements Video::Transcript: ASR over the Audio task's
// output, File "transcript.json".
type Transcript struct{}

func (Transcript) Type() asset.TaskType           { return asset.VideoTranscript }
func (Transcript) Dependencies() []asset.TaskType { return []asset.TaskType{asset.VideoAudio} }

func (Transcript) Parameters(ctx *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return tasks.MarshalParameters(transcriptParams{Model: ctx.ModelIDs.AudioTranscript, Language: ctx.Language})
}

func (Transcript) OutputTemplate(_ string) asset.Output {
	return asset.FileOutput("transcript.json")
}

func (Transcript) Run(goCtx context.Context, ctx *tasks.Context, fi tasks.FileInfo, rec *asset.TaskRecord, run *asset.TaskRunRecord) error {
	deps := tasks.DependencyOutputs(rec, run)
	audioRun, ok := deps[asset.VideoAudio]
	if !ok {
		return tasks.ErrMissingDependency
	}

	wav, err := ctx.Storage.Read(goCtx, tasks.AssetPath(fi.FileIdentifier, audioRun.Output.Path))
	if err != nil {
		return fmt.Errorf("video.transcript: read audio: %w", err)
	}
	samples, err := modelhandler.DecodeWAV16Mono(wav)
	if err != nil {
		return fmt.Errorf("video.transcript: decode wav: %w", err)
	}

	handler, err := ctx.Models.RequireAudioTranscript()
	if err != nil {
		return err
	}
	results, errs := handler.Process(goCtx, [][]float32{samples})
	if err := goCtxDone(goCtx); err != nil {
		return err
	}
	if errs[0] != nil {
		return fmt.Errorf("video.transcript: transcribe: %w", errs[0])
	}

	language := ctx.Language
	if language == "" {
		language = "und"
	}
	payload, err := json.Marshal(transcriptFile{Transcriptions: results[0], Language: language})
	if err != nil {
		return fmt.Errorf("video.transcript: marshal: %w", err)
	}
	return ctx.Storage.Write(goCtx, tasks.AssetPath(fi.FileIdentifier, run.Output.Path), payload)
}

var _ tasks.Task = Transcript{}
