package modelhandler

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// TranscriptSegment is one recognised span, the output shape the
// Video::Transcript/Audio::Transcript tasks persist as transcript.json.
type TranscriptSegment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// TranscriptBackend wraps a whisper.cpp model. One audio clip is processed
// per call; whisper.cpp's own internal batching handles the rest.
type TranscriptBackend struct {
	modelPath string
	language  string
	model     whisper.Model
}

// NewTranscriptBackend builds an ASR backend around a whisper.cpp ggml
// model file. language, if non-empty, pins recognition to that language;
// empty means auto-detect.
func NewTranscriptBackend(modelPath, language string) *TranscriptBackend {
	return &TranscriptBackend{modelPath: modelPath, language: language}
}

func (t *TranscriptBackend) Load(ctx context.Context) error {
	model, err := whisper.New(t.modelPath)
	if err != nil {
		return fmt.Errorf("load whisper model %s: %w", t.modelPath, err)
	}
	t.model = model
	return nil
}

func (t *TranscriptBackend) Unload(ctx context.Context) {
	if t.model != nil {
		t.model.Close()
		t.model = nil
	}
}

func (t *TranscriptBackend) BatchSize() int { return 1 }

// Infer transcribes each 16kHz mono PCM sample slice in items.
func (t *TranscriptBackend) Infer(ctx context.Context, items [][]float32) ([][]TranscriptSegment, []error) {
	out := make([][]TranscriptSegment, len(items))
	errs := make([]error, len(items))
	for i, samples := range items {
		wctx, err := t.model.NewContext()
		if err != nil {
			errs[i] = fmt.Errorf("transcript: new context: %w", err)
			continue
		}
		if t.language != "" {
			_ = wctx.SetLanguage(t.language)
		}
		if err := wctx.Process(samples, nil, nil, nil); err != nil {
			errs[i] = fmt.Errorf("transcript: process: %w", err)
			continue
		}

		var segments []TranscriptSegment
		for {
			seg, err := wctx.NextSegment()
			if err != nil {
				break
			}
			segments = append(segments, TranscriptSegment{
				StartMs: seg.Start.Milliseconds(),
				EndMs:   seg.End.Milliseconds(),
				Text:    seg.Text,
			})
		}
		out[i] = segments
	}
	return out, errs
}

// wavHeader mirrors the RIFF/WAVE header layout.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// DecodeWAV16Mono parses a 16-bit PCM WAV file already resampled to 16kHz
// mono (the Video::Audio/audio.waveform codec output) into float32 samples
// in [-1, 1] for whisper.cpp.
func DecodeWAV16Mono(data []byte) ([]float32, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("wav: too short")
	}
	var hdr wavHeader
	if err := binary.Read(newByteReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("wav: read header: %w", err)
	}
	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("wav: not a RIFF/WAVE file")
	}
	if hdr.BitsPerSample != 16 {
		return nil, fmt.Errorf("wav: expected 16-bit PCM, got %d-bit", hdr.BitsPerSample)
	}

	audioStart := 44
	audioEnd := audioStart + int(hdr.Subchunk2Size)
	if audioEnd > len(data) {
		audioEnd = len(data)
	}
	audio := data[audioStart:audioEnd]

	samples := make([]float32, 0, len(audio)/2)
	for i := 0; i+1 < len(audio); i += 2 {
		v := int16(binary.LittleEndian.Uint16(audio[i : i+2]))
		samples = append(samples, float32(v)/32768.0)
	}

	if hdr.NumChannels == 2 {
		mono := make([]float32, len(samples)/2)
		for i := range mono {
			mono[i] = (samples[i*2] + samples[i*2+1]) / 2.0
		}
		samples = mono
	}
	return samples, nil
}

type byteReaderAt struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReaderAt { return &byteReaderAt{data: data} }

func (r *byteReaderAt) Read(p []byte) (int, error) {
	n := copy(p, r.data[r.pos:])
	r.pos += n
	if n == 0 {
		return 0, fmt.Errorf("wav: eof")
	}
	return n, nil
}
