// Package codec is the media-decode façade every task body invokes instead
// of shelling out to a decoder directly (§1: "media decoding ... a codec
// façade invoked by specific tasks"). It is deliberately thin: the core
// only needs probe metadata and a handful of extraction primitives, never
// the decoders' own configuration surface.
package codec

import (
	"context"
	"time"
)

// VideoProbe is what Video::Thumbnail/Frame/Audio need to know about a
// source file before they run, matching asset.VideoMetadata's fields.
type VideoProbe struct {
	Width      int
	Height     int
	DurationMs int64
	BitRate    int64
	FPS        float64
	HasAudio   bool
	AudioBitRate    int64
	AudioDurationMs int64
}

// AudioProbe is the audio analogue of VideoProbe.
type AudioProbe struct {
	DurationMs int64
	BitRate    int64
	SampleRate int
}

// Frame is one extracted key frame, named by its offset into the source.
type Frame struct {
	TimestampMs int64
	JPEG        []byte
}

// VideoCodec extracts thumbnails, key frames, and the audio track from a
// video container.
type VideoCodec interface {
	ProbeVideo(ctx context.Context, path string) (VideoProbe, error)

	// Thumbnail returns a single JPEG frame at t=0.
	Thumbnail(ctx context.Context, path string) ([]byte, error)

	// Frames extracts key frames at the given rate (frames per second),
	// e.g. 1.0 for the Video::Frame task's 1fps contract.
	Frames(ctx context.Context, path string, fps float64) ([]Frame, error)

	// DemuxAudio extracts the audio track resampled to 16kHz mono PCM WAV,
	// the Video::Audio task's output contract.
	DemuxAudio(ctx context.Context, path string) ([]byte, error)
}

// AudioCodec probes and resamples standalone audio files.
type AudioCodec interface {
	ProbeAudio(ctx context.Context, path string) (AudioProbe, error)

	// ResampleMono16k converts path to 16kHz mono PCM WAV for ASR, the
	// Audio::Waveform task's output contract.
	ResampleMono16k(ctx context.Context, path string) ([]byte, error)
}

// ImageCodec probes static images.
type ImageCodec interface {
	ProbeImage(ctx context.Context, path string) (width, height int, format string, err error)
}

// DocumentCodec converts a rich-markup source (HTML, docx-exported HTML,
// etc.) to plain text suitable for chunking.
type DocumentCodec interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// WebPageExtract is one rendered web page's reader-view content.
type WebPageExtract struct {
	Title string
	Text  string
}

// WebPageCodec renders a URL and extracts its reader-view content.
type WebPageCodec interface {
	Extract(ctx context.Context, url string) (WebPageExtract, error)
}

// defaultTimeout bounds any single FFmpeg/ffprobe invocation; task bodies
// still observe their own cancellation token independently at this
// boundary. The document and web-page codecs do not apply it.
const defaultTimeout = 5 * time.Minute
