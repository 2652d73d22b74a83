// Package asset defines the data model shared across the content engine:
// content metadata, the closed task-type enum, and the artifact run records
// persisted by the ledger.
package asset

// MediaKind discriminates the ContentMetadata sum type.
type MediaKind string

const (
	KindVideo   MediaKind = "video"
	KindAudio   MediaKind = "audio"
	KindImage   MediaKind = "image"
	KindRawText MediaKind = "raw_text"
	KindWebPage MediaKind = "web_page"
	KindUnknown MediaKind = "unknown"
)

// EmbeddedAudioMetadata describes the audio track carried inside a video container.
type EmbeddedAudioMetadata struct {
	BitRate    int64 `json:"bit_rate"`
	DurationMs int64 `json:"duration_ms"`
}

// VideoMetadata is probed once at ingest and may be re-set idempotently on re-ingest.
type VideoMetadata struct {
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	DurationMs int64                  `json:"duration_ms"`
	BitRate    int64                  `json:"bit_rate"`
	FPS        float64                `json:"fps"`
	HasAudio   bool                   `json:"has_audio"`
	Audio      *EmbeddedAudioMetadata `json:"audio,omitempty"`
}

type AudioMetadata struct {
	DurationMs int64 `json:"duration_ms"`
	BitRate    int64 `json:"bit_rate"`
	SampleRate int   `json:"sample_rate"`
}

type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

type RawTextMetadata struct {
	SizeBytes int64  `json:"size_bytes"`
	Language  string `json:"language,omitempty"`
}

type WebPageMetadata struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ContentMetadata is a {Video|Audio|Image|RawText|WebPage|Unknown} sum type.
// Exactly one of the pointer fields is set, matching Kind.
type ContentMetadata struct {
	Kind    MediaKind        `json:"kind"`
	Video   *VideoMetadata   `json:"video,omitempty"`
	Audio   *AudioMetadata   `json:"audio,omitempty"`
	Image   *ImageMetadata   `json:"image,omitempty"`
	RawText *RawTextMetadata `json:"raw_text,omitempty"`
	WebPage *WebPageMetadata `json:"web_page,omitempty"`
}

// Unknown is the fresh-record default when no metadata has been probed yet.
func Unknown() ContentMetadata { return ContentMetadata{Kind: KindUnknown} }

func VideoContent(m VideoMetadata) ContentMetadata {
	return ContentMetadata{Kind: KindVideo, Video: &m}
}

func AudioContent(m AudioMetadata) ContentMetadata {
	return ContentMetadata{Kind: KindAudio, Audio: &m}
}

func ImageContent(m ImageMetadata) ContentMetadata {
	return ContentMetadata{Kind: KindImage, Image: &m}
}

func RawTextContent(m RawTextMetadata) ContentMetadata {
	return ContentMetadata{Kind: KindRawText, RawText: &m}
}

func WebPageContent(m WebPageMetadata) ContentMetadata {
	return ContentMetadata{Kind: KindWebPage, WebPage: &m}
}
