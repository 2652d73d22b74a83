package asset

// TaskType is the closed, hierarchical task enum. Each variant carries no
// payload state; its identity plus the asset's file identifier form a task
// key. The string value is also the on-disk ledger key and the
// vector/full-text payload discriminant, so it must never be renamed once
// artifacts referencing it exist.
type TaskType string

// Video pipeline.
const (
	VideoThumbnail          TaskType = "video.thumbnail"
	VideoFrame              TaskType = "video.frame"
	VideoFrameDescription   TaskType = "video.frame_description"
	VideoFrameDescEmbed     TaskType = "video.frame_desc_embed"
	VideoAudio              TaskType = "video.audio"
	VideoTranscript         TaskType = "video.transcript"
	VideoTransChunk         TaskType = "video.trans_chunk"
	VideoTransChunkSum      TaskType = "video.trans_chunk_sum"
	VideoTransChunkSumEmbed TaskType = "video.trans_chunk_sum_embed"
)

// Audio pipeline.
const (
	AudioWaveform           TaskType = "audio.waveform"
	AudioTranscript         TaskType = "audio.transcript"
	AudioTransChunk         TaskType = "audio.trans_chunk"
	AudioTransChunkSum      TaskType = "audio.trans_chunk_sum"
	AudioTransChunkSumEmbed TaskType = "audio.trans_chunk_sum_embed"
)

// Image pipeline.
const (
	ImageCaption      TaskType = "image.caption"
	ImageCaptionEmbed TaskType = "image.caption_embed"
	ImageEmbed        TaskType = "image.embed"
)

// RawText pipeline.
const (
	RawTextChunk      TaskType = "raw_text.chunk"
	RawTextChunkEmbed TaskType = "raw_text.chunk_embed"
)

// WebPage pipeline.
const (
	WebPageExtract    TaskType = "web_page.extract"
	WebPageChunk      TaskType = "web_page.chunk"
	WebPageChunkEmbed TaskType = "web_page.chunk_embed"
)

// Kind returns the media kind a task type belongs to, derived from its
// namespace prefix.
func (t TaskType) Kind() MediaKind {
	for i := 0; i < len(t); i++ {
		if t[i] == '.' {
			return MediaKind(t[:i])
		}
	}
	return KindUnknown
}

// TerminalTasks are the leaf *-Embed tasks whose completion triggers index
// writes.
var TerminalTasks = map[TaskType]bool{
	VideoFrameDescEmbed:     true,
	VideoTransChunkSumEmbed: true,
	AudioTransChunkSumEmbed: true,
	ImageCaptionEmbed:       true,
	ImageEmbed:              true,
	RawTextChunkEmbed:       true,
	WebPageChunkEmbed:       true,
}
