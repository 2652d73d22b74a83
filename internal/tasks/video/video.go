package video

import "lumenarchive/internal/tasks"

// Register adds every Video task to cat.
func Register(cat tasks.Catalogue) {
	cat.Register(Thumbnail{})
	cat.Register(Frame{})
	cat.Register(FrameDescription{})
	cat.Register(FrameDescEmbed{})
	cat.Register(Audio{})
	cat.Register(Transcript{})
	cat.Register(TransChunk{})
	cat.Register(TransChunkSum{})
	cat.Register(TransChunkSumEmbed{})
}
