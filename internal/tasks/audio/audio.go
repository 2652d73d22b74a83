package audio

import "lumenarchive/internal/tasks"

// Register adds every Audio task to cat.
func Register(cat tasks.Catalogue) {
	cat.Register(Waveform{})
	cat.Register(Transcript{})
	cat.Register(TransChunk{})
	cat.Register(TransChunkSum{})
	cat.Register(TransChunkSumEmbed{})
}
