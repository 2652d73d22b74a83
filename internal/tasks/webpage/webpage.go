package webpage

import "lumenarchive/internal/tasks"

// Register adds every WebPage task to cat.
func Register(cat tasks.Catalogue) {
	cat.Register(Extract{})
	cat.Register(Chunk{})
	cat.Register(ChunkEmbed{})
}
