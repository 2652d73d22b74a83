package image

import "lumenarchive/internal/tasks"

// Register adds every Image task to cat.
func Register(cat tasks.Catalogue) {
	cat.Register(Caption{})
	cat.Register(CaptionEmbed{})
	cat.Register(Embed{})
}
