package loader

import (
	"image"

	"github.com/phrazzld/thumbloader/internal/thumb"
)

// Callback receives the decoded bitmap, or nil if the decode failed.
type Callback func(bitmap image.Image)

// WorkItem is a single decode request with its delivery instructions.
// Two work items are the same task when their images share a Key.
type WorkItem struct {
	Image        thumb.Image
	Tag          int
	Callback     Callback
	DeliverAsync bool
}

// Key returns the identity of the item's image.
func (w WorkItem) Key() thumb.Key {
	return w.Image.Key()
}
