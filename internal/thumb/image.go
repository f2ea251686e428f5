package thumb

import (
	"context"
	"errors"
	"image"
)

// Common errors returned by Image implementations
var (
	ErrEmptyImage       = errors.New("decoded image is empty")
	ErrInvalidThumbSize = errors.New("thumbnail size must be positive")
)

// Key is the stable identity of an image: the URI of its full-size resource.
type Key string

// Image is a reference to an image resource that can be decoded to a
// thumbnail-sized bitmap.
type Image interface {
	// Key returns the identity used for equality and deduplication
	Key() Key

	// MiniThumb decodes the image into a fresh thumbnail-sized bitmap.
	// It blocks for the duration of the decode and may fail.
	MiniThumb(ctx context.Context) (image.Image, error)
}

// ByteSize reports the memory footprint of img as a 32-bit RGBA bitmap.
// A nil image has size zero.
func ByteSize(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
