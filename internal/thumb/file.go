package thumb

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// supportedExts lists the file extensions FileImage can decode.
var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Supported reports whether path has an extension FileImage knows how to decode.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// FileImage is an Image stored as a file on the local filesystem.
type FileImage struct {
	path string
	key  Key
	size int
}

// NewFileImage returns a FileImage for path whose thumbnails fit in a
// size x size box. The path is made absolute so the key is stable.
func NewFileImage(path string, size int) (*FileImage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThumbSize, size)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image path %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return &FileImage{
		path: abs,
		key:  Key(u.String()),
		size: size,
	}, nil
}

// Key implements Image.
func (f *FileImage) Key() Key {
	return f.key
}

// Path returns the absolute path of the underlying file.
func (f *FileImage) Path() string {
	return f.path
}

// MiniThumb implements Image. The context is consulted before the file is
// read and again before scaling, so a stopping loader can abandon the work.
func (f *FileImage) MiniThumb(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	src, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: format %s", ErrEmptyImage, format)
	}

	return Fit(src, f.size), nil
}

// Fit scales src so that its longer edge equals size, preserving the aspect
// ratio. Images already within the box are copied at their original size.
// The result is always a newly allocated bitmap.
func Fit(src image.Image, size int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > size || h > size {
		if w >= h {
			h = max(1, h*size/w)
			w = size
		} else {
			w = max(1, w*size/h)
			h = size
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
