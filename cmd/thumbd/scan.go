package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/phrazzld/thumbloader/internal/thumb"
)

// scan walks dirs and returns a FileImage for every supported image file,
// sorted by path. Files reachable from more than one dir are returned once.
func scan(dirs []string, size int) ([]*thumb.FileImage, error) {
	seen := make(map[thumb.Key]bool)
	var images []*thumb.FileImage

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !thumb.Supported(path) {
				return nil
			}
			img, err := thumb.NewFileImage(path, size)
			if err != nil {
				return err
			}
			if seen[img.Key()] {
				return nil
			}
			seen[img.Key()] = true
			images = append(images, img)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Path() < images[j].Path()
	})
	return images, nil
}
