// Package dataset lists the image files of a split/category dataset tree.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sample is one labeled image of a split.
type Sample struct {
	Path  string // Path to the image file.
	Label string // Name of the category directory the image lives in.
}

// imageExtensions holds the supported image file extensions, lowercase.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether name carries one of the supported image extensions.
// The match is case-insensitive.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsDir reports whether path is a directory, following symlinks.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ListImages returns the image files directly inside dir, sorted by name.
// Sub-directories and files without an image extension are skipped.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if IsDir(path) || !IsImage(entry.Name()) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)

	return files, nil
}

// Samples collects the labeled images of root/split/<category> for every category.
// Missing category directories are returned in missing rather than as an error.
func Samples(root, split string, categories []string) (samples []Sample, missing []string, err error) {
	for _, category := range categories {
		dir := filepath.Join(root, split, category)
		if !IsDir(dir) {
			missing = append(missing, dir)
			continue
		}

		files, err := ListImages(dir)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range files {
			samples = append(samples, Sample{Path: f, Label: category})
		}
	}
	return samples, missing, nil
}
