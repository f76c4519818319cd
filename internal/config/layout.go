// Package config holds the dataset layout and the defaults shared by the commands.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSampleSize is the number of pixels inspected by the grayscale check.
const DefaultSampleSize = 100

var (
	errEmptyLayout     = errors.New("layout is empty")
	errInvalidLayout   = errors.New("invalid layout entry")
	errDuplicateSplit  = errors.New("duplicate split in layout")
	errEmptyCategories = errors.New("split has no categories")
)

type (
	// Split is one split directory of the dataset and the category directories it holds.
	Split struct {
		Name       string   // Directory name of the split, e.g. "train".
		Categories []string // Category directory names, in processing order.
	}

	// Layout is the ordered list of splits to walk.
	Layout []Split
)

// DefaultCategories are the weather categories of the stock dataset.
func DefaultCategories() []string {
	return []string{"rainy", "cloudy", "sunshine", "sunrise"}
}

// DefaultLayout returns train then val, each with the default categories.
func DefaultLayout() Layout {
	return Layout{
		{Name: "train", Categories: DefaultCategories()},
		{Name: "val", Categories: DefaultCategories()},
	}
}

// ParseLayout parses entries of the form "split:cat1,cat2,...".
// An empty list yields the default layout.
func ParseLayout(entries []string) (Layout, error) {
	if len(entries) == 0 {
		return DefaultLayout(), nil
	}

	layout := make(Layout, 0, len(entries))
	seen := make(map[string]bool)
	for _, entry := range entries {
		name, cats, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidLayout, entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", errDuplicateSplit, name)
		}
		seen[name] = true

		var categories []string
		for _, c := range strings.Split(cats, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
		if len(categories) == 0 {
			return nil, fmt.Errorf("%w: %q", errEmptyCategories, name)
		}

		layout = append(layout, Split{Name: name, Categories: categories})
	}

	return layout, nil
}

// Validate checks that the layout has at least one split and every split has categories.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return errEmptyLayout
	}
	for _, s := range l {
		if s.Name == "" {
			return fmt.Errorf("%w: split without a name", errInvalidLayout)
		}
		if len(s.Categories) == 0 {
			return fmt.Errorf("%w: %q", errEmptyCategories, s.Name)
		}
	}
	return nil
}

// Find returns the split with the given name.
func (l Layout) Find(name string) (Split, bool) {
	for _, s := range l {
		if s.Name == name {
			return s, true
		}
	}
	return Split{}, false
}
