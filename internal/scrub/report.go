package scrub

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

type (
	// CategoryReport holds the counters of one split/category directory.
	CategoryReport struct {
		Split     string `json:"split"`
		Category  string `json:"category"`
		Processed int    `json:"processed"`         // Image files inspected.
		Flagged   int    `json:"flagged"`           // Grayscale images found.
		Failed    int    `json:"failed"`            // Flagged images that could not be removed or moved.
		Missing   bool   `json:"missing,omitempty"` // The directory does not exist.
	}

	// Report summarizes a scrub run.
	Report struct {
		Categories     []CategoryReport `json:"categories"`
		TotalProcessed int              `json:"total_processed"`
		TotalFlagged   int              `json:"total_flagged"`
		TotalFailed    int              `json:"total_failed"`
		DryRun         bool             `json:"dry_run"`
		Warnings       []string         `json:"warnings,omitempty"`
		Errors         []string         `json:"errors,omitempty"`
	}
)

func (r *Report) add(cr CategoryReport) {
	r.Categories = append(r.Categories, cr)
	r.TotalProcessed += cr.Processed
	r.TotalFlagged += cr.Flagged
	r.TotalFailed += cr.Failed
}

func (r *Report) warn(path string) {
	log.WithField("path", path).Warn("Directory not found, skipping")
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s not found, skipping", path))
}

// Category returns the counters recorded for split/category.
func (r *Report) Category(split, category string) (CategoryReport, bool) {
	for _, cr := range r.Categories {
		if cr.Split == split && cr.Category == category {
			return cr, true
		}
	}
	return CategoryReport{}, false
}

// Print writes the human-readable summary to w.
func (r *Report) Print(w io.Writer) error {
	var b strings.Builder

	for _, cr := range r.Categories {
		if cr.Missing {
			fmt.Fprintf(&b, "%s/%s: not found\n", cr.Split, cr.Category)
			continue
		}
		fmt.Fprintf(&b, "%s/%s: processed %d images, found %d grayscale images", cr.Split, cr.Category, cr.Processed, cr.Flagged)
		if cr.Failed > 0 {
			fmt.Fprintf(&b, ", %d failed", cr.Failed)
		}
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "DATASET SUMMARY: Processed %d images\n", r.TotalProcessed)
	fmt.Fprintf(&b, "Found %d grayscale images\n", r.TotalFlagged)

	switch {
	case r.DryRun:
		b.WriteString("No files were removed (dry run)\n")
	case r.TotalFailed > 0:
		fmt.Fprintf(&b, "Removed/moved %d grayscale images, %d failed\n", r.TotalFlagged-r.TotalFailed, r.TotalFailed)
	default:
		fmt.Fprintf(&b, "Removed/moved %d grayscale images\n", r.TotalFlagged)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
