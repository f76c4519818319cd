// Package scrub removes grayscale images from a split/category dataset tree.
//
// A Scrubber walks the configured layout in order, asks its Detector about every
// image file directly inside each category directory, and deletes the grayscale
// ones, moves them into a mirrored backup tree, or only reports them in dry-run
// mode. Failures on a single file are logged and counted; they never stop the run.
package scrub

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/briancolinger/weather-sorter/internal/config"
	"github.com/briancolinger/weather-sorter/internal/dataset"
	"github.com/briancolinger/weather-sorter/internal/grayscale"
)

var (
	// ErrInvalidDataset is returned when the dataset root is not a directory.
	ErrInvalidDataset = errors.New("not a valid directory")
	// ErrBackupExists is returned for a file whose backup destination is already taken.
	ErrBackupExists = errors.New("backup destination already exists")
)

// Directory permissions for the backup tree.
const dirPerm = 0o755

type (
	// Detector decides whether an image file should be discarded.
	Detector interface {
		IsGrayscale(path string) bool
	}

	// Options configures a Scrubber.
	Options struct {
		Layout    config.Layout // Splits and categories to walk, in order.
		BackupDir string        // If set, flagged files are moved here instead of deleted.
		DryRun    bool          // If true, no file is moved or deleted.
		Detector  Detector      // Defaults to a grayscale detector with the default sample size.
	}

	// Scrubber removes grayscale images from a dataset.
	Scrubber struct {
		opts Options
	}
)

// New returns a Scrubber for opts, filling in the default layout and detector.
func New(opts Options) (*Scrubber, error) {
	if len(opts.Layout) == 0 {
		opts.Layout = config.DefaultLayout()
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	if opts.Detector == nil {
		opts.Detector = grayscale.New(config.DefaultSampleSize)
	}
	return &Scrubber{opts: opts}, nil
}

// Run scrubs the dataset at root and returns the summary.
// The only error returned is ErrInvalidDataset; everything else is recorded in the report.
func (s *Scrubber) Run(root string) (*Report, error) {
	if !dataset.IsDir(root) {
		return nil, fmt.Errorf("%s: %w", root, ErrInvalidDataset)
	}

	report := &Report{DryRun: s.opts.DryRun}

	for _, split := range s.opts.Layout {
		splitPath := filepath.Join(root, split.Name)
		if !dataset.IsDir(splitPath) {
			report.warn(splitPath)
			for _, category := range split.Categories {
				report.Categories = append(report.Categories, CategoryReport{
					Split: split.Name, Category: category, Missing: true,
				})
			}
			continue
		}

		for _, category := range split.Categories {
			report.add(s.scrubCategory(report, root, split.Name, category))
		}
	}

	return report, nil
}

func (s *Scrubber) scrubCategory(report *Report, root, split, category string) CategoryReport {
	cr := CategoryReport{Split: split, Category: category}

	categoryPath := filepath.Join(root, split, category)
	if !dataset.IsDir(categoryPath) {
		report.warn(categoryPath)
		cr.Missing = true
		return cr
	}

	log.WithFields(log.Fields{"split": split, "category": category}).Info("Processing category")

	files, err := dataset.ListImages(categoryPath)
	if err != nil {
		log.WithFields(log.Fields{"path": categoryPath, "error": err}).Error("Error listing category")
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", categoryPath, err))
		return cr
	}

	for _, path := range files {
		cr.Processed++

		if !s.opts.Detector.IsGrayscale(path) {
			continue
		}
		cr.Flagged++

		if err := s.discard(path, split, category); err != nil {
			cr.Failed++
			log.WithFields(log.Fields{"path": path, "error": err}).Error("Error discarding grayscale image")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
		}
	}

	log.WithFields(log.Fields{
		"split":     split,
		"category":  category,
		"processed": cr.Processed,
		"grayscale": cr.Flagged,
	}).Info("Category summary")

	return cr
}

// discard removes the flagged file at path, or moves it under the backup tree.
func (s *Scrubber) discard(path, split, category string) error {
	filename := filepath.Base(path)

	// Return early if DryRun is true.
	if s.opts.DryRun {
		log.WithFields(log.Fields{"type": "DRY RUN", "file": filename}).Info("Would remove grayscale image")
		return nil
	}

	if s.opts.BackupDir == "" {
		log.WithFields(log.Fields{"type": "REMOVE", "file": filename}).Info("Removing grayscale image")
		return os.Remove(path)
	}

	destDir := filepath.Join(s.opts.BackupDir, split, category)
	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return err
	}

	dest := filepath.Join(destDir, filename)
	log.WithFields(log.Fields{"type": "MOVE", "src": path, "dest": dest}).Info("Moving grayscale image to backup")

	return moveFile(path, dest)
}

// moveFile moves src to dest, refusing to replace an existing dest.
// A rename across devices falls back to copy and remove; any other rename error is returned.
func moveFile(src, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("%s: %w", dest, ErrBackupExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	err := os.Rename(src, dest)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		// Leave the file in exactly one place.
		return errors.Join(err, os.Remove(dest))
	}
	return nil
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	// O_EXCL keeps a destination that appeared after the existence check.
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", dest, ErrBackupExists)
		}
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
