package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/briancolinger/weather-sorter/internal/config"
	"github.com/briancolinger/weather-sorter/internal/grayscale"
	"github.com/briancolinger/weather-sorter/internal/scrub"
)

// Contains parameters for the scrub command.
type scrubParams struct {
	Backup     string // Backup root for removed images.
	DryRun     bool   // If true, the files will not be moved or deleted.
	JSON       bool   // Print the report as JSON.
	SampleSize int    // Pixels inspected per image.
}

func newScrubCmd(root *rootParams) *cobra.Command {
	params := &scrubParams{}

	cmd := &cobra.Command{
		Use:   "scrub DATASET",
		Short: "Remove grayscale images from a dataset",
		Long: `scrub walks DATASET/<split>/<category>/ and removes every grayscale image.
With --backup the images are moved to BACKUP/<split>/<category>/ instead of being deleted;
with --dry-run nothing is touched and only the summary is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := root.layout()
			if err != nil {
				return err
			}
			return runScrub(cmd, args[0], layout, params)
		},
	}

	cmd.Flags().StringVar(&params.Backup, "backup", "", "path to backup folder for removed images (optional)")
	cmd.Flags().BoolVar(&params.DryRun, "dry-run", false, "only print what would be removed, without deleting")
	cmd.Flags().BoolVar(&params.JSON, "json", false, "print the summary as JSON")
	cmd.Flags().IntVar(&params.SampleSize, "sample", config.DefaultSampleSize, "number of leading pixels inspected per image")

	return cmd
}

func runScrub(cmd *cobra.Command, dataset string, layout config.Layout, params *scrubParams) error {
	start := time.Now()

	// Keep stdout parseable.
	if params.JSON {
		log.SetOutput(cmd.ErrOrStderr())
	}

	s, err := scrub.New(scrub.Options{
		Layout:    layout,
		BackupDir: params.Backup,
		DryRun:    params.DryRun,
		Detector:  grayscale.New(params.SampleSize),
	})
	if err != nil {
		return err
	}

	report, err := s.Run(dataset)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"time_taken": time.Since(start)}).Debug("Scrub done")

	if params.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if err := report.Print(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
