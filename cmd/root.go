// Package cmd implements the weather-sorter command line.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/briancolinger/weather-sorter/internal/config"
)

// Holds the flags shared by every command.
type rootParams struct {
	Debug  bool     // Enables debug logging.
	Layout []string // Layout entries of the form "split:cat1,cat2".
}

// layout parses the --layout flags, falling back to the default layout.
func (p *rootParams) layout() (config.Layout, error) {
	return config.ParseLayout(p.Layout)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	params := &rootParams{}

	root := &cobra.Command{
		Use:   "weather-sorter",
		Short: "Clean weather image datasets and classify weather images",
		Long: `weather-sorter removes grayscale images from a split/category image dataset,
trains a weather classifier on backbone features and predicts the category of an image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.OutOrStdout())
			log.SetLevel(log.InfoLevel)
			if params.Debug {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVar(&params.Debug, "debug", false, "if true, enables debug logging")
	root.PersistentFlags().StringArrayVar(&params.Layout, "layout", nil,
		`dataset layout entry "split:cat1,cat2,..." (repeatable, in order; default train and val with rainy,cloudy,sunshine,sunrise)`)

	root.AddCommand(newScrubCmd(params), newTrainCmd(params), newPredictCmd())

	return root
}

// Execute runs the root command and exits non-zero on error (called by main.go).
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
