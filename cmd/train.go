package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/briancolinger/weather-sorter/internal/features"
	"github.com/briancolinger/weather-sorter/internal/features/dnn"
	"github.com/briancolinger/weather-sorter/internal/train"
)

var errMissingBackbone = errors.New("please specify the backbone model with --backbone")

// Flags selecting and configuring the feature backbone.
type backboneParams struct {
	Model  string // Backbone weights.
	Config string // Optional backbone config file.
	Layer  string // Output layer.
	Size   int    // Input edge length.
}

func (p *backboneParams) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.Model, "backbone", "", "path to the pretrained backbone network (e.g. resnet18.onnx)")
	cmd.Flags().StringVar(&p.Config, "backbone-config", "", "optional backbone config file")
	cmd.Flags().StringVar(&p.Layer, "layer", "", "backbone layer to read features from (default: output layer)")
	cmd.Flags().IntVar(&p.Size, "size", 224, "backbone input size in pixels")
}

// Returns the feature extractor, optionally behind a SQLite cache.
func (p *backboneParams) open(cachePath string) (features.Extractor, error) {
	if p.Model == "" {
		return nil, errMissingBackbone
	}

	e, err := dnn.New(dnn.Params{Model: p.Model, Config: p.Config, Layer: p.Layer, Size: p.Size})
	if err != nil {
		return nil, err
	}
	if cachePath == "" {
		return e, nil
	}

	c, err := features.NewCache(cachePath, e.Tag(), e)
	if err != nil {
		return nil, errors.Join(err, e.Close())
	}
	return c, nil
}

// Contains parameters for the train command.
type trainParams struct {
	backboneParams
	ModelPath  string // Where the fitted classifier is written.
	Cache      string // Optional feature cache database.
	TrainSplit string
	ValSplit   string
	Progress   bool
}

func newTrainCmd(root *rootParams) *cobra.Command {
	params := &trainParams{}

	cmd := &cobra.Command{
		Use:   "train DATASET",
		Short: "Fit the weather classifier on a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := root.layout()
			if err != nil {
				return err
			}

			e, err := params.open(params.Cache)
			if err != nil {
				return err
			}
			defer func() {
				if err := e.Close(); err != nil {
					log.WithField("error", err).Error("Error closing feature extractor")
				}
			}()

			return runTrain(cmd, e, train.Params{
				Root:       args[0],
				Layout:     layout,
				TrainSplit: params.TrainSplit,
				ValSplit:   params.ValSplit,
			}, params)
		},
	}

	params.register(cmd)
	cmd.Flags().StringVar(&params.ModelPath, "model", "model.gob", "output path of the fitted classifier")
	cmd.Flags().StringVar(&params.Cache, "cache", "", "optional SQLite database caching extracted features")
	cmd.Flags().StringVar(&params.TrainSplit, "train-split", "train", "split used for fitting")
	cmd.Flags().StringVar(&params.ValSplit, "val-split", "val", "split used for validation (empty to skip)")
	cmd.Flags().BoolVar(&params.Progress, "progress", true, "show a progress bar while extracting features")

	return cmd
}

func runTrain(cmd *cobra.Command, e features.Extractor, tp train.Params, params *trainParams) error {
	start := time.Now()
	t := train.New(e)

	if params.Progress {
		total, err := train.Count(tp)
		if err != nil {
			return err
		}
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Extracting features"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		t.OnImage = func() { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	result, err := t.Run(tp)
	if err != nil {
		return err
	}

	if err := result.Classifier.SaveFile(params.ModelPath); err != nil {
		return fmt.Errorf("saving classifier: %w", err)
	}

	log.WithFields(log.Fields{
		"trained":    result.Trained,
		"validated":  result.Validated,
		"skipped":    result.Skipped,
		"model":      params.ModelPath,
		"time_taken": time.Since(start),
	}).Info("Training done")

	if result.Validated > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", result.Accuracy)
	}
	return nil
}
