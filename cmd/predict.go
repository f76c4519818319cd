package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/briancolinger/weather-sorter/internal/features"
	"github.com/briancolinger/weather-sorter/internal/model"
)

// Contains parameters for the predict command.
type predictParams struct {
	backboneParams
	ModelPath string
}

func newPredictCmd() *cobra.Command {
	params := &predictParams{}

	cmd := &cobra.Command{
		Use:   "predict IMAGE",
		Short: "Print the weather category of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := model.LoadFile(params.ModelPath)
			if err != nil {
				return fmt.Errorf("loading classifier: %w", err)
			}

			e, err := params.open("")
			if err != nil {
				return err
			}
			defer func() {
				if err := e.Close(); err != nil {
					log.WithField("error", err).Error("Error closing feature extractor")
				}
			}()

			return runPredict(cmd, e, classifier, args[0])
		},
	}

	params.register(cmd)
	cmd.Flags().StringVar(&params.ModelPath, "model", "model.gob", "path of the fitted classifier")

	return cmd
}

func runPredict(cmd *cobra.Command, e features.Extractor, c model.Classifier, path string) error {
	vector, err := e.Extract(path)
	if err != nil {
		return err
	}

	label, err := c.Predict(vector)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"path": path, "label": label}).Debug("Predicted")
	fmt.Fprintln(cmd.OutOrStdout(), label)
	return nil
}
