// Package train fits the weather classifier on the feature vectors of a dataset's
// training split and scores it on the validation split.
package train

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/briancolinger/weather-sorter/internal/config"
	"github.com/briancolinger/weather-sorter/internal/dataset"
	"github.com/briancolinger/weather-sorter/internal/features"
	"github.com/briancolinger/weather-sorter/internal/model"
)

var (
	errMissingSplit = errors.New("split not found in layout")
	errNoImages     = errors.New("no usable images")
)

type (
	// Params selects the splits used for fitting and validation.
	Params struct {
		Root       string        // Dataset root directory.
		Layout     config.Layout // Splits and categories; categories become labels.
		TrainSplit string        // Split used to fit the classifier.
		ValSplit   string        // Split used for accuracy; empty skips validation.
	}

	// Result describes a finished training run.
	Result struct {
		Classifier *model.Centroid
		Trained    int     // Training images used.
		Validated  int     // Validation images scored.
		Skipped    int     // Images whose features could not be extracted.
		Accuracy   float64 // Fraction of validation images labeled correctly.
	}

	// Trainer extracts features and fits the classifier.
	Trainer struct {
		extractor features.Extractor
		// OnImage, if set, is called after every image, extracted or not.
		OnImage func()
	}
)

// New returns a Trainer using e for feature extraction.
func New(e features.Extractor) *Trainer {
	return &Trainer{extractor: e}
}

// Count returns how many images Run will visit, for progress reporting.
func Count(params Params) (int, error) {
	total := 0
	for _, name := range []string{params.TrainSplit, params.ValSplit} {
		if name == "" {
			continue
		}
		split, ok := params.Layout.Find(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", errMissingSplit, name)
		}
		samples, _, err := dataset.Samples(params.Root, split.Name, split.Categories)
		if err != nil {
			return 0, err
		}
		total += len(samples)
	}
	return total, nil
}

// Run fits a nearest-centroid classifier on params.TrainSplit and, when params.ValSplit
// is set, reports its accuracy there.
func (t *Trainer) Run(params Params) (*Result, error) {
	result := &Result{Classifier: model.NewCentroid()}

	vectors, labels, err := t.load(params, params.TrainSplit, result)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w in split %q", errNoImages, params.TrainSplit)
	}
	result.Trained = len(vectors)

	if err := result.Classifier.Fit(vectors, labels); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"samples": result.Trained, "labels": result.Classifier.Labels}).Info("Fitted classifier")

	if params.ValSplit == "" {
		return result, nil
	}

	vectors, labels, err = t.load(params, params.ValSplit, result)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		log.WithField("split", params.ValSplit).Warn("No validation images, skipping accuracy")
		return result, nil
	}
	result.Validated = len(vectors)

	result.Accuracy, err = model.Accuracy(result.Classifier, vectors, labels)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (t *Trainer) load(params Params, name string, result *Result) ([][]float64, []string, error) {
	split, ok := params.Layout.Find(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", errMissingSplit, name)
	}

	samples, missing, err := dataset.Samples(params.Root, split.Name, split.Categories)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range missing {
		log.WithField("path", m).Warn("Directory not found, skipping")
	}

	var vectors [][]float64
	var labels []string
	for _, s := range samples {
		v, err := t.extractor.Extract(s.Path)
		if t.OnImage != nil {
			t.OnImage()
		}
		if err != nil {
			result.Skipped++
			log.WithFields(log.Fields{"path": s.Path, "error": err}).Warn("Error extracting features")
			continue
		}
		vectors = append(vectors, v)
		labels = append(labels, s.Label)
	}

	return vectors, labels, nil
}
