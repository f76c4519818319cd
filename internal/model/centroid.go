// Package model fits and persists the weather classifier that maps feature vectors to
// category labels.
package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

var (
	errNoSamples         = errors.New("no training samples")
	errLengthMismatch    = errors.New("vectors and labels differ in length")
	errDimensionMismatch = errors.New("vector dimension mismatch")
	errNotFitted         = errors.New("classifier is not fitted")
)

// Classifier maps feature vectors to labels.
type Classifier interface {
	Fit(vectors [][]float64, labels []string) error
	Predict(vector []float64) (string, error)
}

// Centroid is a nearest-centroid classifier: each label is represented by the mean of its
// training vectors, and a vector is assigned the label of the closest mean.
type Centroid struct {
	Labels    []string    // Sorted label names.
	Centroids [][]float64 // Centroids[i] is the mean vector of Labels[i].
}

// NewCentroid returns an unfitted classifier.
func NewCentroid() *Centroid {
	return &Centroid{}
}

// Fit computes one centroid per label.
func (c *Centroid) Fit(vectors [][]float64, labels []string) error {
	if len(vectors) == 0 {
		return errNoSamples
	}
	if len(vectors) != len(labels) {
		return fmt.Errorf("%w: %d vectors, %d labels", errLengthMismatch, len(vectors), len(labels))
	}

	dim := len(vectors[0])
	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: sample %d has %d values, want %d", errDimensionMismatch, i, len(v), dim)
		}
		sum, ok := sums[labels[i]]
		if !ok {
			sum = make([]float64, dim)
			sums[labels[i]] = sum
		}
		floats.Add(sum, v)
		counts[labels[i]]++
	}

	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)

	c.Labels = names
	c.Centroids = make([][]float64, len(names))
	for i, name := range names {
		floats.Scale(1/float64(counts[name]), sums[name])
		c.Centroids[i] = sums[name]
		log.WithFields(log.Fields{"label": name, "samples": counts[name]}).Debug("Fitted centroid")
	}

	return nil
}

// Predict returns the label whose centroid is closest to vector.
// Ties go to the label that sorts first.
func (c *Centroid) Predict(vector []float64) (string, error) {
	if len(c.Centroids) == 0 {
		return "", errNotFitted
	}
	if len(vector) != len(c.Centroids[0]) {
		return "", fmt.Errorf("%w: got %d values, want %d", errDimensionMismatch, len(vector), len(c.Centroids[0]))
	}

	best, bestDist := 0, math.Inf(1)
	for i, centroid := range c.Centroids {
		if d := floats.Distance(vector, centroid, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return c.Labels[best], nil
}

// Accuracy returns the fraction of vectors that c labels correctly.
func Accuracy(c Classifier, vectors [][]float64, labels []string) (float64, error) {
	if len(vectors) == 0 {
		return 0, errNoSamples
	}
	if len(vectors) != len(labels) {
		return 0, fmt.Errorf("%w: %d vectors, %d labels", errLengthMismatch, len(vectors), len(labels))
	}

	correct := 0
	for i, v := range vectors {
		got, err := c.Predict(v)
		if err != nil {
			return 0, err
		}
		if got == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(vectors)), nil
}

// Save writes c to w.
func (c *Centroid) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(c)
}

// Load reads a classifier written by Save.
func Load(r io.Reader) (*Centroid, error) {
	var c Centroid
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return nil, err
	}
	if len(c.Labels) != len(c.Centroids) {
		return nil, fmt.Errorf("%w: %d labels, %d centroids", errLengthMismatch, len(c.Labels), len(c.Centroids))
	}
	return &c, nil
}

// SaveFile writes c to the file at path, replacing it.
func (c *Centroid) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return c.Save(f)
}

// LoadFile reads a classifier from the file at path.
func LoadFile(path string) (*Centroid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
