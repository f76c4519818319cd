// Package dnn extracts image features with a pretrained OpenCV DNN backbone.
package dnn

import (
	"errors"
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	errEmptyNet    = errors.New("failed to load backbone network")
	errEmptyImage  = errors.New("failed to read image")
	errEmptyOutput = errors.New("backbone returned no features")
)

type (
	// Params configures an Extractor.
	Params struct {
		Model  string // Path to the backbone weights (ONNX, Caffe, TensorFlow, ...).
		Config string // Optional network config file, empty for ONNX.
		Layer  string // Output layer to read features from; empty means the last layer.
		Size   int    // Input edge length in pixels; 0 means 224.
	}

	// Extractor runs an OpenCV DNN backbone and returns the flattened activations
	// of the configured layer.
	Extractor struct {
		params Params
		net    gocv.Net
	}
)

// Per-channel ImageNet mean (RGB) subtracted from the input, and the average standard
// deviation used to scale it.
const (
	meanR    = 123.675
	meanG    = 116.28
	meanB    = 103.53
	stdScale = 1 / (255 * 0.226)
)

// New loads the backbone described by params.
func New(params Params) (*Extractor, error) {
	if params.Size <= 0 {
		params.Size = 224
	}

	net := gocv.ReadNet(params.Model, params.Config)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", errEmptyNet, params.Model)
	}

	log.WithFields(log.Fields{"model": params.Model, "layer": params.Layer}).Debug("Loaded backbone")

	return &Extractor{params: params, net: net}, nil
}

// Tag identifies the backbone and layer, so cached vectors from another backbone are
// never reused.
func (e *Extractor) Tag() string {
	return fmt.Sprintf("%s#%s@%d", e.params.Model, e.params.Layer, e.params.Size)
}

// Extract reads the image at path and returns its feature vector.
func (e *Extractor) Extract(path string) ([]float64, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer e.closeMat(&img)
	if img.Empty() {
		return nil, fmt.Errorf("%w: %s", errEmptyImage, path)
	}

	// IMRead yields BGR; swapRB feeds the network RGB as the backbone expects.
	blob := gocv.BlobFromImage(img, stdScale, image.Pt(e.params.Size, e.params.Size),
		gocv.NewScalar(meanR, meanG, meanB, 0), true, false)
	defer e.closeMat(&blob)

	e.net.SetInput(blob, "")
	out := e.net.Forward(e.params.Layer)
	defer e.closeMat(&out)

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", errEmptyOutput, path)
	}

	vector := make([]float64, len(data))
	for i, v := range data {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Close releases the network.
func (e *Extractor) Close() error {
	return e.net.Close()
}

func (e *Extractor) closeMat(m *gocv.Mat) {
	if err := m.Close(); err != nil {
		log.WithField("error", err).Error("Error closing mat")
	}
}
