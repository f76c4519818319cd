// Package features turns images into fixed-length feature vectors, with an optional
// on-disk cache of computed vectors. The backbone itself lives in package dnn.
package features

// Extractor computes a feature vector for an image file.
type Extractor interface {
	Extract(path string) ([]float64, error)
	Close() error
}
