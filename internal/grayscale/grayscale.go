// Package grayscale detects images whose pixels carry no color information.
//
// The check samples the first pixels of the image in raster order (top row first,
// left to right) after converting them to 8-bit RGB, and reports grayscale when
// every sampled pixel has equal red, green and blue values. Pixels beyond the
// sample window are never inspected.
package grayscale

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"  // Registers GIF.
	_ "image/jpeg" // Registers JPEG.
	_ "image/png"  // Registers PNG.
	"os"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"  // Registers BMP.
	_ "golang.org/x/image/tiff" // Registers TIFF.
	_ "golang.org/x/image/webp" // Registers WebP.

	"github.com/briancolinger/weather-sorter/internal/config"
)

// Detector classifies image files as grayscale or color.
type Detector struct {
	SampleSize int // Number of pixels inspected; values below 1 use config.DefaultSampleSize.
}

// New returns a Detector sampling n pixels.
func New(n int) *Detector {
	return &Detector{SampleSize: n}
}

// IsGrayscale classifies the file at path using the default sample size.
func IsGrayscale(path string) bool {
	return New(config.DefaultSampleSize).IsGrayscale(path)
}

// IsGrayscale reports whether the image at path is grayscale.
// An image that cannot be opened or decoded is logged and reported as color, so that
// callers never discard a file they could not read.
func (d *Detector) IsGrayscale(path string) bool {
	img, err := decode(path)
	if err != nil {
		log.WithFields(log.Fields{"path": path, "error": err}).Warn("Error processing image")
		return false
	}
	return d.Image(img)
}

// Image reports whether the sampled pixels of img are all gray.
func (d *Detector) Image(img image.Image) bool {
	limit := d.SampleSize
	if limit < 1 {
		limit = config.DefaultSampleSize
	}

	bounds := img.Bounds()
	sampled := 0
	for y := bounds.Min.Y; y < bounds.Max.Y && sampled < limit; y++ {
		for x := bounds.Min.X; x < bounds.Max.X && sampled < limit; x++ {
			r, g, b := rgb(img.At(x, y))
			if r != g || g != b {
				return false
			}
			sampled++
		}
	}

	return true
}

func decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	// The GIF decoder blanks the transparent palette entry; restore the stored color.
	if p, ok := img.(*image.Paletted); ok && format == "gif" {
		stored, err := gifPalette(data)
		if err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).Debug("Error reading GIF color table")
			return img, nil
		}
		for i := 0; i < len(p.Palette) && i < len(stored); i++ {
			p.Palette[i] = stored[i]
		}
	}

	return img, nil
}

// rgb converts c to 8-bit RGB without alpha premultiplication, which is what a plain
// RGB conversion of the source pixel yields: alpha is dropped, not blended.
func rgb(c color.Color) (r, g, b uint8) {
	switch c := c.(type) {
	case color.Gray:
		return c.Y, c.Y, c.Y
	case color.Gray16:
		y := uint8(c.Y >> 8)
		return y, y, y
	case color.NRGBA:
		return c.R, c.G, c.B
	case color.NRGBA64:
		return uint8(c.R >> 8), uint8(c.G >> 8), uint8(c.B >> 8)
	}

	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}
