package grayscale

import (
	"errors"
	"fmt"
	"image/color"
)

var errMalformedGIF = errors.New("malformed GIF")

// GIF block markers.
const (
	gifExtension  = 0x21
	gifImage      = 0x2C
	gifTrailer    = 0x3B
	gifHeaderLen  = 13
	gifImageLen   = 10
	gifTableFlag  = 0x80
	gifTableSizes = 0x07
)

// gifPalette returns the color table of the first frame exactly as stored in the file:
// the frame's local table if it has one, otherwise the global table.
func gifPalette(data []byte) (color.Palette, error) {
	if len(data) < gifHeaderLen || string(data[:3]) != "GIF" {
		return nil, fmt.Errorf("%w: bad header", errMalformedGIF)
	}

	pos := gifHeaderLen
	var global color.Palette
	if flags := data[10]; flags&gifTableFlag != 0 {
		var err error
		if global, pos, err = readColorTable(data, pos, flags); err != nil {
			return nil, err
		}
	}

	for pos < len(data) {
		switch data[pos] {
		case gifExtension:
			pos += 2
			for {
				if pos >= len(data) {
					return nil, fmt.Errorf("%w: truncated extension", errMalformedGIF)
				}
				size := int(data[pos])
				pos += 1 + size
				if size == 0 {
					break
				}
			}
		case gifImage:
			if pos+gifImageLen > len(data) {
				return nil, fmt.Errorf("%w: truncated image descriptor", errMalformedGIF)
			}
			flags := data[pos+gifImageLen-1]
			if flags&gifTableFlag != 0 {
				local, _, err := readColorTable(data, pos+gifImageLen, flags)
				return local, err
			}
			if global == nil {
				return nil, fmt.Errorf("%w: no color table", errMalformedGIF)
			}
			return global, nil
		case gifTrailer:
			return nil, fmt.Errorf("%w: no image", errMalformedGIF)
		default:
			return nil, fmt.Errorf("%w: unknown block 0x%02x", errMalformedGIF, data[pos])
		}
	}

	return nil, fmt.Errorf("%w: no image", errMalformedGIF)
}

func readColorTable(data []byte, pos int, flags byte) (color.Palette, int, error) {
	n := 1 << (flags&gifTableSizes + 1)
	end := pos + 3*n
	if end > len(data) {
		return nil, pos, fmt.Errorf("%w: truncated color table", errMalformedGIF)
	}

	p := make(color.Palette, n)
	for i := range p {
		c := data[pos+3*i:]
		p[i] = color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
	}
	return p, end, nil
}
