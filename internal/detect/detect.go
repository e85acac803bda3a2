// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package detect finds how much of a label page carries the label itself.
// Mondial Relay and InPost sheets print the label on the left and
// instructions on the right, separated by a blank vertical band; the
// detector renders each page and looks for the first wide blank band after
// some content.
package detect

import (
	"fmt"
	"image"
	"math"

	"github.com/gen2brain/go-fitz"
)

// Defaults for Options fields left at zero.
const (
	DefaultDPI       = 150.0
	DefaultThreshold = 245
	DefaultGapPx     = 25.0
	DefaultMinRatio  = 0.45
)

// Options tunes the column scan.
type Options struct {
	// DPI is the rendering resolution. Gap and margin are measured in
	// pixels at this resolution.
	DPI float64

	// MinRatio is the smallest ratio returned.
	MinRatio float64

	// Threshold is the gray level below which a pixel counts as dark.
	Threshold uint8

	// BlankRatio is the fraction of dark pixels a column may hold and
	// still count as blank.
	BlankRatio float64

	// GapPx is the number of consecutive blank columns that marks the cut.
	GapPx float64

	// MarginPx is added to the right of the cut.
	MarginPx float64
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.GapPx <= 0 {
		o.GapPx = DefaultGapPx
	}
	if o.MinRatio <= 0 {
		o.MinRatio = DefaultMinRatio
	}
	return o
}

// ScanLeftRatio scans img column by column from the left. Once a dark
// column has been seen, the first run of GapPx blank columns ends the label;
// the returned ratio is (start of run + MarginPx) / width, clamped to
// [MinRatio, 1]. An image without such a run yields 1.
func ScanLeftRatio(img image.Image, opts Options) float64 {
	opts = opts.withDefaults()

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return 1
	}

	gray := grayLevels(img)
	runNeeded := int(math.Max(1, opts.GapPx))
	blankLimit := int(float64(height) * math.Max(0, opts.BlankRatio))

	blanks := 0
	seenContent := false
	blankStart := width
	for x := 0; x < width; x++ {
		dark := 0
		for y := 0; y < height; y++ {
			if gray[y*width+x] < opts.Threshold {
				dark++
			}
		}

		if dark > blankLimit {
			seenContent = true
			blanks = 0
			continue
		}
		if !seenContent {
			continue
		}
		if blanks == 0 {
			blankStart = x
		}
		blanks++
		if blanks >= runNeeded {
			cut := min(width, blankStart+int(opts.MarginPx))
			ratio := float64(cut) / float64(width)
			return math.Max(opts.MinRatio, math.Min(1, ratio))
		}
	}
	return 1
}

// grayLevels returns the 8-bit luma of every pixel in row-major order.
func grayLevels(img image.Image) []uint8 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	out := make([]uint8, width*height)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out[y*width:], src.Pix[off:off+width])
		}
	case *image.RGBA:
		for y := 0; y < height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < width; x++ {
				r, g, bl := uint32(row[4*x]), uint32(row[4*x+1]), uint32(row[4*x+2])
				out[y*width+x] = uint8((299*r + 587*g + 114*bl) / 1000)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out[y*width+x] = uint8((299*r + 587*g + 114*bl) / 1000 >> 8)
			}
		}
	}
	return out
}

// Fitz renders pages with MuPDF through go-fitz.
type Fitz struct{}

// LeftRatios renders every page of the PDF in data and returns one ratio per
// page.
func (Fitz) LeftRatios(data []byte, opts Options) ([]float64, error) {
	opts = opts.withDefaults()

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening document for detection: %w", err)
	}
	defer doc.Close()

	ratios := make([]float64, doc.NumPage())
	for i := range ratios {
		img, err := doc.ImageDPI(i, opts.DPI)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", i+1, err)
		}
		ratios[i] = ScanLeftRatio(img, opts)
	}
	return ratios, nil
}
