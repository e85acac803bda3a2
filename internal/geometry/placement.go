// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package geometry

import (
	"fmt"
	"math"

	"github.com/pdiddy/label-converter/pkg/types"
)

// Placement is the outcome of fitting content of a given size into a target
// rectangle.
type Placement struct {
	// Target is the rectangle the content was fitted to.
	Target Rect
	// Dest is where the scaled content lands. It may extend past Target
	// for cover, zoomed or offset content.
	Dest Rect
	// ScaleX and ScaleY map content units onto Dest.
	ScaleX, ScaleY float64
	// Clip is the visible part of Dest: Dest intersected with Target
	// widened horizontally by the configured bleed.
	Clip Rect
}

// Place fits content of size (w, h) into target according to the fit mode,
// zoom and alignment settings of cfg.
func Place(w, h float64, target Rect, cfg types.ConversionConfig) (Placement, error) {
	if !(w > 0) || !(h > 0) {
		return Placement{}, fmt.Errorf("%w: source area %.2fx%.2f is degenerate", types.ErrInvalidDocument, w, h)
	}
	if target.Empty() {
		return Placement{}, fmt.Errorf("%w: target area %s is degenerate", types.ErrInvalidConfiguration, target)
	}

	tw, th := target.Width(), target.Height()
	ws, hs := tw/w, th/h
	zoom := cfg.EffectiveZoom()

	var sx, sy float64
	switch cfg.Fit {
	case types.FitStretch:
		sx, sy = ws*zoom, hs*zoom
	case types.FitCover:
		sx = math.Max(ws, hs) * zoom
		sy = sx
	case types.FitContain:
		sx = math.Min(ws, hs) * zoom
		sy = sx
	default:
		return Placement{}, fmt.Errorf("%w: unknown fit mode %q", types.ErrInvalidConfiguration, cfg.Fit)
	}

	nw, nh := w*sx, h*sy

	var x0 float64
	switch cfg.HAlign {
	case types.HAlignLeft:
		x0 = target.LLX
	case types.HAlignRight:
		x0 = target.URX - nw
	case types.HAlignAuto:
		if nw <= tw {
			x0 = target.LLX + (tw-nw)/2
		} else {
			x0 = target.LLX
		}
	default:
		x0 = target.LLX + (tw-nw)/2
	}
	x0 += cfg.HAlignOffset

	// Keep content inside the bleed band when it can fit there at all.
	bleed := cfg.HAlignBleed
	if nw <= tw+2*bleed {
		minX := target.LLX - bleed
		maxX := target.URX - nw + bleed
		x0 = math.Max(minX, math.Min(maxX, x0))
	}

	var y0 float64
	switch cfg.VAlign {
	case types.VAlignTop:
		y0 = target.URY - nh
	case types.VAlignBottom:
		y0 = target.LLY
	default:
		y0 = target.LLY + (th-nh)/2
	}

	dest := RectWH(x0, y0, nw, nh)
	visible := Rect{LLX: target.LLX - bleed, LLY: target.LLY, URX: target.URX + bleed, URY: target.URY}

	return Placement{
		Target: target,
		Dest:   dest,
		ScaleX: sx,
		ScaleY: sy,
		Clip:   dest.Intersect(visible),
	}, nil
}

// Source describes the part of a source page that is drawn.
type Source struct {
	// Box is the page's CropBox (or MediaBox) in its own user space.
	Box Rect
	// Rotate is the page's /Rotate entry, clockwise degrees.
	Rotate int
	// KeepRatio is the fraction of the displayed width kept from the left
	// edge, in (0, 1].
	KeepRatio float64
}

// DisplaySize returns the page size as a viewer shows it, after /Rotate.
func (s Source) DisplaySize() (float64, float64) {
	if quarterTurn(s.Rotate) {
		return s.Box.Height(), s.Box.Width()
	}
	return s.Box.Width(), s.Box.Height()
}

// Transform is a complete mapping of one source page onto an output page.
type Transform struct {
	Placement
	// Matrix maps source user space onto output page space.
	Matrix Matrix
}

// Fit computes the transform that draws src into target after rotating it
// clockwise by rotate degrees.
func Fit(src Source, target Rect, rotate int, cfg types.ConversionConfig) (Transform, error) {
	bw, bh := src.Box.Width(), src.Box.Height()
	if !(bw > 0) || !(bh > 0) {
		return Transform{}, fmt.Errorf("%w: page box %s has zero area", types.ErrInvalidDocument, src.Box)
	}
	ratio := src.KeepRatio
	if !(ratio > 0) || ratio > 1 {
		return Transform{}, fmt.Errorf("%w: keep ratio %v outside (0, 1]", types.ErrInvalidConfiguration, ratio)
	}

	// Source user space to the displayed page at the origin.
	m := Translate(-src.Box.LLX, -src.Box.LLY).Then(Rotation(src.Rotate, bw, bh))
	dw, dh := src.DisplaySize()

	// Kept region [0,keepW]x[0,dh] rotated onto [0,sw]x[0,sh].
	keepW := dw * ratio
	m = m.Then(Rotation(rotate, keepW, dh))
	sw, sh := keepW, dh
	if quarterTurn(rotate) {
		sw, sh = dh, keepW
	}

	p, err := Place(sw, sh, target, cfg)
	if err != nil {
		return Transform{}, err
	}

	m = m.Then(Scale(p.ScaleX, p.ScaleY)).Then(Translate(p.Dest.LLX, p.Dest.LLY))
	return Transform{Placement: p, Matrix: m}, nil
}

// TargetPage returns the output page size for a source page displayed at
// (dw, dh). A derived page follows the source page, turned when rotate is a
// quarter turn; presets are portrait. Both are multiplied by cfg.Scale.
func TargetPage(dw, dh float64, rotate int, cfg types.ConversionConfig) (types.PageSize, error) {
	var base types.PageSize
	if cfg.DerivesPage() {
		if !(dw > 0) || !(dh > 0) {
			return types.PageSize{}, fmt.Errorf("%w: page size %.2fx%.2f is degenerate", types.ErrInvalidDocument, dw, dh)
		}
		base = types.PageSize{Width: dw, Height: dh}
		if quarterTurn(rotate) {
			base = types.PageSize{Width: dh, Height: dw}
		}
	} else {
		size, err := types.ParsePageSize(cfg.Page)
		if err != nil {
			return types.PageSize{}, err
		}
		base = size.Portrait()
	}
	return types.PageSize{Width: base.Width * cfg.Scale, Height: base.Height * cfg.Scale}, nil
}

// Slots splits the printable area of a page into n equal rectangles stacked
// from top to bottom, separated by gap.
func Slots(page types.PageSize, margin float64, n int, gap float64) ([]Rect, error) {
	area := RectWH(0, 0, page.Width, page.Height).Inset(margin)
	if area.Empty() {
		return nil, fmt.Errorf("%w: margin %v leaves no printable area on %s", types.ErrInvalidConfiguration, margin, page)
	}
	if n <= 1 {
		return []Rect{area}, nil
	}
	slotH := (area.Height() - gap*float64(n-1)) / float64(n)
	if !(slotH > 0) {
		return nil, fmt.Errorf("%w: %d slots do not fit on %s", types.ErrInvalidConfiguration, n, page)
	}
	slots := make([]Rect, n)
	top := area.URY
	for i := range slots {
		slots[i] = Rect{LLX: area.LLX, LLY: top - slotH, URX: area.URX, URY: top}
		top -= slotH + gap
	}
	return slots, nil
}
