// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/label-converter/pkg/types"
)

const eps = 1e-9

func cfgFor(fit types.FitMode) types.ConversionConfig {
	return types.ConversionConfig{Scale: 1, Fit: fit}
}

func TestPlace_Stretch(t *testing.T) {
	target := RectWH(0, 0, 200, 300)
	p, err := Place(100, 100, target, cfgFor(types.FitStretch))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, p.ScaleX, eps)
	assert.InDelta(t, 3.0, p.ScaleY, eps)
	assert.Equal(t, target, p.Dest)
	assert.Equal(t, target, p.Clip)
}

func TestPlace_ContainLetterboxesAndCenters(t *testing.T) {
	target := RectWH(10, 10, 200, 100)
	p, err := Place(50, 50, target, cfgFor(types.FitContain))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, p.ScaleX, eps)
	assert.InDelta(t, p.ScaleX, p.ScaleY, eps)
	assert.InDelta(t, 100.0, p.Dest.Width(), eps)
	assert.InDelta(t, 100.0, p.Dest.Height(), eps)
	// Centered horizontally: 50pt of letterbox on each side.
	assert.InDelta(t, 60.0, p.Dest.LLX, eps)
	assert.InDelta(t, 10.0, p.Dest.LLY, eps)
	assert.True(t, target.Contains(p.Dest, eps))
}

func TestPlace_CoverFillsAndCrops(t *testing.T) {
	target := RectWH(0, 0, 200, 100)
	p, err := Place(50, 50, target, cfgFor(types.FitCover))
	require.NoError(t, err)

	assert.InDelta(t, 4.0, p.ScaleX, eps)
	assert.InDelta(t, 200.0, p.Dest.Width(), eps)
	assert.InDelta(t, 200.0, p.Dest.Height(), eps)
	// Centered vertically, overflowing by 50pt above and below.
	assert.InDelta(t, -50.0, p.Dest.LLY, eps)
	assert.True(t, p.Dest.Contains(target, eps))
	assert.Equal(t, target, p.Clip)
}

func TestPlace_ContainProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		w := 1 + rng.Float64()*1000
		h := 1 + rng.Float64()*1000
		target := RectWH(rng.Float64()*50, rng.Float64()*50, 1+rng.Float64()*1000, 1+rng.Float64()*1000)

		p, err := Place(w, h, target, cfgFor(types.FitContain))
		require.NoError(t, err)

		tol := 1e-6 * math.Max(target.Width(), target.Height())
		require.True(t, target.Contains(p.Dest, tol), "dest %s escapes target %s", p.Dest, target)
		widthMatches := math.Abs(p.Dest.Width()-target.Width()) <= tol
		heightMatches := math.Abs(p.Dest.Height()-target.Height()) <= tol
		require.True(t, widthMatches || heightMatches, "no side of %s matches %s", p.Dest, target)
	}
}

func TestPlace_StretchProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		w := 1 + rng.Float64()*500
		h := 1 + rng.Float64()*500
		target := RectWH(0, 0, 1+rng.Float64()*900, 1+rng.Float64()*900)

		p, err := Place(w, h, target, cfgFor(types.FitStretch))
		require.NoError(t, err)
		require.InDelta(t, target.Width(), p.Dest.Width(), 1e-6)
		require.InDelta(t, target.Height(), p.Dest.Height(), 1e-6)
	}
}

func TestPlace_Alignment(t *testing.T) {
	target := RectWH(0, 0, 300, 100)
	tests := []struct {
		name   string
		halign types.HAlign
		valign types.VAlign
		offset float64
		wantX  float64
		wantY  float64
	}{
		{name: "default centers", wantX: 100, wantY: 0},
		{name: "left", halign: types.HAlignLeft, wantX: 0},
		{name: "right", halign: types.HAlignRight, wantX: 200},
		{name: "auto centers when content fits", halign: types.HAlignAuto, wantX: 100},
		{name: "offset moves content", halign: types.HAlignCenter, offset: -6, wantX: 94},
		{name: "offset is clamped at the target edge", halign: types.HAlignLeft, offset: -6, wantX: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cfgFor(types.FitContain)
			cfg.HAlign = tt.halign
			cfg.VAlign = tt.valign
			cfg.HAlignOffset = tt.offset
			p, err := Place(100, 100, target, cfg)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantX, p.Dest.LLX, eps)
			assert.InDelta(t, tt.wantY, p.Dest.LLY, eps)
		})
	}
}

func TestPlace_VerticalAlignment(t *testing.T) {
	target := RectWH(0, 0, 100, 300)
	tests := []struct {
		valign types.VAlign
		wantY  float64
	}{
		{types.VAlignTop, 200},
		{types.VAlignCenter, 100},
		{types.VAlignBottom, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.valign), func(t *testing.T) {
			cfg := cfgFor(types.FitContain)
			cfg.VAlign = tt.valign
			p, err := Place(100, 100, target, cfg)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantY, p.Dest.LLY, eps)
		})
	}
}

func TestPlace_AutoSticksLeftOnOverflowAndBleeds(t *testing.T) {
	target := RectWH(12, 12, 100, 100)
	cfg := cfgFor(types.FitContain)
	cfg.Zoom = 1.2
	cfg.HAlign = types.HAlignAuto
	cfg.HAlignOffset = -6
	cfg.HAlignBleed = 30

	p, err := Place(100, 100, target, cfg)
	require.NoError(t, err)

	// 120pt wide content in a 100pt target fits the 160pt bleed band, so the
	// offset applies and stays within it.
	assert.InDelta(t, 6.0, p.Dest.LLX, eps)
	assert.InDelta(t, 6.0, p.Clip.LLX, eps)
	assert.InDelta(t, 112.0, p.Clip.URY, eps)
}

func TestPlace_Errors(t *testing.T) {
	_, err := Place(0, 10, RectWH(0, 0, 10, 10), cfgFor(types.FitContain))
	assert.ErrorIs(t, err, types.ErrInvalidDocument)

	_, err = Place(10, 10, RectWH(0, 0, 0, 10), cfgFor(types.FitContain))
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, err = Place(10, 10, RectWH(0, 0, 10, 10), cfgFor("squash"))
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestFit_RotationMapsCorners(t *testing.T) {
	// A 200x100 landscape page rotated a quarter turn into a 100x200 target.
	src := Source{Box: RectWH(0, 0, 200, 100), KeepRatio: 1}
	target := RectWH(0, 0, 100, 200)

	tr, err := Fit(src, target, 90, cfgFor(types.FitStretch))
	require.NoError(t, err)

	got := tr.Matrix.TransformRect(src.Box)
	assert.InDelta(t, 0, got.LLX, eps)
	assert.InDelta(t, 0, got.LLY, eps)
	assert.InDelta(t, 100, got.URX, eps)
	assert.InDelta(t, 200, got.URY, eps)

	// Clockwise: the top-left source corner ends up top-right.
	x, y := tr.Matrix.Apply(0, 100)
	assert.InDelta(t, 100, x, eps)
	assert.InDelta(t, 200, y, eps)
}

func TestFit_KeepRatioClipsLeftPart(t *testing.T) {
	src := Source{Box: RectWH(0, 0, 200, 100), KeepRatio: 0.5}
	target := RectWH(0, 0, 100, 100)

	tr, err := Fit(src, target, 0, cfgFor(types.FitContain))
	require.NoError(t, err)

	// Only the left 100pt is fitted, so the scale stays 1.
	assert.InDelta(t, 1.0, tr.ScaleX, eps)
	x, _ := tr.Matrix.Apply(100, 0)
	assert.InDelta(t, 100, x, eps)
	assert.Equal(t, target, tr.Clip)
}

func TestFit_HonoursPageRotateAndOffsetBox(t *testing.T) {
	// MediaBox starting away from the origin, displayed rotated by /Rotate 90.
	src := Source{Box: Rect{LLX: 50, LLY: 50, URX: 150, URY: 250}, Rotate: 90, KeepRatio: 1}
	dw, dh := src.DisplaySize()
	assert.Equal(t, 200.0, dw)
	assert.Equal(t, 100.0, dh)

	tr, err := Fit(src, RectWH(0, 0, 200, 100), 0, cfgFor(types.FitStretch))
	require.NoError(t, err)

	got := tr.Matrix.TransformRect(src.Box)
	assert.InDelta(t, 0, got.LLX, eps)
	assert.InDelta(t, 0, got.LLY, eps)
	assert.InDelta(t, 200, got.URX, eps)
	assert.InDelta(t, 100, got.URY, eps)
}

func TestFit_DegenerateBox(t *testing.T) {
	_, err := Fit(Source{Box: RectWH(0, 0, 0, 100), KeepRatio: 1}, RectWH(0, 0, 10, 10), 0, cfgFor(types.FitContain))
	assert.ErrorIs(t, err, types.ErrInvalidDocument)
}

func TestTargetPage(t *testing.T) {
	tests := []struct {
		name   string
		cfg    types.ConversionConfig
		rotate int
		want   types.PageSize
	}{
		{
			name: "derived page scaled",
			cfg:  types.ConversionConfig{Scale: 2, Fit: types.FitStretch},
			want: types.PageSize{Width: 200, Height: 200},
		},
		{
			name:   "derived page turned by quarter rotation",
			cfg:    types.ConversionConfig{Scale: 1, Fit: types.FitContain},
			rotate: 90,
			want:   types.PageSize{Width: 100, Height: 200},
		},
		{
			name: "preset forced portrait",
			cfg:  types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "842x595"},
			want: types.PageSize{Width: 595, Height: 842},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := 100.0, 100.0
			if tt.rotate != 0 {
				w, h = 200, 100
			}
			got, err := TargetPage(w, h, tt.rotate, tt.cfg)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Width, got.Width, eps)
			assert.InDelta(t, tt.want.Height, got.Height, eps)
		})
	}
}

func TestSlots(t *testing.T) {
	page := types.PageSize{Width: 200, Height: 400}

	slots, err := Slots(page, 10, 2, 10)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, Rect{LLX: 10, LLY: 205, URX: 190, URY: 390}, slots[0])
	assert.Equal(t, Rect{LLX: 10, LLY: 10, URX: 190, URY: 195}, slots[1])

	single, err := Slots(page, 0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Rect{RectWH(0, 0, 200, 400)}, single)

	_, err = Slots(page, 100, 1, 0)
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestMatrix_ThenComposesInOrder(t *testing.T) {
	m := Translate(10, 0).Then(Scale(2, 2))
	x, y := m.Apply(1, 1)
	assert.Equal(t, 22.0, x)
	assert.Equal(t, 2.0, y)

	x, y = Identity.Then(Rotation(180, 4, 2)).Apply(0, 0)
	assert.Equal(t, 4.0, x)
	assert.Equal(t, 2.0, y)
}
