// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/label-converter/internal/detect"
	"github.com/pdiddy/label-converter/internal/testpdf"
	"github.com/pdiddy/label-converter/pkg/types"
)

// pageDelta tolerates the rounding of boxes written by the PDF encoder.
const pageDelta = 0.01

// fakeDetector returns canned ratios or an error.
type fakeDetector struct {
	ratios []float64
	err    error
	calls  int
}

func (f *fakeDetector) LeftRatios(data []byte, opts detect.Options) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ratios, nil
}

func newTestConverter(ratios ...float64) *Converter {
	return New(WithDetector(&fakeDetector{ratios: ratios}))
}

func inspect(t *testing.T, c *Converter, data []byte) []types.PageInfo {
	t.Helper()
	pages, err := c.Inspect(data)
	require.NoError(t, err)
	return pages
}

func TestConvert_PageSizes(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		cfg       types.ConversionConfig
		wantPages int
		wantW     float64
		wantH     float64
	}{
		{
			name:      "stretch at scale 2 doubles a square page",
			input:     testpdf.Square(100),
			cfg:       types.ConversionConfig{Scale: 2, Fit: types.FitStretch},
			wantPages: 1, wantW: 200, wantH: 200,
		},
		{
			name:      "default config keeps the source size",
			input:     testpdf.Pages(1, 300, 200),
			cfg:       types.DefaultConfig(),
			wantPages: 1, wantW: 300, wantH: 200,
		},
		{
			name:      "preset page is portrait",
			input:     testpdf.Pages(1, 300, 200),
			cfg:       types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "a4"},
			wantPages: 1, wantW: 595.276, wantH: 841.89,
		},
		{
			name:      "preset page is multiplied by scale",
			input:     testpdf.Square(100),
			cfg:       types.ConversionConfig{Scale: 0.5, Fit: types.FitCover, Page: "letter"},
			wantPages: 1, wantW: 306, wantH: 396,
		},
		{
			name:      "explicit page size",
			input:     testpdf.Square(100),
			cfg:       types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "288x432"},
			wantPages: 1, wantW: 288, wantH: 432,
		},
		{
			name:      "quarter turn swaps a derived page",
			input:     testpdf.Pages(1, 200, 100),
			cfg:       types.ConversionConfig{Scale: 1, Fit: types.FitContain, Rotate: 90},
			wantPages: 1, wantW: 100, wantH: 200,
		},
		{
			name:      "page rotation is honored",
			input:     testpdf.Build(testpdf.Page{Width: 200, Height: 100, Rotate: 270}),
			cfg:       types.DefaultConfig(),
			wantPages: 1, wantW: 100, wantH: 200,
		},
		{
			name:      "offset media box",
			input:     testpdf.Build(testpdf.Page{Width: 120, Height: 80, OriginX: 50, OriginY: -30}),
			cfg:       types.ConversionConfig{Scale: 1.5, Fit: types.FitStretch},
			wantPages: 1, wantW: 180, wantH: 120,
		},
		{
			name:      "every page is converted",
			input:     testpdf.Pages(3, 100, 150),
			cfg:       types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "a6", Margin: 10},
			wantPages: 3, wantW: 297.638, wantH: 419.528,
		},
		{
			name:      "two-up halves the page count",
			input:     testpdf.Pages(3, 200, 100),
			cfg:       types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "a4", Margin: 12, Layout: types.LayoutTwoUp},
			wantPages: 2, wantW: 595.276, wantH: 841.89,
		},
		{
			name:      "debug boxes do not change geometry",
			input:     testpdf.Square(100),
			cfg:       types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "a5", DebugBoxes: true},
			wantPages: 1, wantW: 419.528, wantH: 595.276,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConverter()
			res, err := c.Convert(tt.input, tt.cfg)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPages, res.PagesOut)
			assert.True(t, IsPDF(res.PDF))

			pages := inspect(t, c, res.PDF)
			require.Len(t, pages, tt.wantPages)
			for _, p := range pages {
				assert.InDelta(t, tt.wantW, p.Width, pageDelta, "page %d width", p.Number)
				assert.InDelta(t, tt.wantH, p.Height, pageDelta, "page %d height", p.Number)
				assert.Zero(t, p.Rotate, "output pages are not rotated")
			}
		})
	}
}

func TestConvert_Idempotent(t *testing.T) {
	c := newTestConverter()
	cfg := types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "a4", Margin: 12}

	once, err := c.Convert(testpdf.Pages(2, 283, 425), cfg)
	require.NoError(t, err)
	twice, err := c.Convert(once.PDF, cfg)
	require.NoError(t, err)

	first := inspect(t, c, once.PDF)
	second := inspect(t, c, twice.PDF)
	require.Len(t, second, len(first))
	for i := range first {
		assert.InDelta(t, first[i].Width, second[i].Width, pageDelta)
		assert.InDelta(t, first[i].Height, second[i].Height, pageDelta)
	}
}

func TestConvert_InvalidDocument(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"text file", []byte("hello, this is not a PDF\n")},
		{"png header", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
		{"header only", []byte("%PDF-1.4\n%%EOF\n")},
		{"truncated", testpdf.Square(100)[:120]},
		{"truncated object", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n3 0 obj\n<< /Type /Pa")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestConverter().Convert(tt.input, types.DefaultConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidDocument), "got %v", err)
		})
	}
}

func TestConvert_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ConversionConfig
	}{
		{"zero scale", types.ConversionConfig{Scale: 0, Fit: types.FitContain}},
		{"negative scale", types.ConversionConfig{Scale: -1, Fit: types.FitContain}},
		{"NaN scale", types.ConversionConfig{Scale: math.NaN(), Fit: types.FitContain}},
		{"unknown fit", types.ConversionConfig{Scale: 1, Fit: "zoom"}},
		{"odd rotation", types.ConversionConfig{Scale: 1, Fit: types.FitContain, Rotate: 45}},
		{"unknown page", types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "b5"}},
		{"margin larger than page", types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "4x6", Margin: 200}},
		{"margin larger than derived page", types.ConversionConfig{Scale: 1, Fit: types.FitContain, Margin: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestConverter().Convert(testpdf.Square(100), tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestConvert_InvalidConfigurationBeforeParsing(t *testing.T) {
	_, err := newTestConverter().Convert([]byte("not a pdf"), types.ConversionConfig{Fit: types.FitContain})
	assert.True(t, errors.Is(err, types.ErrInvalidConfiguration), "got %v", err)
}

func TestConvert_AutoLeft(t *testing.T) {
	det := &fakeDetector{ratios: []float64{0.5}}
	c := New(WithDetector(det))

	cfg := types.DefaultConfig()
	cfg.AutoLeft = true

	res, err := c.Convert(testpdf.Pages(1, 200, 100), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, det.calls)

	pages := inspect(t, c, res.PDF)
	require.Len(t, pages, 1)
	assert.InDelta(t, 100, pages[0].Width, pageDelta, "derived page follows the kept width")
	assert.InDelta(t, 100, pages[0].Height, pageDelta)
}

func TestConvert_AutoLeftNotCalledWhenDisabled(t *testing.T) {
	det := &fakeDetector{ratios: []float64{0.5}}
	_, err := New(WithDetector(det)).Convert(testpdf.Square(100), types.DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, det.calls)
}

func TestConvert_AutoLeftFailures(t *testing.T) {
	tests := []struct {
		name string
		det  *fakeDetector
	}{
		{"detector error", &fakeDetector{err: errors.New("render failed")}},
		{"page count mismatch", &fakeDetector{ratios: []float64{0.5, 0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConfig()
			cfg.AutoLeft = true
			_, err := New(WithDetector(tt.det)).Convert(testpdf.Square(100), cfg)
			assert.True(t, errors.Is(err, types.ErrInvalidDocument), "got %v", err)
		})
	}
}

func TestConvert_OutOfRangeRatioKeepsWholePage(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.AutoLeft = true
	c := newTestConverter(1.7)

	res, err := c.Convert(testpdf.Pages(1, 200, 100), cfg)
	require.NoError(t, err)
	pages := inspect(t, c, res.PDF)
	assert.InDelta(t, 200, pages[0].Width, pageDelta)
}

func TestCombine(t *testing.T) {
	c := newTestConverter()
	cfg := types.ConversionConfig{Scale: 1, Fit: types.FitContain, Page: "a4", Margin: 12}

	res, err := c.Combine([][]byte{testpdf.Square(100), testpdf.Pages(2, 200, 100)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PagesIn)
	assert.Equal(t, 2, res.PagesOut)

	_, err = c.Combine(nil, cfg)
	assert.True(t, errors.Is(err, types.ErrInvalidDocument))

	_, err = c.Combine([][]byte{testpdf.Square(100), []byte("nope")}, cfg)
	assert.True(t, errors.Is(err, types.ErrInvalidDocument))
}

func TestInspect(t *testing.T) {
	doc := testpdf.Build(
		testpdf.Page{Width: 300, Height: 200},
		testpdf.Page{Width: 300, Height: 200, Rotate: 90},
		testpdf.Page{Width: 100, Height: 100, Rotate: -90},
	)
	pages := inspect(t, newTestConverter(), doc)
	require.Len(t, pages, 3)

	assert.Equal(t, types.PageInfo{Number: 1, Width: 300, Height: 200}, pages[0])
	assert.Equal(t, types.PageInfo{Number: 2, Width: 200, Height: 300, Rotate: 90}, pages[1])
	assert.Equal(t, 270, pages[2].Rotate)
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"header", []byte("%PDF-1.7\n"), true},
		{"leading garbage", append([]byte("junk\n"), []byte("%PDF-1.4")...), true},
		{"header too late", append(bytes.Repeat([]byte{' '}, 2000), []byte("%PDF-1.4")...), false},
		{"text", []byte("plain text"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDF(tt.data))
		})
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "label.pdf")
	require.NoError(t, os.WriteFile(in, testpdf.Square(100), 0o644))

	out := filepath.Join(dir, "nested", "out", "label.pdf")
	c := newTestConverter()
	res, err := c.ConvertFile(in, out, types.ConversionConfig{Scale: 2, Fit: types.FitStretch})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesOut)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	pages := inspect(t, c, data)
	assert.InDelta(t, 200, pages[0].Width, pageDelta)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestConvertFile_Errors(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "renamed.pdf")
	require.NoError(t, os.WriteFile(text, []byte("just text"), 0o644))

	tests := []struct {
		name    string
		input   string
		cfg     types.ConversionConfig
		wantErr error
	}{
		{"missing input", filepath.Join(dir, "missing.pdf"), types.DefaultConfig(), types.ErrIOFailure},
		{"text renamed to pdf", text, types.DefaultConfig(), types.ErrInvalidDocument},
		{"bad scale", text, types.ConversionConfig{Scale: -2, Fit: types.FitContain}, types.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, "out", strings.ReplaceAll(tt.name, " ", "-")+".pdf")
			err := ConvertFile(tt.input, out, tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "no output on failure")
		})
	}
}

func TestConvertFile_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "label.pdf")
	require.NoError(t, os.WriteFile(in, testpdf.Square(100), 0o644))

	// A regular file where the output directory should be.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := newTestConverter().ConvertFile(in, filepath.Join(blocker, "out.pdf"), types.DefaultConfig())
	assert.True(t, errors.Is(err, types.ErrIOFailure), "got %v", err)
}

func TestConvertPaths(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	good := filepath.Join(dir, "a.pdf")
	existing := filepath.Join(dir, "b.pdf")
	bad := filepath.Join(dir, "c.pdf")
	require.NoError(t, os.WriteFile(good, testpdf.Square(100), 0o644))
	require.NoError(t, os.WriteFile(existing, testpdf.Square(100), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(OutputPath(existing, outDir), []byte("old"), 0o644))

	var log bytes.Buffer
	result := newTestConverter().ConvertPaths([]string{good, existing, bad}, outDir, types.DefaultConfig(), false, &log)

	assert.Equal(t, BatchResult{Converted: 1, Skipped: 1, Failed: 1}, result)
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())

	out := log.String()
	assert.Contains(t, out, "converted: a.pdf")
	assert.Contains(t, out, "skipped: b.pdf")
	assert.Contains(t, out, "failed:  c.pdf")
	assert.Contains(t, out, "Batch summary: 1 converted, 1 skipped, 1 failed (total: 3)")

	_, err := os.Stat(filepath.Join(outDir, "a-converted.pdf"))
	assert.NoError(t, err)
}

func TestConvertPaths_Overwrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(in, testpdf.Square(100), 0o644))
	require.NoError(t, os.WriteFile(OutputPath(in, dir), []byte("old"), 0o644))

	var log bytes.Buffer
	result := newTestConverter().ConvertPaths([]string{in}, dir, types.DefaultConfig(), true, &log)
	assert.Equal(t, BatchResult{Converted: 1}, result)

	data, err := os.ReadFile(OutputPath(in, dir))
	require.NoError(t, err)
	assert.True(t, IsPDF(data))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "label-converted.pdf"), OutputPath("/tmp/in/label.pdf", "out"))
	assert.Equal(t, filepath.Join("out", "scan-converted.pdf"), OutputPath("scan", "out"))
}
