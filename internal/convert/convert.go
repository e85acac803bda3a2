// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert reshapes label PDFs onto new pages. Each source page is
// wrapped into a form XObject and drawn through a single transformation
// matrix computed by package geometry; the rest of the document (fonts,
// images, vector content) is carried over untouched.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/label-converter/internal/detect"
	"github.com/pdiddy/label-converter/internal/geometry"
	"github.com/pdiddy/label-converter/pkg/types"
)

func init() {
	// Keep pdfcpu from creating a configuration directory under $HOME.
	pdfapi.DisableConfigDir()
}

// Detector estimates, per page, the fraction of the page width holding the
// label. detect.Fitz is the production implementation.
type Detector interface {
	LeftRatios(data []byte, opts detect.Options) ([]float64, error)
}

// Result is the outcome of one conversion.
type Result struct {
	// PDF is the encoded output document.
	PDF []byte

	PagesIn  int
	PagesOut int
}

// Converter converts label PDFs. The zero value is not usable; call New.
// A Converter holds no per-call state and may be shared between goroutines.
type Converter struct {
	detector Detector
	newConf  func() *model.Configuration
}

// Option customizes a Converter.
type Option func(*Converter)

// WithDetector replaces the label width detector.
func WithDetector(d Detector) Option {
	return func(c *Converter) { c.detector = d }
}

// New returns a Converter that detects label widths with MuPDF.
func New(opts ...Option) *Converter {
	c := &Converter{
		detector: detect.Fitz{},
		newConf:  pdfConfiguration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func pdfConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Convert validates cfg, parses data and returns the reshaped document.
// Errors wrap types.ErrInvalidConfiguration or types.ErrInvalidDocument.
func (c *Converter) Convert(data []byte, cfg types.ConversionConfig) (res *Result, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defer recoverMalformed(&err)

	src, err := c.read(data)
	if err != nil {
		return nil, err
	}

	ratios, err := c.keepRatios(data, src.PageCount, cfg)
	if err != nil {
		return nil, err
	}

	perPage := cfg.Layout.SlotsPerPage()
	var pages [][]byte
	for first := 1; first <= src.PageCount; first += perPage {
		group := make([]int, 0, perPage)
		for nr := first; nr < first+perPage && nr <= src.PageCount; nr++ {
			group = append(group, nr)
		}

		page, err := c.composePage(src, group, ratios, cfg)
		if err != nil {
			return nil, fmt.Errorf("output page %d: %w", len(pages)+1, err)
		}
		pages = append(pages, page)
	}

	out, err := c.merge(pages)
	if err != nil {
		return nil, err
	}
	return &Result{PDF: out, PagesIn: src.PageCount, PagesOut: len(pages)}, nil
}

// Combine concatenates several documents and lays them out two per page.
func (c *Converter) Combine(docs [][]byte, cfg types.ConversionConfig) (res *Result, err error) {
	defer recoverMalformed(&err)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: nothing to combine", types.ErrInvalidDocument)
	}
	for i, d := range docs {
		if !IsPDF(d) {
			return nil, fmt.Errorf("%w: document %d is not a PDF", types.ErrInvalidDocument, i+1)
		}
	}
	cfg.Layout = types.LayoutTwoUp

	data := docs[0]
	if len(docs) > 1 {
		readers := make([]io.ReadSeeker, len(docs))
		for i, d := range docs {
			readers[i] = bytes.NewReader(d)
		}
		var merged bytes.Buffer
		if err := pdfapi.MergeRaw(readers, &merged, false, c.newConf()); err != nil {
			return nil, fmt.Errorf("%w: merging inputs: %v", types.ErrInvalidDocument, err)
		}
		data = merged.Bytes()
	}
	return c.Convert(data, cfg)
}

// Inspect returns the displayed size and rotation of every page in data.
func (c *Converter) Inspect(data []byte) (infos []types.PageInfo, err error) {
	defer recoverMalformed(&err)
	ctx, err := c.read(data)
	if err != nil {
		return nil, err
	}
	infos = make([]types.PageInfo, ctx.PageCount)
	for i := range infos {
		src, err := pageSource(ctx, i+1)
		if err != nil {
			return nil, err
		}
		w, h := src.DisplaySize()
		infos[i] = types.PageInfo{Number: i + 1, Width: w, Height: h, Rotate: src.Rotate}
	}
	return infos, nil
}

// recoverMalformed turns a panic raised while parsing or rewriting a
// document into an error wrapping types.ErrInvalidDocument.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: malformed PDF: %v", types.ErrInvalidDocument, r)
	}
}

func (c *Converter) read(data []byte) (*model.Context, error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("%w: input is not a PDF", types.ErrInvalidDocument)
	}
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), c.newConf())
	if err != nil {
		if errors.Is(err, pdfcpu.ErrWrongPassword) {
			return nil, fmt.Errorf("%w: document is encrypted", types.ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidDocument, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: counting pages: %v", types.ErrInvalidDocument, err)
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", types.ErrInvalidDocument)
	}
	return ctx, nil
}

// keepRatios returns the kept width fraction for every page, 1-based index
// shifted to 0.
func (c *Converter) keepRatios(data []byte, pageCount int, cfg types.ConversionConfig) ([]float64, error) {
	ratios := make([]float64, pageCount)
	if !cfg.AutoLeft {
		for i := range ratios {
			ratios[i] = cfg.EffectiveLeftRatio()
		}
		return ratios, nil
	}

	detected, err := c.detector.LeftRatios(data, detect.Options{
		MinRatio: cfg.EffectiveAutoLeftMin(),
		GapPx:    cfg.EffectiveAutoLeftGap(),
		MarginPx: cfg.AutoLeftMargin,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: detecting label width: %v", types.ErrInvalidDocument, err)
	}
	if len(detected) != pageCount {
		return nil, fmt.Errorf("%w: detection saw %d pages, parser saw %d", types.ErrInvalidDocument, len(detected), pageCount)
	}
	for i, r := range detected {
		if !(r > 0) || r > 1 {
			r = 1
		}
		ratios[i] = r
	}
	return ratios, nil
}

func (c *Converter) merge(pages [][]byte) ([]byte, error) {
	if len(pages) == 1 {
		return pages[0], nil
	}
	readers := make([]io.ReadSeeker, len(pages))
	for i, p := range pages {
		readers[i] = bytes.NewReader(p)
	}
	var out bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &out, false, c.newConf()); err != nil {
		return nil, fmt.Errorf("merging output pages: %w", err)
	}
	return out.Bytes(), nil
}

// IsPDF reports whether data starts like a PDF file. The header may be
// preceded by up to 1024 bytes of garbage, as readers commonly allow.
func IsPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// pageSource returns the drawable region of page nr.
func pageSource(ctx *model.Context, nr int) (geometry.Source, error) {
	_, _, inh, err := ctx.PageDict(nr, false)
	if err != nil {
		return geometry.Source{}, fmt.Errorf("%w: reading page %d: %v", types.ErrInvalidDocument, nr, err)
	}
	box := inh.CropBox
	if box == nil {
		box = inh.MediaBox
	}
	if box == nil {
		return geometry.Source{}, fmt.Errorf("%w: page %d has no MediaBox", types.ErrInvalidDocument, nr)
	}
	src := geometry.Source{
		Box:       geometry.Rect{LLX: box.LL.X, LLY: box.LL.Y, URX: box.UR.X, URY: box.UR.Y},
		Rotate:    normalizeRotate(inh.Rotate),
		KeepRatio: 1,
	}
	if src.Box.Empty() {
		return geometry.Source{}, fmt.Errorf("%w: page %d has a degenerate box %s", types.ErrInvalidDocument, nr, src.Box)
	}
	return src, nil
}

func normalizeRotate(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	return r
}
