// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"fmt"
	"strconv"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/pdiddy/label-converter/internal/geometry"
	"github.com/pdiddy/label-converter/pkg/types"
)

// debugLineWidth is the stroke width of debug rectangles, in points.
const debugLineWidth = 0.6

// composePage builds one output page holding the source pages in group
// (1-based) and returns it as a standalone single-page document.
func (c *Converter) composePage(src *model.Context, group []int, ratios []float64, cfg types.ConversionConfig) ([]byte, error) {
	ctx, err := pdfcpu.ExtractPages(src, group, false)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting pages %v: %v", types.ErrInvalidDocument, group, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: counting extracted pages: %v", types.ErrInvalidDocument, err)
	}

	rotate := cfg.NormalizedRotate()

	sources := make([]geometry.Source, len(group))
	for i, nr := range group {
		s, err := pageSource(ctx, i+1)
		if err != nil {
			return nil, err
		}
		s.KeepRatio = ratios[nr-1]
		sources[i] = s
	}

	// The first page of the group decides a derived page size; the kept
	// width is what gets laid out, so it sizes the page.
	dw, dh := sources[0].DisplaySize()
	page, err := geometry.TargetPage(dw*sources[0].KeepRatio, dh, rotate, cfg)
	if err != nil {
		return nil, err
	}
	slots, err := geometry.Slots(page, cfg.Margin, cfg.Layout.SlotsPerPage(), cfg.Margin)
	if err != nil {
		return nil, err
	}

	// Wrap every page before the first page dictionary is rewritten.
	forms := make([]pdftypes.IndirectRef, len(group))
	var ops bytes.Buffer
	for i := range group {
		content, err := pageContent(src, group[i])
		if err != nil {
			return nil, err
		}
		form, err := wrapPage(ctx, i+1, sources[i].Box, content)
		if err != nil {
			return nil, err
		}
		forms[i] = *form

		t, err := geometry.Fit(sources[i], slots[i], rotate, cfg)
		if err != nil {
			return nil, err
		}
		drawForm(&ops, formName(i), t)
		if cfg.DebugBoxes {
			drawDebug(&ops, t)
		}
	}

	if err := rewriteFirstPage(ctx, page, forms, ops.Bytes()); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("writing output page: %w", err)
	}
	if len(group) == 1 {
		return out.Bytes(), nil
	}

	// The remaining pages now live inside page 1 as form XObjects.
	var trimmed bytes.Buffer
	if err := pdfapi.RemovePages(bytes.NewReader(out.Bytes()), &trimmed, []string{"2-"}, c.newConf()); err != nil {
		return nil, fmt.Errorf("dropping absorbed pages: %w", err)
	}
	return trimmed.Bytes(), nil
}

// pageContent returns the decoded content of page nr of ctx. /Contents may
// be a single stream or an array of streams, which are joined.
func pageContent(ctx *model.Context, nr int) ([]byte, error) {
	d, _, _, err := ctx.PageDict(nr, false)
	if err != nil {
		return nil, fmt.Errorf("%w: reading page %d: %v", types.ErrInvalidDocument, nr, err)
	}
	obj, found := d.Find("Contents")
	if !found || obj == nil {
		return nil, nil
	}
	obj, err = ctx.Dereference(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving content of page %d: %v", types.ErrInvalidDocument, nr, err)
	}

	var parts []pdftypes.Object
	switch o := obj.(type) {
	case pdftypes.StreamDict:
		parts = []pdftypes.Object{o}
	case pdftypes.Array:
		parts = o
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: page %d has /Contents of type %T", types.ErrInvalidDocument, nr, obj)
	}

	var buf bytes.Buffer
	for _, part := range parts {
		sd, _, err := ctx.DereferenceStreamDict(part)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving content of page %d: %v", types.ErrInvalidDocument, nr, err)
		}
		if sd == nil {
			continue
		}
		data, err := streamData(sd)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding content of page %d: %v", types.ErrInvalidDocument, nr, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// streamData returns the decoded bytes of sd. A stream without filters is
// used as stored.
func streamData(sd *pdftypes.StreamDict) ([]byte, error) {
	if sd.Content != nil {
		return sd.Content, nil
	}
	if len(sd.FilterPipeline) == 0 {
		return sd.Raw, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, err
	}
	return sd.Content, nil
}

// wrapPage turns page nr of ctx into a form XObject painting content with
// the page's resources, whose BBox is box, and returns a reference to it.
func wrapPage(ctx *model.Context, nr int, box geometry.Rect, content []byte) (*pdftypes.IndirectRef, error) {
	d, _, inh, err := ctx.PageDict(nr, true)
	if err != nil {
		return nil, fmt.Errorf("%w: reading page %d: %v", types.ErrInvalidDocument, nr, err)
	}

	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, fmt.Errorf("creating form for page %d: %w", nr, err)
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Form")
	sd.Insert("BBox", pdftypes.NewRectangle(box.LLX, box.LLY, box.URX, box.URY).Array())
	if res, ok := d.Find("Resources"); ok {
		sd.Insert("Resources", res)
	} else if inh != nil && inh.Resources != nil {
		sd.Insert("Resources", inh.Resources)
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("encoding form for page %d: %w", nr, err)
	}

	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("storing form for page %d: %w", nr, err)
	}
	// The form now carries the page content.
	d.Delete("Contents")
	return ref, nil
}

// rewriteFirstPage turns page 1 of ctx into the output page: new boxes, no
// rotation, the forms as its only resources and content as its only stream.
func rewriteFirstPage(ctx *model.Context, page types.PageSize, forms []pdftypes.IndirectRef, content []byte) error {
	d, _, _, err := ctx.PageDict(1, false)
	if err != nil {
		return fmt.Errorf("%w: reading output page: %v", types.ErrInvalidDocument, err)
	}

	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return fmt.Errorf("creating page content: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("encoding page content: %w", err)
	}
	contentRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("storing page content: %w", err)
	}

	xobjects := pdftypes.Dict{}
	for i, ref := range forms {
		xobjects[formName(i)] = ref
	}

	box := pdftypes.RectForWidthAndHeight(0, 0, page.Width, page.Height).Array()
	d["MediaBox"] = box
	d["CropBox"] = box
	d["Rotate"] = pdftypes.Integer(0)
	d["Resources"] = pdftypes.Dict{"XObject": xobjects}
	d["Contents"] = *contentRef
	for _, key := range []string{"Annots", "TrimBox", "BleedBox", "ArtBox", "Thumb", "Group"} {
		d.Delete(key)
	}
	return nil
}

func formName(i int) string {
	return "Fm" + strconv.Itoa(i)
}

// drawForm paints form name through t, clipped to the visible area.
// Nothing is painted when no part of the placed content is visible.
func drawForm(buf *bytes.Buffer, name string, t geometry.Transform) {
	m, clip := t.Matrix, t.Clip
	if clip.Empty() {
		return
	}
	buf.WriteString("q\n")
	fmt.Fprintf(buf, "%s %s %s %s re W n\n", num(clip.LLX), num(clip.LLY), num(clip.Width()), num(clip.Height()))
	fmt.Fprintf(buf, "%s %s %s %s %s %s cm\n", num(m.A), num(m.B), num(m.C), num(m.D), num(m.E), num(m.F))
	fmt.Fprintf(buf, "/%s Do\nQ\n", name)
}

// drawDebug outlines the target in blue and the placed content in red.
func drawDebug(buf *bytes.Buffer, t geometry.Transform) {
	buf.WriteString("q\n")
	fmt.Fprintf(buf, "%s w\n", num(debugLineWidth))
	strokeRect(buf, t.Target, "0 0 1 RG")
	strokeRect(buf, t.Dest, "1 0 0 RG")
	buf.WriteString("Q\n")
}

func strokeRect(buf *bytes.Buffer, r geometry.Rect, color string) {
	fmt.Fprintf(buf, "%s %s %s %s %s re S\n", color, num(r.LLX), num(r.LLY), num(r.Width()), num(r.Height()))
}

// num formats v for a content stream: fixed precision, no trailing zeros.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "-0" {
		return "0"
	}
	return s
}
