// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package testpdf writes small, valid PDF documents for tests. The output
// is deterministic: one catalog, one page tree and one content stream per
// page, followed by an exact cross-reference table.
package testpdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Page describes one page of a generated document.
type Page struct {
	// Width and Height are the MediaBox size in points.
	Width, Height float64

	// OriginX and OriginY move the MediaBox lower-left corner.
	OriginX, OriginY float64

	// Rotate is written as the page's /Rotate entry when non-zero.
	Rotate int

	// Content is the page content stream. Empty means a gray square in
	// the lower-left quarter of the page.
	Content string

	// Flate stores the content stream with /FlateDecode instead of
	// uncompressed.
	Flate bool
}

// Square returns a one-page document with a size x size page.
func Square(size float64) []byte {
	return Build(Page{Width: size, Height: size})
}

// Pages returns a document of n pages of the given size.
func Pages(n int, width, height float64) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Width: width, Height: height}
	}
	return Build(pages...)
}

// Build returns the encoded document.
func Build(pages ...Page) []byte {
	var objects []string

	// Object 1 is the catalog, 2 the page tree; each page takes two
	// objects: the page dictionary and its content stream.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	)

	for i, p := range pages {
		content := p.Content
		if content == "" {
			content = fmt.Sprintf("q 0.3 g %s %s %s %s re f Q",
				num(p.OriginX+p.Width/8), num(p.OriginY+p.Height/8), num(p.Width/4), num(p.Height/4))
		}

		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [%s %s %s %s] /Resources << /ProcSet [/PDF] >> /Contents %d 0 R",
			num(p.OriginX), num(p.OriginY), num(p.OriginX+p.Width), num(p.OriginY+p.Height), 4+2*i)
		if p.Rotate != 0 {
			page += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		page += " >>"

		stream := fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
		if p.Flate {
			packed := deflate(content)
			stream = fmt.Sprintf("<< /Length %d /Filter /FlateDecode >>\nstream\n%s\nendstream", len(packed), packed)
		}
		objects = append(objects, page, stream)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func deflate(s string) string {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(s))
	zw.Close()
	return buf.String()
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
