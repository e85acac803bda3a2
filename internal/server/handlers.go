// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pdiddy/label-converter/internal/cache"
	"github.com/pdiddy/label-converter/internal/convert"
	"github.com/pdiddy/label-converter/internal/history"
	"github.com/pdiddy/label-converter/internal/logging"
	"github.com/pdiddy/label-converter/pkg/types"
)

// CombinedName is the archive entry holding every input two per page.
const CombinedName = "combined-two-per-page.pdf"

//go:embed ui/index.html
var indexHTML []byte

type handlers struct {
	conv     *convert.Converter
	cache    *cache.Cache
	history  *history.Store
	defaults types.ConversionConfig
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Label Converter API is running.",
		"health":  "/health",
		"convert": "/convert",
	})
}

func (h *handlers) ui(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

// upload is one PDF read from a multipart form.
type upload struct {
	name string
	data []byte
}

func (h *handlers) convert(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, `missing form field "file"`)
	}
	up, err := readUpload(fh)
	if err != nil {
		return err
	}

	cfg, err := h.configFromForm(c)
	if err != nil {
		return toHTTPError(err)
	}

	res, hit, err := h.run(c.UserContext(), up, cfg)
	if err != nil {
		return toHTTPError(err)
	}

	if hit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	c.Set("X-Pages-In", strconv.Itoa(res.PagesIn))
	c.Set("X-Pages-Out", strconv.Itoa(res.PagesOut))
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, SafeOutputName(up.name, 1)))
	return c.Send(res.PDF)
}

func (h *handlers) convertBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected a multipart form")
	}
	headers := uploadedFiles(form)
	if len(headers) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no files uploaded")
	}

	cfg, err := h.configFromForm(c)
	if err != nil {
		return toHTTPError(err)
	}

	uploads := make([]upload, len(headers))
	for i, fh := range headers {
		if uploads[i], err = readUpload(fh); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	docs := make([][]byte, len(uploads))
	for i, up := range uploads {
		res, _, err := h.run(c.UserContext(), up, cfg)
		if err != nil {
			return toHTTPError(fmt.Errorf("%s: %w", up.name, err))
		}
		if err := addZipEntry(zw, SafeOutputName(up.name, i+1), res.PDF); err != nil {
			return err
		}
		docs[i] = up.data
	}

	combined, err := h.conv.Combine(docs, cfg)
	if err != nil {
		return toHTTPError(fmt.Errorf("combining: %w", err))
	}
	if err := addZipEntry(zw, CombinedName, combined.PDF); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="converted-labels.zip"`)
	return c.Send(buf.Bytes())
}

// run converts one upload, consulting the cache and journaling the outcome.
func (h *handlers) run(ctx context.Context, up upload, cfg types.ConversionConfig) (*convert.Result, bool, error) {
	start := time.Now()
	sum := sha256.Sum256(up.data)
	rec := types.ConversionRecord{
		Source:      up.name,
		InputSHA256: hex.EncodeToString(sum[:]),
		Fit:         cfg.Fit,
		Scale:       cfg.Scale,
		Layout:      cfg.Layout,
	}

	var key string
	if h.cache != nil {
		key = cache.Key(up.data, cfg)
		entry, err := h.cache.Get(ctx, key)
		if err != nil {
			logging.Warn("Cache read failed", "key", key, "error", err)
		} else if entry != nil {
			return &convert.Result{PDF: entry.PDF, PagesIn: entry.PagesIn, PagesOut: entry.PagesOut}, true, nil
		}
	}

	res, err := h.conv.Convert(up.data, cfg)
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Status = types.ConversionFailed
		rec.Error = err.Error()
		h.journal(ctx, rec)
		return nil, false, err
	}

	rec.Status = types.ConversionDone
	rec.PagesIn, rec.PagesOut = res.PagesIn, res.PagesOut
	h.journal(ctx, rec)

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, cache.Entry{PDF: res.PDF, PagesIn: res.PagesIn, PagesOut: res.PagesOut}); err != nil {
			logging.Warn("Cache write failed", "key", key, "error", err)
		}
	}

	logging.Info("Converted", "source", up.name, "pages_in", res.PagesIn, "pages_out", res.PagesOut,
		"duration_ms", rec.Duration.Milliseconds())
	return res, false, nil
}

func (h *handlers) journal(ctx context.Context, rec types.ConversionRecord) {
	if h.history == nil {
		return
	}
	if _, err := h.history.Record(ctx, rec); err != nil {
		logging.Warn("Journal write failed", "source", rec.Source, "error", err)
	}
}

// configFromForm starts from the preset form field (or the server defaults)
// and applies the fit, scale, page and layout fields.
func (h *handlers) configFromForm(c *fiber.Ctx) (types.ConversionConfig, error) {
	cfg := h.defaults
	if name := c.FormValue("preset"); name != "" {
		p, err := types.Preset(name)
		if err != nil {
			return cfg, err
		}
		cfg = p
	}
	if v := c.FormValue("fit"); v != "" {
		cfg.Fit = types.FitMode(strings.ToLower(v))
	}
	if v := c.FormValue("scale"); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: scale %q is not a number", types.ErrInvalidConfiguration, v)
		}
		cfg.Scale = s
	}
	if v := c.FormValue("page"); v != "" {
		cfg.Page = v
	}
	if v := c.FormValue("layout"); v != "" {
		cfg.Layout = types.Layout(strings.ToLower(v))
	}
	return cfg, cfg.Validate()
}

// uploadedFiles returns the files sent as "files" followed by any sent as
// "file", in a new slice.
func uploadedFiles(form *multipart.Form) []*multipart.FileHeader {
	files := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["file"]))
	files = append(files, form.File["files"]...)
	return append(files, form.File["file"]...)
}

func readUpload(fh *multipart.FileHeader) (upload, error) {
	f, err := fh.Open()
	if err != nil {
		return upload{}, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	if !convert.IsPDF(data) {
		return upload{}, fiber.NewError(fiber.StatusUnsupportedMediaType, "Only PDF files are supported.")
	}
	return upload{name: fh.Filename, data: data}, nil
}

func addZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("adding %s to archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s to archive: %w", name, err)
	}
	return nil
}

// toHTTPError maps conversion error kinds to status codes.
func toHTTPError(err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, types.ErrInvalidConfiguration):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrInvalidDocument):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fmt.Errorf("conversion failed: %w", err)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeOutputName derives a download name from an uploaded filename; index
// numbers the fallback used when nothing usable remains.
func SafeOutputName(original string, index int) string {
	fallback := fmt.Sprintf("file-%d", index)
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if original == "" || base == "." || base == string(filepath.Separator) {
		base = fallback
	}
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = fallback
	}
	return base + "-converted.pdf"
}
