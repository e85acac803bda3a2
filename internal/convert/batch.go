// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/label-converter/pkg/types"
)

// outputSuffix is appended to the input base name in batch mode.
const outputSuffix = "-converted"

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any document failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertFile reads the PDF at input, converts it and writes the result to
// output. The output is written to a temporary file next to it and renamed
// into place, so a failed conversion never leaves a partial file. Read and
// write errors wrap types.ErrIOFailure.
func (c *Converter) ConvertFile(input, output string, cfg types.ConversionConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrIOFailure, input, err)
	}

	res, err := c.Convert(data, cfg)
	if err != nil {
		return nil, err
	}

	if err := WriteFileAtomic(output, res.PDF); err != nil {
		return nil, err
	}
	return res, nil
}

// ConvertFile converts input into output with a default Converter.
func ConvertFile(input, output string, cfg types.ConversionConfig) error {
	_, err := New().ConvertFile(input, output, cfg)
	return err
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory, creating parent directories as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", types.ErrIOFailure, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".label-converter-*.pdf")
	if err != nil {
		return fmt.Errorf("%w: creating temporary file in %s: %v", types.ErrIOFailure, dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: writing %s: %v", types.ErrIOFailure, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: syncing %s: %v", types.ErrIOFailure, path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: closing %s: %v", types.ErrIOFailure, path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: setting mode on %s: %v", types.ErrIOFailure, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: moving output to %s: %v", types.ErrIOFailure, path, err)
	}
	return nil
}

// OutputPath returns where batch mode writes the conversion of input.
func OutputPath(input, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, base+outputSuffix+".pdf")
}

// ConvertOne converts input into outDir. Existing outputs are skipped unless
// overwrite is set. A status line is printed to w.
func (c *Converter) ConvertOne(input, outDir string, cfg types.ConversionConfig, overwrite bool, w io.Writer) (types.ConversionStatus, *Result, error) {
	out := OutputPath(input, outDir)
	name := filepath.Base(input)

	if !overwrite {
		if _, err := os.Stat(out); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
			return types.ConversionSkipped, nil, nil
		}
	}

	res, err := c.ConvertFile(input, out, cfg)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return types.ConversionFailed, nil, err
	}

	fmt.Fprintf(w, "converted: %s -> %s (%d pages)\n", name, out, res.PagesOut)
	return types.ConversionDone, res, nil
}

// ConvertPaths converts every input into outDir, printing per-file status
// to w and returning a summary. A failure does not stop the batch.
func (c *Converter) ConvertPaths(inputs []string, outDir string, cfg types.ConversionConfig, overwrite bool, w io.Writer) BatchResult {
	var result BatchResult
	for _, in := range inputs {
		status, _, _ := c.ConvertOne(in, outDir, cfg, overwrite, w)
		switch status {
		case types.ConversionDone:
			result.Converted++
		case types.ConversionSkipped:
			result.Skipped++
		case types.ConversionFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}
