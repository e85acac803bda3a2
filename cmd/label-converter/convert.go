package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pdiddy/label-converter/internal/convert"
	"github.com/pdiddy/label-converter/internal/history"
	"github.com/pdiddy/label-converter/internal/logging"
	"github.com/pdiddy/label-converter/pkg/types"
)

// combinedName is written next to batch outputs with --combined.
const combinedName = "combined-two-per-page.pdf"

var convertCmd = &cobra.Command{
	Use:   "convert INPUT OUTPUT",
	Short: "Convert label PDFs onto a new page size",
	Long: `Convert reads INPUT, places every page onto the target page and writes
OUTPUT atomically. The target page is the source page times --scale, or a
named size (--page a4, a6, 4x6, WIDTHxHEIGHT) times --scale.

With --out-dir every INPUT is converted to DIR/<name>-converted.pdf; existing
outputs are skipped unless --overwrite is given. --combined additionally
writes all inputs two per page to DIR/` + combinedName + `.

Settings come from the conversion section of the config file, replaced by
--preset when given, and then by individual flags.`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	appCfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	cfg, err := conversionFromFlags(cmd.Flags(), appCfg.Conversion)
	if err != nil {
		return err
	}

	journal, err := openJournal(appCfg.History)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	conv := convert.New()
	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir == "" {
		if len(args) != 2 {
			return fmt.Errorf("convert takes INPUT and OUTPUT (or --out-dir DIR INPUT...)")
		}
		return convertOne(cmd.Context(), conv, journal, args[0], args[1], cfg)
	}

	if len(args) == 0 {
		return fmt.Errorf("no input files given")
	}
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	result := convertBatch(cmd.Context(), conv, journal, args, outDir, cfg, overwrite)

	if combined, _ := cmd.Flags().GetBool("combined"); combined {
		if err := writeCombined(conv, args, filepath.Join(outDir, combinedName), cfg); err != nil {
			return err
		}
	}
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

func convertOne(ctx context.Context, conv *convert.Converter, journal *history.Store, in, out string, cfg types.ConversionConfig) error {
	start := time.Now()
	res, err := conv.ConvertFile(in, out, cfg)
	record(ctx, journal, in, cfg, res, err, time.Since(start))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "converted: %s -> %s (%d pages)\n", in, out, res.PagesOut)
	return nil
}

func convertBatch(ctx context.Context, conv *convert.Converter, journal *history.Store, inputs []string, outDir string, cfg types.ConversionConfig, overwrite bool) convert.BatchResult {
	var result convert.BatchResult
	for _, in := range inputs {
		start := time.Now()
		status, res, err := conv.ConvertOne(in, outDir, cfg, overwrite, os.Stdout)
		switch status {
		case types.ConversionDone:
			result.Converted++
		case types.ConversionSkipped:
			result.Skipped++
			continue
		case types.ConversionFailed:
			result.Failed++
		}
		record(ctx, journal, in, cfg, res, err, time.Since(start))
	}
	fmt.Fprintf(os.Stdout, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

func writeCombined(conv *convert.Converter, inputs []string, out string, cfg types.ConversionConfig) error {
	docs := make([][]byte, 0, len(inputs))
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", types.ErrIOFailure, in, err)
		}
		docs = append(docs, data)
	}
	res, err := conv.Combine(docs, cfg)
	if err != nil {
		return fmt.Errorf("combining inputs: %w", err)
	}
	if err := convert.WriteFileAtomic(out, res.PDF); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "combined: %d files -> %s (%d pages)\n", len(inputs), out, res.PagesOut)
	return nil
}

func openJournal(cfg types.HistoryConfig) (*history.Store, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return history.NewStore(cfg)
}

// record journals one conversion. Journal failures are logged, not returned.
func record(ctx context.Context, journal *history.Store, source string, cfg types.ConversionConfig, res *convert.Result, convErr error, elapsed time.Duration) {
	if journal == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rec := types.ConversionRecord{
		Source:   source,
		Fit:      cfg.Fit,
		Scale:    cfg.Scale,
		Layout:   cfg.Layout,
		Status:   types.ConversionDone,
		Duration: elapsed,
	}
	if data, err := os.ReadFile(source); err == nil {
		sum := sha256.Sum256(data)
		rec.InputSHA256 = hex.EncodeToString(sum[:])
	}
	if convErr != nil {
		rec.Status = types.ConversionFailed
		rec.Error = convErr.Error()
	}
	if res != nil {
		rec.PagesIn, rec.PagesOut = res.PagesIn, res.PagesOut
	}
	if _, err := journal.Record(ctx, rec); err != nil {
		logging.Warn("Journal write failed", "source", source, "error", err)
	}
}

// conversionFromFlags starts from base, or from --preset when given, and
// applies every conversion flag the user set.
func conversionFromFlags(fs *pflag.FlagSet, base types.ConversionConfig) (types.ConversionConfig, error) {
	cfg := base
	if fs.Changed("preset") {
		name, _ := fs.GetString("preset")
		p, err := types.Preset(name)
		if err != nil {
			return cfg, err
		}
		cfg = p
	}

	var err error
	set := func(name string, apply func()) {
		if err == nil && fs.Changed(name) {
			apply()
		}
	}
	getFloat := func(name string) float64 {
		v, e := fs.GetFloat64(name)
		if e != nil {
			err = e
		}
		return v
	}
	getString := func(name string) string {
		v, e := fs.GetString(name)
		if e != nil {
			err = e
		}
		return v
	}
	getBool := func(name string) bool {
		v, e := fs.GetBool(name)
		if e != nil {
			err = e
		}
		return v
	}

	set("scale", func() { cfg.Scale = getFloat("scale") })
	set("fit", func() { cfg.Fit = types.FitMode(getString("fit")) })
	set("page", func() { cfg.Page = getString("page") })
	set("margin", func() { cfg.Margin = getFloat("margin") })
	set("rotate", func() {
		r, e := fs.GetInt("rotate")
		if e != nil {
			err = e
		}
		cfg.Rotate = r
	})
	set("zoom", func() { cfg.Zoom = getFloat("zoom") })
	set("left-ratio", func() { cfg.LeftRatio = getFloat("left-ratio") })
	set("auto-left", func() { cfg.AutoLeft = getBool("auto-left") })
	set("auto-left-min", func() { cfg.AutoLeftMin = getFloat("auto-left-min") })
	set("auto-left-margin", func() { cfg.AutoLeftMargin = getFloat("auto-left-margin") })
	set("auto-left-gap", func() { cfg.AutoLeftGap = getFloat("auto-left-gap") })
	set("halign", func() { cfg.HAlign = types.HAlign(getString("halign")) })
	set("halign-offset", func() { cfg.HAlignOffset = getFloat("halign-offset") })
	set("halign-bleed", func() { cfg.HAlignBleed = getFloat("halign-bleed") })
	set("valign", func() { cfg.VAlign = types.VAlign(getString("valign")) })
	set("layout", func() { cfg.Layout = types.Layout(getString("layout")) })
	set("two-up", func() {
		if getBool("two-up") {
			cfg.Layout = types.LayoutTwoUp
		}
	})
	set("debug-boxes", func() { cfg.DebugBoxes = getBool("debug-boxes") })
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// addConversionFlags registers one flag per conversion setting.
func addConversionFlags(fs *pflag.FlagSet) {
	def := types.DefaultConfig()
	fs.String("preset", "", "start from a named preset: default, label (mondial-relay, inpost)")
	fs.Float64("scale", def.Scale, "multiplier applied to the base page size (> 0)")
	fs.String("fit", string(def.Fit), "fit mode: contain, cover or stretch")
	fs.String("page", "", "target page: source, a4, a5, a6, letter, 4x6 or WIDTHxHEIGHT in points")
	fs.Float64("margin", 0, "inner margin in points")
	fs.Int("rotate", 0, "clockwise rotation in degrees (multiple of 90)")
	fs.Float64("zoom", 1, "extra scale applied after fitting")
	fs.Float64("left-ratio", 1, "fraction of the page width kept from the left edge")
	fs.Bool("auto-left", false, "detect the label width per page")
	fs.Float64("auto-left-min", types.DefaultAutoLeftMin, "lower bound for the detected width ratio")
	fs.Float64("auto-left-margin", 0, "pixels (at 150 dpi) kept right of the detected cut")
	fs.Float64("auto-left-gap", types.DefaultAutoLeftGap, "blank pixel columns that mark the cut")
	fs.String("halign", "", "horizontal alignment: auto, left, center, right")
	fs.Float64("halign-offset", 0, "points added to the x position after alignment")
	fs.Float64("halign-bleed", 0, "points the content may extend past the target horizontally")
	fs.String("valign", "", "vertical alignment: top, center, bottom")
	fs.String("layout", "", "page layout: single or two-up")
	fs.Bool("two-up", false, "place two source pages on each output page")
	fs.Bool("debug-boxes", false, "outline the target and placed content")
}

func init() {
	addConversionFlags(convertCmd.Flags())
	convertCmd.Flags().String("out-dir", "", "batch mode: write <name>-converted.pdf files into this directory")
	convertCmd.Flags().Bool("overwrite", false, "batch mode: replace existing outputs")
	convertCmd.Flags().Bool("combined", false, "batch mode: also write all inputs two per page to "+combinedName)

	rootCmd.AddCommand(convertCmd)
}
