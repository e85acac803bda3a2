// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/label-converter/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration after merging defaults, the config file,
LABEL_CONVERTER_* environment variables and flags. Secrets are omitted.
The output is a valid label-converter.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// conversionKeys lists the keys of the conversion section.
var conversionKeys = []string{
	"scale", "fit", "page", "margin", "rotate", "zoom", "left_ratio",
	"auto_left", "auto_left_min", "auto_left_margin", "auto_left_gap",
	"halign", "halign_offset", "halign_bleed", "valign", "layout", "debug_boxes",
}

// presetValue returns the value of one conversion key in p.
func presetValue(p types.ConversionConfig, key string) any {
	switch key {
	case "scale":
		return p.Scale
	case "fit":
		return string(p.Fit)
	case "page":
		return p.Page
	case "margin":
		return p.Margin
	case "rotate":
		return p.Rotate
	case "zoom":
		return p.Zoom
	case "left_ratio":
		return p.LeftRatio
	case "auto_left":
		return p.AutoLeft
	case "auto_left_min":
		return p.AutoLeftMin
	case "auto_left_margin":
		return p.AutoLeftMargin
	case "auto_left_gap":
		return p.AutoLeftGap
	case "halign":
		return string(p.HAlign)
	case "halign_offset":
		return p.HAlignOffset
	case "halign_bleed":
		return p.HAlignBleed
	case "valign":
		return string(p.VAlign)
	case "layout":
		return string(p.Layout)
	case "debug_boxes":
		return p.DebugBoxes
	}
	return nil
}
