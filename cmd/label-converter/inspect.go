// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-converter/internal/convert"
	"github.com/pdiddy/label-converter/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print the page sizes of a PDF",
	Long: `Inspect prints every page of FILE with its displayed size in points and
millimetres and its /Rotate entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", types.ErrIOFailure, args[0], err)
		}
		pages, err := convert.New().Inspect(data)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatPages(os.Stdout, pages, jsonOutput)
	},
}

const pointsPerMM = 72 / 25.4

func formatPages(w io.Writer, pages []types.PageInfo, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pages)
	}

	fmt.Fprintf(w, "%-5s  %-18s  %-16s  %s\n", "Page", "Size (pt)", "Size (mm)", "Rotate")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, p := range pages {
		fmt.Fprintf(w, "%-5d  %-18s  %-16s  %d\n", p.Number,
			fmt.Sprintf("%.2f x %.2f", p.Width, p.Height),
			fmt.Sprintf("%.0f x %.0f", p.Width/pointsPerMM, p.Height/pointsPerMM),
			p.Rotate)
	}
	return nil
}

func init() {
	inspectCmd.Flags().Bool("json", false, "output pages as JSON")
	rootCmd.AddCommand(inspectCmd)
}
