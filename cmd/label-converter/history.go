package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/label-converter/internal/history"
	"github.com/pdiddy/label-converter/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, summarize, export or prune past conversions",
	Long: `History reads the conversion journal configured by history.path (or
--history). Both convert and serve append to it.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("no journal configured: set history.path or pass --history")
	}
	store, err := history.NewStore(cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	limit, _ := cmd.Flags().GetInt("limit")

	if olderThan, _ := cmd.Flags().GetDuration("prune"); olderThan > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "pruned %d record(s) older than %s\n", n, olderThan)
		return nil
	}

	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		s, err := store.Summarize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d converted, %d failed, %d skipped (total: %d); %d pages in, %d pages out\n",
			s.Converted, s.Failed, s.Skipped, s.Total(), s.PagesIn, s.PagesOut)
		return nil
	}

	switch format, _ := cmd.Flags().GetString("export"); format {
	case "":
	case "yaml":
		return store.ExportYAML(ctx, os.Stdout, limit)
	case "json":
		return store.ExportJSON(ctx, os.Stdout, limit)
	default:
		return fmt.Errorf("unknown export format %q: use yaml or json", format)
	}

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistory(os.Stdout, records, jsonOutput)
}

func formatHistory(w io.Writer, records []types.ConversionRecord, jsonOutput bool) error {
	if jsonOutput {
		if records == nil {
			records = []types.ConversionRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-20s  %-9s  %-9s  %-7s  %-8s  %s\n", "When", "Status", "Pages", "Fit", "Time", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range records {
		source := r.Source
		if r.Error != "" {
			source += " (" + r.Error + ")"
		}
		fmt.Fprintf(w, "%-20s  %-9s  %-9s  %-7s  %-8s  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			fmt.Sprintf("%d->%d", r.PagesIn, r.PagesOut),
			r.Fit,
			r.Duration.Round(time.Millisecond),
			source)
	}
	return nil
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum records to list or export")
	historyCmd.Flags().Bool("json", false, "output records as JSON")
	historyCmd.Flags().String("export", "", "export records: yaml or json")
	historyCmd.Flags().Bool("summary", false, "print totals by status")
	historyCmd.Flags().Duration("prune", 0, "delete records older than this duration (e.g. 720h)")

	rootCmd.AddCommand(historyCmd)
}
