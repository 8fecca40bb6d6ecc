package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"starsorter/internal/chart"
	"starsorter/internal/classify"
	"starsorter/internal/logging"
	"starsorter/internal/transparency"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// classifyCmd classifies a single chart file.
func (c *cli) classifyCmd() *cobra.Command {
	var strategy, format string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "classify [chart-file]",
		Short: "Classify one chart extract",
		Long: `Scores a chart extract (JSON or YAML) and prints the classification.

JSON output is the full result: percentages and contributors for every
category plus provenance hashes. Markdown output explains the winners.

Examples:
  sorter classify chart.json
  sorter classify chart.yaml --strategy rules --format markdown --pretty`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := strategyFlag(strategy)
			if err != nil {
				return err
			}
			x, err := chart.Load(args[0])
			if err != nil {
				return err
			}
			eng, _, err := c.openEngine()
			if err != nil {
				return err
			}
			res, err := eng.Classify(x, st)
			if err != nil {
				return err
			}
			logging.Get(logging.CategoryCLI).Infow("classified",
				"chart", args[0], "classification", res.Classification, "input", res.Meta.InputHash)
			return writeResult(cmd.OutOrStdout(), res, format, pretty)
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Scoring strategy: weights, rules, placements (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format: json, markdown")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Render markdown for the terminal")
	return cmd
}

// writeResult prints res in the requested format.
func writeResult(w io.Writer, res *classify.Result, format string, pretty bool) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatMarkdown:
		out := transparency.NewExplainer().Explain(res)
		if pretty {
			rendered, err := render(out)
			if err != nil {
				return err
			}
			out = rendered
		}
		_, err := fmt.Fprint(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q (valid: json, markdown)", format)
	}
}

// render styles markdown for a terminal.
func render(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return renderer.Render(md)
}

// batchLine is one record of batch JSON output.
type batchLine struct {
	Chart  string           `json:"chart"`
	Stale  bool             `json:"stale,omitempty"`
	Result *classify.Result `json:"result"`
}

// batchCmd classifies many chart files against one snapshot.
func (c *cli) batchCmd() *cobra.Command {
	var strategy, format string

	cmd := &cobra.Command{
		Use:   "batch [chart-files...]",
		Short: "Classify many chart extracts concurrently",
		Long: `Classifies every chart against the same reference data snapshot.
JSON output is one line per chart in argument order. Markdown output is a
summary of the run. Ctrl-C cancels the remaining work.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := strategyFlag(strategy)
			if err != nil {
				return err
			}
			extracts := make([]*chart.Extract, len(args))
			for i, path := range args {
				if extracts[i], err = chart.Load(path); err != nil {
					return err
				}
			}
			eng, _, err := c.openEngine()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			results, err := eng.ClassifyBatch(ctx, extracts, st)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				enc := json.NewEncoder(out)
				for i, res := range results {
					if err := enc.Encode(batchLine{Chart: args[i], Stale: eng.IsStale(res), Result: res}); err != nil {
						return err
					}
				}
				return nil
			case formatMarkdown:
				used := st
				if used == "" {
					used, _ = c.cfg.Strategy()
				}
				summary := transparency.SummarizeBatch(string(used), results)
				summary.Duration = time.Since(start).Round(time.Millisecond).String()
				for _, res := range results {
					if eng.IsStale(res) {
						summary.Stale++
					}
				}
				_, err := fmt.Fprint(out, transparency.FormatBatchSummary(summary))
				return err
			default:
				return fmt.Errorf("unknown format %q (valid: json, markdown)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Scoring strategy: weights, rules, placements (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format: json, markdown")
	return cmd
}
