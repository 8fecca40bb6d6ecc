package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"starsorter/internal/chart"
	"starsorter/internal/logging"
	"starsorter/internal/provenance"
	"starsorter/internal/refdata"
	"starsorter/internal/scoring"
	"starsorter/internal/transparency"
)

// inspectCmd shows how sparsify treats one gate.line.
func (c *cli) inspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect [gate.line]",
		Short: "Show what sparsify keeps and drops on a gate.line",
		Long: `Looks up one gate.line in the gate-line map and applies the active
sparsify config. Consistency rescue depends on the whole chart and is not
applied here.

Example:
  sorter inspect 34.2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := refdata.ParseLineKey(args[0])
			if err != nil {
				return err
			}
			snap, err := c.loader().Load()
			if err != nil {
				return err
			}
			if snap.GateLines == nil {
				return fmt.Errorf("%w: inspect needs a gate-line map", scoring.ErrMissingReference)
			}
			cfg := &snap.Sparsify
			if c.cfg.Scoring.Sparsify != nil {
				cfg = c.cfg.Scoring.Sparsify
			}

			insp := scoring.InspectPlacement(key.Gate, key.Line, snap.GateLines, cfg)
			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(insp)
			case formatMarkdown:
				_, err := fmt.Fprint(out, transparency.ExplainPlacement(insp))
				return err
			default:
				return fmt.Errorf("unknown format %q (valid: json, markdown)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatMarkdown, "Output format: json, markdown")
	return cmd
}

// hashCmd prints the input fingerprint of a chart and the reference hashes.
func (c *cli) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [chart-file]",
		Short: "Print the input fingerprint and reference data hashes",
		Long: `Prints the fingerprint of a chart extract. Two extracts that differ only
in the order of their arrays have the same fingerprint. The version and
hash of the configured reference data follow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := chart.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "input:    %s\n", provenance.InputHash(x))

			snap, err := c.loader().Load()
			if err != nil {
				return err
			}
			meta := snap.Meta()
			fmt.Fprintf(out, "version:  %s\n", meta.RuleSetVersion)
			fmt.Fprintf(out, "refdata:  %s\n", meta.RuleSetHash)
			return nil
		},
	}
}

// watchCmd keeps the reference data loaded and reports every reload.
func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch reference data files and reload on change",
		Long: `Loads the reference data, then watches its files. Each change is
debounced, re-validated and swapped in; invalid edits are reported and the
previous snapshot stays in service. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx, cmd)
		},
	}
}

// watch runs the watcher until ctx is done.
func (c *cli) watch(ctx context.Context, cmd *cobra.Command) error {
	loader := c.loader()
	snap, err := loader.Load()
	if err != nil {
		return err
	}
	store := refdata.NewStore(snap)

	w, err := refdata.NewWatcher(loader, store, c.cfg.GetDebounce())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	w.OnSwap(func(prev, next *refdata.Snapshot) {
		fmt.Fprintf(out, "reloaded: %s -> %s\n", prev.Meta().RuleSetHash, next.Meta().RuleSetHash)
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(out, "watching %d files (refdata %s)\n", len(loader.Paths.Files()), snap.Meta().RuleSetHash)
	<-ctx.Done()

	stats := w.Stats()
	logging.Get(logging.CategoryCLI).Infow("watch stopped", "reloads", stats.Reloads, "rejected", stats.Rejected)
	return nil
}
