package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"starsorter/internal/regression"
)

// regressCmd runs a regression battery against the configured reference data.
func (c *cli) regressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regress [battery-file]",
		Short: "Run a regression battery of charts with expected classifications",
		Long: `Classifies each case in a YAML battery and compares the outcome with its
expectation. Use after editing reference data to catch unintended shifts.
Without an argument the battery is read from regression/battery.yaml next
to the rules file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := regression.DefaultBatteryPath(filepath.Dir(c.cfg.Paths(filepath.Dir(c.configPath)).Rules))
			if len(args) == 1 {
				path = args[0]
			}
			b, err := regression.LoadBattery(path)
			if err != nil {
				return err
			}
			eng, _, err := c.openEngine()
			if err != nil {
				return err
			}

			results, err := regression.RunBattery(cmd.Context(), eng, b)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				status := "ok  "
				if !r.Success {
					status = "FAIL"
				}
				fmt.Fprintf(out, "%s %-24s %s", status, r.CaseID, r.Got)
				if r.Error != "" {
					fmt.Fprintf(out, " (%s)", r.Error)
				}
				fmt.Fprintln(out)
			}
			if n := regression.Failed(results); n > 0 {
				return fmt.Errorf("%d of %d regression cases failed", n, len(results))
			}
			fmt.Fprintf(out, "%d cases passed\n", len(results))
			return nil
		},
	}
}
