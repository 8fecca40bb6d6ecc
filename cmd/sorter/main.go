package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"starsorter/internal/config"
	"starsorter/internal/engine"
	"starsorter/internal/logging"
	"starsorter/internal/refdata"
	"starsorter/internal/scoring"
	"starsorter/internal/transparency"
)

// cli holds the global flags and the state PersistentPreRunE builds from them.
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "sorter",
		Short: "starsorter - classify birth charts into star-system lineages",
		Long: `starsorter scores a birth chart extract against versioned reference data
and classifies it as a primary star system or a hybrid of two.

Three strategies are available:
  weights     flat attribute weights per category
  rules       declarative rules with sources and rationale
  placements  planetary gate.line placements, sparsified and sharpened

Every result carries the contributing facts and the hashes of the
reference data and input it was computed from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "starsorter.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		c.classifyCmd(),
		c.batchCmd(),
		c.inspectCmd(),
		c.hashCmd(),
		c.watchCmd(),
		c.regressCmd(),
	)
	return rootCmd
}

// setup loads and validates the config and initializes logging.
func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.configPath, err)
	}
	if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
		return err
	}
	c.cfg = cfg
	logging.Boot("config loaded from %s (strategy=%s)", c.configPath, cfg.Classification.Strategy)
	return nil
}

// loader returns a loader over the configured files. Relative paths resolve
// against the config file's directory.
func (c *cli) loader() *refdata.Loader {
	return refdata.NewLoader(c.cfg.Paths(filepath.Dir(c.configPath)))
}

// openEngine loads the reference data and wraps it in an engine.
func (c *cli) openEngine() (*engine.Engine, *refdata.Store, error) {
	snap, err := c.loader().Load()
	if err != nil {
		return nil, nil, err
	}
	store := refdata.NewStore(snap)
	st, err := c.cfg.Strategy()
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(store, engine.Options{
		Strategy:     st,
		TieThreshold: c.cfg.Classification.TieThresholdPct,
		Concurrency:  c.cfg.Batch.Concurrency,
		Sparsify:     c.cfg.Scoring.Sparsify,
	})
	logging.Get(logging.CategoryCLI).Debug("engine ready: snapshot %s (%s)", snap.ID, snap.Meta().RuleSetHash)
	return eng, store, nil
}

// strategyFlag parses a --strategy value. Empty means the configured default.
func strategyFlag(s string) (scoring.Strategy, error) {
	if s == "" {
		return "", nil
	}
	return scoring.ParseStrategy(s)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprint(os.Stderr, transparency.ClassifyError(err).Format())
		os.Exit(1)
	}
}
