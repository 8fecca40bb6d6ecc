package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"starsorter/internal/logging"
	"starsorter/internal/refdata"
	"starsorter/internal/scoring"
)

// Config holds all starsorter configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reference data files and hot reload
	ReferenceData ReferenceDataConfig `yaml:"reference_data"`

	// Strategy and tie handling
	Classification ClassificationConfig `yaml:"classification"`

	// Scoring overrides
	Scoring ScoringConfig `yaml:"scoring"`

	// Batch classification
	Batch BatchConfig `yaml:"batch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ReferenceDataConfig locates the reference data files. Empty paths are
// skipped; strategies that need a missing dataset fail at call time.
type ReferenceDataConfig struct {
	Rules     string `yaml:"rules"`
	GateLines string `yaml:"gate_lines"`
	Weights   string `yaml:"weights"`
	Sparsify  string `yaml:"sparsify"`
	Watch     bool   `yaml:"watch"`
	Debounce  string `yaml:"debounce"`
}

// ClassificationConfig configures the default strategy and hybrid window.
type ClassificationConfig struct {
	Strategy string `yaml:"strategy"` // weights, rules, placements
	// TieThresholdPct overrides the rule set's value when > 0.
	TieThresholdPct float64 `yaml:"tie_threshold_pct"`
}

// ScoringConfig holds per-deployment scoring overrides.
type ScoringConfig struct {
	// Sparsify, when set, replaces the reference data's placement config.
	// Fields omitted in the file keep their production defaults.
	Sparsify *refdata.SparsifyConfig `yaml:"sparsify,omitempty"`
}

// BatchConfig bounds batch classification.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"` // 0 = GOMAXPROCS
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "starsorter",
		Version: "1.0.0",

		ReferenceData: ReferenceDataConfig{
			Rules:     "data/rules.yaml",
			GateLines: "data/gate_lines.json",
			Weights:   "data/weights.yaml",
			Watch:     false,
			Debounce:  "500ms",
		},

		Classification: ClassificationConfig{
			Strategy:        string(scoring.StrategyPlacements),
			TieThresholdPct: 0,
		},

		Batch: BatchConfig{
			Concurrency: 0,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if err := cfg.overlaySparsify(data); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// overlaySparsify re-decodes scoring.sparsify on top of the production
// defaults so a file only needs the fields it changes.
func (c *Config) overlaySparsify(data []byte) error {
	var probe struct {
		Scoring struct {
			Sparsify *yaml.Node `yaml:"sparsify"`
		} `yaml:"scoring"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if probe.Scoring.Sparsify == nil {
		return nil
	}
	base := refdata.DefaultSparsifyConfig()
	if err := probe.Scoring.Sparsify.Decode(&base); err != nil {
		return fmt.Errorf("failed to parse scoring.sparsify: %w", err)
	}
	c.Scoring.Sparsify = &base
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Reference data paths
	if path := os.Getenv("STARSORTER_RULES"); path != "" {
		c.ReferenceData.Rules = path
	}
	if path := os.Getenv("STARSORTER_GATE_LINES"); path != "" {
		c.ReferenceData.GateLines = path
	}
	if path := os.Getenv("STARSORTER_WEIGHTS"); path != "" {
		c.ReferenceData.Weights = path
	}
	if path := os.Getenv("STARSORTER_SPARSIFY"); path != "" {
		c.ReferenceData.Sparsify = path
	}

	// Classification
	if st := os.Getenv("STARSORTER_STRATEGY"); st != "" {
		c.Classification.Strategy = st
	}
	if v := os.Getenv("STARSORTER_TIE_THRESHOLD"); v != "" {
		if pct, err := strconv.ParseFloat(v, 64); err == nil {
			c.Classification.TieThresholdPct = pct
		} else {
			logging.Get(logging.CategoryBoot).Warn("ignoring STARSORTER_TIE_THRESHOLD=%q: %v", v, err)
		}
	}

	// Logging
	if level := os.Getenv("STARSORTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetDebounce returns the reload debounce window as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.ReferenceData.Debounce)
	if err != nil || d <= 0 {
		return refdata.DefaultDebounce
	}
	return d
}

// Strategy returns the configured default strategy.
func (c *Config) Strategy() (scoring.Strategy, error) {
	return scoring.ParseStrategy(c.Classification.Strategy)
}

// Paths returns the reference data paths, resolved relative to base when
// they are not absolute. An empty base leaves them as written.
func (c *Config) Paths(base string) refdata.Paths {
	resolve := func(p string) string {
		if p == "" || base == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	return refdata.Paths{
		Rules:     resolve(c.ReferenceData.Rules),
		GateLines: resolve(c.ReferenceData.GateLines),
		Weights:   resolve(c.ReferenceData.Weights),
		Sparsify:  resolve(c.ReferenceData.Sparsify),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.Strategy(); err != nil {
		return fmt.Errorf("classification.strategy: %w", err)
	}
	if c.Classification.TieThresholdPct < 0 || c.Classification.TieThresholdPct > 100 {
		return fmt.Errorf("classification.tie_threshold_pct must be within [0,100], got %v", c.Classification.TieThresholdPct)
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("batch.concurrency must be >= 0, got %d", c.Batch.Concurrency)
	}
	if c.ReferenceData.Debounce != "" {
		if _, err := time.ParseDuration(c.ReferenceData.Debounce); err != nil {
			return fmt.Errorf("reference_data.debounce: %w", err)
		}
	}
	if rd := c.ReferenceData; rd.Rules == "" && rd.GateLines == "" && rd.Weights == "" {
		return fmt.Errorf("reference_data: at least one of rules, gate_lines or weights is required")
	}
	if c.Scoring.Sparsify != nil {
		if err := c.Scoring.Sparsify.Validate(); err != nil {
			return fmt.Errorf("scoring.sparsify: %w", err)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
