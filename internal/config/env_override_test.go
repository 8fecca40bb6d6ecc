package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_ReferenceData(t *testing.T) {
	clearEnv(t)
	t.Setenv("STARSORTER_RULES", "/etc/sorter/rules.yaml")
	t.Setenv("STARSORTER_GATE_LINES", "/etc/sorter/lines.json")
	t.Setenv("STARSORTER_WEIGHTS", "/etc/sorter/weights.toml")
	t.Setenv("STARSORTER_SPARSIFY", "/etc/sorter/sparsify.yaml")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/etc/sorter/rules.yaml", cfg.ReferenceData.Rules)
	assert.Equal(t, "/etc/sorter/lines.json", cfg.ReferenceData.GateLines)
	assert.Equal(t, "/etc/sorter/weights.toml", cfg.ReferenceData.Weights)
	assert.Equal(t, "/etc/sorter/sparsify.yaml", cfg.ReferenceData.Sparsify)
}

func TestEnvOverrides_Classification(t *testing.T) {
	t.Run("strategy and threshold", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STARSORTER_STRATEGY", "weights")
		t.Setenv("STARSORTER_TIE_THRESHOLD", "3.5")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "weights", cfg.Classification.Strategy)
		assert.Equal(t, 3.5, cfg.Classification.TieThresholdPct)
	})

	t.Run("unparseable threshold is ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STARSORTER_TIE_THRESHOLD", "six")

		cfg := DefaultConfig()
		cfg.Classification.TieThresholdPct = 2
		cfg.applyEnvOverrides()

		assert.Equal(t, 2.0, cfg.Classification.TieThresholdPct)
	})

	t.Run("empty values leave config alone", func(t *testing.T) {
		clearEnv(t)
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestEnvOverrides_AppliedOnLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("STARSORTER_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir() + "/missing.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Level=debug, got %s", cfg.Logging.Level)
	}
}
