package refdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"starsorter/internal/chart"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testdata(name string) string {
	return filepath.Join("testdata", name)
}

func TestLoadRuleSet(t *testing.T) {
	rs, err := LoadRuleSet(testdata("rules.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "test-1.0", rs.Version)
	assert.Equal(t, 6.0, rs.TieThresholdPct)
	assert.Equal(t, []string{"Pleiades", "Sirius", "Lyra"}, rs.CategoryIDs())
	require.Len(t, rs.Rules, 3)

	ids := []string{rs.Rules[0].ID, rs.Rules[1].ID, rs.Rules[2].ID}
	assert.Equal(t, []string{"r-channel-34-20", "r-emotional", "r-generator"}, ids, "rules sorted by id")

	emotional := rs.Rules[1]
	assert.Equal(t, []string{"Emotional"}, emotional.If.AuthorityAny)
	assert.Equal(t, []CategoryWeight{{"Sirius", 1.5}, {"Pleiades", 0.5}}, emotional.Weights)
	assert.Equal(t, 2, emotional.Confidence)
	assert.True(t, rs.Rules[0].Synergy)
	assert.Len(t, rs.Hash(), 16)
}

func TestLoadRuleSetReportsEveryProblem(t *testing.T) {
	_, err := LoadRuleSet(testdata("bad_rules.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	joined := verr.Error()
	for _, want := range []string{
		"version is required",
		"duplicate rule id \"r1\"",
		"unknown category \"Orion\"",
		"must be positive",
		"confidence must be 1-5",
		"no conditions",
		"gate 65 out of range",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestLoadGateLineMap(t *testing.T) {
	m, err := LoadGateLineMap(testdata("gate_lines.json"))
	require.NoError(t, err)

	assert.Equal(t, "gl-test-1", m.Version())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []string{"Pleiades", "Sirius", "Lyra"}, m.Categories())

	entries := m.Lookup(1, 1)
	require.Len(t, entries, 3)
	assert.Equal(t, LineEntry{Category: "Lyra", Weight: 0.85, Polarity: PolarityCore, Rationale: "Creative self-expression"}, entries[0])
	assert.Equal(t, PolaritySecondary, entries[2].Polarity, "shadow maps onto secondary")

	assert.Len(t, m.Lookup(2, 3), 1, "alignment none is dropped")
	assert.Nil(t, m.Lookup(64, 6))
}

func TestLoadGateLineMapRejectsBadKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"65.1": [{"star_system": "Lyra", "weight": 0.5, "alignment_type": "core"}],
		"1.1": [{"star_system": "Lyra", "weight": 1.5, "alignment_type": "core"}],
		"2.2": [{"star_system": "Lyra", "weight": 0.5, "alignment_type": "sideways"}]
	}`), 0644))

	_, err := LoadGateLineMap(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "out of range")
	assert.Contains(t, err.Error(), "sideways")
}

func TestLoadWeightTable(t *testing.T) {
	for _, name := range []string{"weights.yaml", "weights.toml"} {
		t.Run(name, func(t *testing.T) {
			wt, err := LoadWeightTable(testdata(name))
			require.NoError(t, err)

			w, ok := wt.Weight("Pleiades", chart.NewAttribute(chart.KindType, "Generator"))
			require.True(t, ok)
			assert.Equal(t, 10.0, w)

			w, ok = wt.Weight("Pleiades", chart.GateAttribute(34))
			require.True(t, ok)
			assert.Equal(t, 5.0, w)

			_, ok = wt.Weight("Sirius", chart.NewAttribute(chart.KindType, "Generator"))
			assert.False(t, ok)
			assert.Equal(t, []string{"Pleiades", "Sirius"}, wt.Categories())
		})
	}
}

func TestLoadWeightTableKeepsUnreachableKeys(t *testing.T) {
	wt, err := LoadWeightTable(testdata("weights.yaml"))
	require.NoError(t, err)

	w, ok := wt.Weight("Pleiades", chart.Attribute{Kind: chart.KindChannel, Value: "34_57"})
	require.True(t, ok, "underscore channel keys load even though no chart emits them")
	assert.Equal(t, 9.0, w)
	assert.Equal(t, "Nurturing, responsive, sacral energy.", wt.Why("Pleiades"))
}

func TestLoadWeightTableRejectsUnknownPrefix(t *testing.T) {
	_, err := LoadWeightTable(testdata("bad_weights.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "typo_generator")
}

func TestLoadSparsifyConfigOverlaysBase(t *testing.T) {
	cfg, err := LoadSparsifyConfig(testdata("sparsify.yaml"), DefaultSparsifyConfig())
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Gamma)
	assert.Equal(t, 2, cfg.PerPolarity.Core.TopK)
	assert.Equal(t, 1, cfg.PerPolarity.Secondary.TopK)
	assert.Equal(t, 0.5, cfg.PlanetWeights["Chiron"])
	assert.Equal(t, 2.0, cfg.PlanetWeights["Sun"], "base planet weights survive the overlay")
	assert.Equal(t, 0.75, cfg.SecondaryLineMultiplier(3))
	require.NotNil(t, cfg.ConsistencyRescue)
	assert.Equal(t, 3, cfg.ConsistencyRescue.MinPlacements)

	def := DefaultSparsifyConfig()
	assert.NotContains(t, def.PlanetWeights, "Chiron", "base is not mutated")
}

func TestLoadSparsifyConfigValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparsify.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gamma": 0, "per_polarity": {"core": {"top_p": 2}}}`), 0644))

	_, err := LoadSparsifyConfig(path, DefaultSparsifyConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "gamma")
	assert.Contains(t, err.Error(), "core.top_p")
}

func TestLoaderBuildsSnapshot(t *testing.T) {
	l := NewLoader(Paths{
		Rules:     testdata("rules.yaml"),
		GateLines: testdata("gate_lines.json"),
		Weights:   testdata("weights.yaml"),
	})
	snap, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Pleiades", "Sirius", "Lyra"}, snap.Universe())
	assert.Equal(t, "test-1.0", snap.Meta().RuleSetVersion)
	assert.Len(t, snap.Meta().RuleSetHash, 16)
	assert.Equal(t, 1.35, snap.Sparsify.Gamma)
	assert.Equal(t, 6.0, snap.TieThresholdPct(10))
}

func TestLoaderErrors(t *testing.T) {
	t.Run("no paths", func(t *testing.T) {
		_, err := NewLoader(Paths{}).Load()
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(Paths{Weights: testdata("nope.yaml")}).Load()
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "weights.ini")
		require.NoError(t, os.WriteFile(path, []byte("x=1"), 0644))
		_, err := NewLoader(Paths{Weights: path}).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})
	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0644))
		_, err := NewLoader(Paths{Rules: path}).Load()
		assert.Error(t, err)
	})
}

func TestStringKeysConvertsNestedMaps(t *testing.T) {
	in := map[string]any{
		"lines": map[any]any{1: []any{map[any]any{"w": 0.5}}},
	}
	out := stringKeys(in).(map[string]any)
	lines := out["lines"].(map[string]any)
	inner := lines["1"].([]any)[0].(map[string]any)
	assert.Equal(t, 0.5, inner["w"])
}
