package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"starsorter/internal/chart"
	"starsorter/internal/classify"
	"starsorter/internal/logging"
	"starsorter/internal/provenance"
	"starsorter/internal/refdata"
	"starsorter/internal/scoring"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixture(name string) string {
	return filepath.Join("..", "refdata", "testdata", name)
}

func loadSnapshot(t *testing.T, paths refdata.Paths) *refdata.Snapshot {
	t.Helper()
	snap, err := refdata.NewLoader(paths).Load()
	require.NoError(t, err)
	return snap
}

func fullPaths() refdata.Paths {
	return refdata.Paths{
		Rules:     fixture("rules.yaml"),
		GateLines: fixture("gate_lines.json"),
		Weights:   fixture("weights.yaml"),
	}
}

func newEngine(t *testing.T, opts Options) (*Engine, *refdata.Store) {
	t.Helper()
	store := refdata.NewStore(loadSnapshot(t, fullPaths()))
	return New(store, opts), store
}

func generator() *chart.Extract {
	return &chart.Extract{
		Type:       "Generator",
		Authority:  "Sacral",
		Profile:    "2/4",
		Centers:    []string{"Sacral", "Throat"},
		Channels:   []chart.Channel{"34-20"},
		Gates:      []int{34, 20},
		Placements: []chart.Placement{{Planet: "Sun", Gate: 1, Line: 1, Role: chart.RolePersonality}},
	}
}

func TestClassifyEachStrategy(t *testing.T) {
	e, store := newEngine(t, Options{})
	meta := store.Current().Meta()

	tests := []struct {
		strategy scoring.Strategy
		want     classify.Classification
		winners  []string
	}{
		{scoring.StrategyWeights, classify.Primary, []string{"Pleiades"}},
		{scoring.StrategyRules, classify.Primary, []string{"Lyra"}},
		{scoring.StrategyPlacements, classify.Hybrid, []string{"Sirius", "Lyra"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			res, err := e.Classify(generator(), tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Classification)
			assert.Equal(t, tt.winners, res.Winners())
			assert.Equal(t, string(tt.strategy), res.Meta.Strategy)
			assert.Equal(t, meta.RuleSetHash, res.Meta.RuleSetHash)
			assert.Equal(t, "test-1.0", res.Meta.RuleSetVersion)
			assert.Equal(t, provenance.InputHash(generator()), res.Meta.InputHash)
			assert.Len(t, res.Percentages, 3, "full universe")
		})
	}
}

func TestClassifyDefaultStrategy(t *testing.T) {
	e, _ := newEngine(t, Options{Strategy: scoring.StrategyRules})
	res, err := e.Classify(generator(), "")
	require.NoError(t, err)
	assert.Equal(t, "rules", res.Meta.Strategy)

	e, _ = newEngine(t, Options{})
	res, err = e.Classify(generator(), "")
	require.NoError(t, err)
	assert.Equal(t, "placements", res.Meta.Strategy)
}

func TestRuleScoresCarryProvenance(t *testing.T) {
	e, _ := newEngine(t, Options{})
	scores, err := e.ScoreByRules(generator())
	require.NoError(t, err)

	var lyra scoring.CategoryScore
	for _, s := range scores {
		if s.Category == "Lyra" {
			lyra = s
		}
	}
	require.Len(t, lyra.Contributors, 1)
	c := lyra.Contributors[0]
	assert.Equal(t, "r-channel-34-20", c.RuleID)
	assert.Equal(t, []string{"channel-notes"}, c.Sources)
	assert.Equal(t, 4, c.Confidence)
	assert.Equal(t, 60.0, lyra.Percentage)
}

func TestScoreByPlacementsOverride(t *testing.T) {
	e, store := newEngine(t, Options{})
	before := store.Current().Sparsify.Clone()

	cfg := refdata.DefaultSparsifyConfig()
	cfg.PlanetWeights["Sun"] = 1
	scores, err := e.ScoreByPlacements(generator(), &cfg)
	require.NoError(t, err)
	for _, s := range scores {
		if s.Category == "Lyra" {
			assert.InDelta(t, 1.0, s.CoreScore, 1e-9)
		}
	}

	scores, err = e.ScoreByPlacements(generator(), nil)
	require.NoError(t, err)
	for _, s := range scores {
		if s.Category == "Lyra" {
			assert.InDelta(t, 2.0, s.CoreScore, 1e-9)
		}
	}
	assert.Equal(t, before, store.Current().Sparsify, "shared config untouched")
}

func TestTieThresholdOverride(t *testing.T) {
	e, _ := newEngine(t, Options{TieThreshold: 25})
	res, err := e.Classify(generator(), scoring.StrategyRules)
	require.NoError(t, err)
	assert.Equal(t, classify.Hybrid, res.Classification, "60/40 is within a 25 point window")
}

func TestMissingReferenceData(t *testing.T) {
	store := refdata.NewStore(loadSnapshot(t, refdata.Paths{GateLines: fixture("gate_lines.json")}))
	e := New(store, Options{})

	_, err := e.ScoreByRules(generator())
	assert.ErrorIs(t, err, scoring.ErrMissingReference)
	_, err = e.ScoreByWeights(generator())
	assert.ErrorIs(t, err, scoring.ErrMissingReference)

	res, err := e.Classify(generator(), "")
	require.NoError(t, err)
	assert.Equal(t, classify.DefaultTieThreshold, e.tieThreshold(store.Current()))
	assert.Equal(t, "gl-test-1", res.Meta.RuleSetVersion)

	_, err = e.Classify(generator(), "tarot")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestClassifyBatchKeepsInputOrder(t *testing.T) {
	e, _ := newEngine(t, Options{Concurrency: 3})

	types := []string{"Generator", "Projector", "Manifestor", "Reflector"}
	var extracts []*chart.Extract
	for i := 0; i < 25; i++ {
		x := generator()
		x.Type = types[i%len(types)]
		x.Gates = []int{34, 20, i + 1}
		extracts = append(extracts, x)
	}

	results, err := e.ClassifyBatch(context.Background(), extracts, scoring.StrategyWeights)
	require.NoError(t, err)
	require.Len(t, results, len(extracts))
	for i, res := range results {
		require.NotNil(t, res, "result %d", i)
		assert.Equal(t, provenance.InputHash(extracts[i]), res.Meta.InputHash, "result %d", i)

		single, err := e.Classify(extracts[i], scoring.StrategyWeights)
		require.NoError(t, err)
		assert.Equal(t, single.Percentages, res.Percentages, "result %d", i)
	}
}

func TestClassifyBatchErrors(t *testing.T) {
	e, _ := newEngine(t, Options{Concurrency: 2})
	extracts := []*chart.Extract{generator(), generator()}

	_, err := e.ClassifyBatch(context.Background(), extracts, "nope")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.ClassifyBatch(ctx, extracts, scoring.StrategyRules)
	assert.ErrorIs(t, err, context.Canceled)

	results, err := e.ClassifyBatch(context.Background(), nil, scoring.StrategyRules)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIsStaleAfterSwap(t *testing.T) {
	e, store := newEngine(t, Options{})
	res, err := e.Classify(generator(), scoring.StrategyWeights)
	require.NoError(t, err)
	assert.False(t, e.IsStale(res))

	same := loadSnapshot(t, fullPaths())
	store.Swap(same)
	assert.False(t, e.IsStale(res), "identical content is not stale")

	paths := fullPaths()
	paths.Weights = fixture("weights.toml")
	store.Swap(loadSnapshot(t, paths))
	assert.True(t, e.IsStale(res))
	assert.True(t, e.IsStale(nil))
}

func TestClassifyWritesAuditTrail(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core), nil)
	t.Cleanup(func() { logging.SetLogger(zap.NewNop(), nil) })

	e, _ := newEngine(t, Options{})
	_, err := e.ClassifyBatch(context.Background(), []*chart.Extract{generator()}, scoring.StrategyRules)
	require.NoError(t, err)
	_, err = e.Classify(generator(), "bogus")
	require.Error(t, err)

	audit := logs.FilterMessage("audit")
	events := map[string]int{}
	for _, entry := range audit.All() {
		events[entry.ContextMap()["event"].(string)]++
	}
	assert.Equal(t, 1, events[string(logging.AuditClassify)])
	assert.Equal(t, 1, events[string(logging.AuditBatchComplete)])
	assert.Equal(t, 1, events[string(logging.AuditClassifyError)])

	batch := audit.FilterField(zap.String("event", string(logging.AuditBatchComplete))).All()
	require.Len(t, batch, 1)
	assert.NotEmpty(t, batch[0].ContextMap()["req"])
}
