package classify

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsorter/internal/chart"
	"starsorter/internal/provenance"
	"starsorter/internal/scoring"
)

var ref = provenance.RefMeta{RuleSetVersion: "test-1.0", RuleSetHash: "0123456789abcdef"}

func pcts(values ...any) []scoring.CategoryScore {
	var out []scoring.CategoryScore
	for i := 0; i < len(values); i += 2 {
		out = append(out, scoring.CategoryScore{Category: values[i].(string), Percentage: values[i+1].(float64)})
	}
	return out
}

func TestClassifyBoundary(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		scores    []scoring.CategoryScore
		want      Classification
	}{
		{"clear lead", 6, pcts("Pleiades", 86.49, "Sirius", 13.51), Primary},
		{"gap equals threshold", 6, pcts("Pleiades", 53.00, "Sirius", 47.00), Hybrid},
		{"gap just above threshold", 6, pcts("Pleiades", 53.01, "Sirius", 46.99), Primary},
		{"exact tie", 6, pcts("Pleiades", 50.00, "Sirius", 50.00), Hybrid},
		{"float noise at boundary", 6, pcts("Lyra", 40.3, "Orion", 34.3, "Sirius", 25.4), Hybrid},
		{"single category", 6, pcts("Lyra", 100.0), Primary},
		{"narrow threshold", 0.01, pcts("A", 50.01, "B", 49.99), Primary},
		{"all zero", 6, pcts("A", 0.0, "B", 0.0), Hybrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.threshold).Classify(tt.scores, ref, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Classification)
			if tt.want == Primary {
				assert.Nil(t, res.Hybrid)
				assert.NotEmpty(t, res.Primary)
			} else {
				require.NotNil(t, res.Hybrid)
				assert.Empty(t, res.Primary)
			}
		})
	}
}

func TestClassifyFlatWeightTableLeader(t *testing.T) {
	scores := []scoring.CategoryScore{
		{Category: "Sirius", TotalScore: 5, Percentage: 13.51, Contributors: []scoring.Contributor{{Key: "gate_2", Weight: 5}}},
		{Category: "Pleiades", TotalScore: 32, Percentage: 86.49, Contributors: []scoring.Contributor{
			{Key: "gate_1", Weight: 5},
			{Key: "type_manifestor", Weight: 15},
			{Key: "authority_emotional", Weight: 12},
		}},
		{Category: "Arcturus", Contributors: []scoring.Contributor{}},
	}

	res, err := Classify(scores, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, Primary, res.Classification)
	assert.Equal(t, "Pleiades", res.Primary)
	assert.Equal(t, []Ally{{"Pleiades", 86.49}, {"Sirius", 13.51}, {"Arcturus", 0}}, res.Allies)
	assert.Equal(t, map[string]float64{"Pleiades": 86.49, "Sirius": 13.51, "Arcturus": 0}, res.Percentages)
	require.Len(t, res.Contributors, 3, "every category, not only the winner")
	assert.Equal(t, "type_manifestor", res.Contributors["Pleiades"][0].Key)
	assert.Equal(t, "gate_1", res.Contributors["Pleiades"][2].Key)
	assert.Equal(t, "gate_1", scores[1].Contributors[0].Key, "input untouched")
	assert.Equal(t, []string{"Pleiades"}, res.Winners())
	assert.Equal(t, ref, res.Meta.RefMeta())
	assert.Empty(t, res.Meta.InputHash)
}

func TestClassifyHybridAndAllies(t *testing.T) {
	res, err := Classify(pcts("Lyra", 20.0, "Sirius", 30.0, "Orion", 10.0, "Pleiades", 27.0, "Draco", 13.0), ref, nil)
	require.NoError(t, err)

	assert.Equal(t, Hybrid, res.Classification)
	assert.Equal(t, [2]string{"Sirius", "Pleiades"}, *res.Hybrid)
	assert.Equal(t, []string{"Sirius", "Pleiades"}, res.Winners())
	require.Len(t, res.Allies, MaxAllies)
	assert.Equal(t, "Lyra", res.Allies[2].Category)
	assert.Len(t, res.Percentages, 5)
}

func TestClassifyTieKeepsCanonicalOrder(t *testing.T) {
	res, err := Classify(pcts("Orion", 50.0, "Lyra", 50.0), ref, nil)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"Orion", "Lyra"}, *res.Hybrid)
}

func TestClassifyEmpty(t *testing.T) {
	_, err := Classify(nil, ref, nil)
	assert.ErrorIs(t, err, ErrEmptyScores)
}

func TestClassifyRecordsInputHash(t *testing.T) {
	a := &chart.Extract{Type: "Generator", Gates: []int{34, 20}, Centers: []string{"Throat", "Sacral"}}
	b := &chart.Extract{Type: "Generator", Gates: []int{20, 34}, Centers: []string{"Sacral", "Throat"}}

	ra, err := Classify(pcts("Lyra", 100.0), ref, a)
	require.NoError(t, err)
	rb, err := Classify(pcts("Lyra", 100.0), ref, b)
	require.NoError(t, err)

	assert.Len(t, ra.Meta.InputHash, provenance.HashLength)
	assert.Equal(t, ra.Meta.InputHash, rb.Meta.InputHash)
}

func TestNewDefaultsThreshold(t *testing.T) {
	assert.Equal(t, DefaultTieThreshold, New(-3).TieThreshold)
	assert.Equal(t, DefaultTieThreshold, New(math.NaN()).TieThreshold)
	assert.Equal(t, 2.5, New(2.5).TieThreshold)
	assert.Equal(t, 0.0, New(0).TieThreshold)
}

func TestZeroThresholdOnlyExactTies(t *testing.T) {
	res, err := New(0).Classify(pcts("A", 52.0, "B", 48.0), ref, nil)
	require.NoError(t, err)
	assert.Equal(t, Primary, res.Classification)
	assert.Equal(t, "A", res.Primary)

	res, err = New(0).Classify(pcts("A", 50.0, "B", 50.0), ref, nil)
	require.NoError(t, err)
	assert.Equal(t, Hybrid, res.Classification)
}

func TestResultJSON(t *testing.T) {
	res, err := Classify(pcts("Sirius", 50.0, "Lyra", 50.0), ref, nil)
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "hybrid", doc["classification"])
	assert.Equal(t, []any{"Sirius", "Lyra"}, doc["hybrid"])
	assert.NotContains(t, doc, "primary")
	assert.NotContains(t, doc, "Ranked")
	meta := doc["meta"].(map[string]any)
	assert.Equal(t, "test-1.0", meta["ruleSetVersion"])
	assert.NotContains(t, meta, "inputHash")
}
