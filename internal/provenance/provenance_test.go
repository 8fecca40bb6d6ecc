package provenance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starsorter/internal/chart"
)

func sampleChart() *chart.Extract {
	return &chart.Extract{
		Type:      "Manifestor",
		Authority: "Emotional",
		Profile:   "1/3",
		Centers:   []string{"Throat", "Ego", "Solar Plexus", "G"},
		Channels:  []chart.Channel{"34-57", "10-20", "1-8", "13-33"},
		Gates:     []int{57, 1, 34, 20, 10, 8, 13, 33},
		Placements: []chart.Placement{
			{Planet: "Sun", Gate: 1, Line: 1, Role: chart.RolePersonality},
			{Planet: "Earth", Gate: 2, Line: 1, Role: chart.RolePersonality},
			{Planet: "Moon", Gate: 13, Line: 4, Role: chart.RoleDesign},
		},
	}
}

func TestInputHash_OrderInvariant(t *testing.T) {
	base := sampleChart()
	want := InputHash(base)
	require.Len(t, want, HashLength)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		x := sampleChart()
		rng.Shuffle(len(x.Centers), func(a, b int) { x.Centers[a], x.Centers[b] = x.Centers[b], x.Centers[a] })
		rng.Shuffle(len(x.Channels), func(a, b int) { x.Channels[a], x.Channels[b] = x.Channels[b], x.Channels[a] })
		rng.Shuffle(len(x.Gates), func(a, b int) { x.Gates[a], x.Gates[b] = x.Gates[b], x.Gates[a] })
		rng.Shuffle(len(x.Placements), func(a, b int) { x.Placements[a], x.Placements[b] = x.Placements[b], x.Placements[a] })
		assert.Equal(t, want, InputHash(x), "permutation %d changed the hash", i)
	}
}

func TestInputHash_DetectsChanges(t *testing.T) {
	base := InputHash(sampleChart())

	changed := sampleChart()
	changed.Gates = append(changed.Gates, 64)
	assert.NotEqual(t, base, InputHash(changed))

	changed = sampleChart()
	changed.Profile = "3/5"
	assert.NotEqual(t, base, InputHash(changed))

	changed = sampleChart()
	changed.Placements[0].Line = 2
	assert.NotEqual(t, base, InputHash(changed))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	x := sampleChart()
	_ = Normalize(x)
	assert.Equal(t, sampleChart(), x)

	n := Normalize(x)
	assert.Equal(t, []int{1, 8, 10, 13, 20, 33, 34, 57}, n.Gates)
	assert.Equal(t, []string{"Ego", "G", "Solar Plexus", "Throat"}, n.Centers)
	assert.Equal(t, []chart.Channel{"1-8", "10-20", "13-33", "34-57"}, n.Channels)
}

func TestNormalize_Nil(t *testing.T) {
	assert.NotNil(t, Normalize(nil))
	assert.Equal(t, InputHash(&chart.Extract{}), InputHash(nil))
}

func TestRefMetaStale(t *testing.T) {
	m := RefMeta{RuleSetVersion: "1.0", RuleSetHash: "aaaa"}
	assert.False(t, m.Stale(m))
	assert.True(t, m.Stale(RefMeta{RuleSetVersion: "1.0", RuleSetHash: "bbbb"}))
	assert.True(t, m.Stale(RefMeta{RuleSetVersion: "1.1", RuleSetHash: "aaaa"}))
}

func TestHashCanonical(t *testing.T) {
	a, err := HashCanonical(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	b, err := HashCanonical(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = HashCanonical(func() {})
	assert.Error(t, err)
}
