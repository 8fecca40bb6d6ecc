package scoring

import (
	"starsorter/internal/chart"
	"starsorter/internal/logging"
	"starsorter/internal/refdata"
)

// WeightScorer is the flat-weight strategy: each chart attribute present in
// a category's weight table adds that weight. Only positive weights count.
//
// Table keys that no chart can produce, such as "channel_34_57", never
// match. Charts emit one channel attribute per channel value and one gate
// attribute per gate.
type WeightScorer struct {
	Table *refdata.WeightTable
	// Universe fixes output order and membership. Empty means the table's
	// categories.
	Universe []string
}

// NewWeightScorer returns a flat-weight scorer over table.
func NewWeightScorer(table *refdata.WeightTable, universe []string) *WeightScorer {
	return &WeightScorer{Table: table, Universe: universe}
}

// Strategy implements Scorer.
func (s *WeightScorer) Strategy() Strategy { return StrategyWeights }

// Score implements Scorer.
func (s *WeightScorer) Score(x *chart.Extract) []CategoryScore {
	universe := s.Universe
	if len(universe) == 0 {
		universe = s.Table.Categories()
	}
	t := newTally(universe)

	attrs := uniqueAttributes(orEmpty(x).Attributes())
	for _, cat := range s.Table.Categories() {
		t.get(cat)
	}
	for i := range t.scores {
		cat := t.scores[i].Category
		for _, a := range attrs {
			w, ok := s.Table.Weight(cat, a)
			if !ok || !(w > 0) {
				continue
			}
			t.addCore(cat, Contributor{Key: a.Key(), Label: a.Label(), Weight: w})
		}
	}

	out := t.finish()
	logging.ScoringDebug("weights: %d attributes over %d categories", len(attrs), len(out))
	return out
}

// uniqueAttributes drops repeated attributes, keeping first occurrence.
func uniqueAttributes(attrs []chart.Attribute) []chart.Attribute {
	seen := make(map[chart.Attribute]bool, len(attrs))
	out := attrs[:0:0]
	for _, a := range attrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// ScoreByWeights scores x against a flat weight table.
func ScoreByWeights(x *chart.Extract, table *refdata.WeightTable) []CategoryScore {
	return NewWeightScorer(table, nil).Score(x)
}
