// Package scoring turns a chart extract into per-category scores.
//
// Three interchangeable strategies implement Scorer:
//
//   - WeightScorer sums a flat attribute weight table.
//   - RuleScorer matches condition-based rules and keeps their provenance.
//   - PlacementScorer scores exact gate.line placements with the
//     sparsify + sharpen algorithm.
//
// Every strategy returns one CategoryScore per category in canonical order
// with percentages produced by Normalize, so the classifier never needs to
// know which strategy ran. Scoring is pure: no I/O and no shared mutable
// state, so scorers are safe for concurrent use.
package scoring

import (
	"sort"

	"starsorter/internal/chart"
	"starsorter/internal/refdata"
)

// Contributor is one fact that added weight to a category.
type Contributor struct {
	Key        string           `json:"key"`
	Label      string           `json:"label"`
	Weight     float64          `json:"weight"`
	Polarity   refdata.Polarity `json:"polarity,omitempty"`
	RuleID     string           `json:"ruleId,omitempty"`
	Rationale  string           `json:"rationale,omitempty"`
	Sources    []string         `json:"sources,omitempty"`
	Confidence int              `json:"confidence,omitempty"`
	Placement  *chart.Placement `json:"placement,omitempty"`
	Rescued    bool             `json:"rescued,omitempty"`
}

// CategoryScore is one category's raw score, percentage and contributors.
// Flat and rule strategies credit everything to CoreScore.
type CategoryScore struct {
	Category       string        `json:"category"`
	CoreScore      float64       `json:"coreScore"`
	SecondaryScore float64       `json:"secondaryScore"`
	TotalScore     float64       `json:"totalScore"`
	Percentage     float64       `json:"percentage"`
	Contributors   []Contributor `json:"contributors"`
}

// Scorer is a scoring strategy.
type Scorer interface {
	Strategy() Strategy
	Score(x *chart.Extract) []CategoryScore
}

// tally accumulates scores in canonical category order: the universe first,
// then any category seen only while scoring, in first-seen order.
type tally struct {
	index  map[string]int
	scores []CategoryScore
}

func newTally(universe []string) *tally {
	t := &tally{
		index:  make(map[string]int, len(universe)),
		scores: make([]CategoryScore, 0, len(universe)),
	}
	for _, c := range universe {
		t.get(c)
	}
	return t
}

func (t *tally) get(category string) *CategoryScore {
	i, ok := t.index[category]
	if !ok {
		i = len(t.scores)
		t.index[category] = i
		t.scores = append(t.scores, CategoryScore{Category: category})
	}
	return &t.scores[i]
}

// rank is the canonical position of category; unknown categories sort last.
func (t *tally) rank(category string) int {
	if i, ok := t.index[category]; ok {
		return i
	}
	return len(t.scores)
}

func (t *tally) addCore(category string, c Contributor) {
	s := t.get(category)
	s.CoreScore += c.Weight
	s.Contributors = append(s.Contributors, c)
}

func (t *tally) addSecondary(category string, c Contributor) {
	s := t.get(category)
	s.SecondaryScore += c.Weight
	s.Contributors = append(s.Contributors, c)
}

// finish totals each category, orders contributors by weight and fills in
// percentages.
func (t *tally) finish() []CategoryScore {
	for i := range t.scores {
		s := &t.scores[i]
		s.TotalScore = s.CoreScore + s.SecondaryScore
		SortContributors(s.Contributors)
		if s.Contributors == nil {
			s.Contributors = []Contributor{}
		}
	}
	Normalize(t.scores)
	return t.scores
}

// SortContributors orders contributors by weight descending, keeping
// insertion order among equal weights.
func SortContributors(cs []Contributor) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Weight > cs[j].Weight })
}

// ByPercentage returns a copy of scores sorted by percentage descending.
// Ties keep canonical order.
func ByPercentage(scores []CategoryScore) []CategoryScore {
	out := append([]CategoryScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out
}

func orEmpty(x *chart.Extract) *chart.Extract {
	if x == nil {
		return &chart.Extract{}
	}
	return x
}
