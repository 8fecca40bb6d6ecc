// Package classify turns normalized category scores into a primary or
// hybrid classification with allies and full contributor provenance.
package classify

import (
	"errors"
	"fmt"
	"math"

	"starsorter/internal/chart"
	"starsorter/internal/logging"
	"starsorter/internal/provenance"
	"starsorter/internal/scoring"
)

// DefaultTieThreshold is the hybrid window in percentage points.
const DefaultTieThreshold = 6.0

// MaxAllies is the number of top categories reported as allies.
const MaxAllies = 3

// ErrEmptyScores is returned when classify receives no category scores.
// Callers must always pass the full category universe.
var ErrEmptyScores = errors.New("no category scores to classify")

// Classification is the outcome kind.
type Classification string

const (
	Primary Classification = "primary"
	Hybrid  Classification = "hybrid"
	// Unresolved is kept for result compatibility. The primary/hybrid rule
	// is exhaustive, so Classify never produces it.
	Unresolved Classification = "unresolved"
)

// Ally is one of the top categories by percentage.
type Ally struct {
	Category   string  `json:"category"`
	Percentage float64 `json:"percentage"`
}

// Meta identifies the reference data and input a result was computed from.
type Meta struct {
	RuleSetVersion string `json:"ruleSetVersion"`
	RuleSetHash    string `json:"ruleSetHash"`
	InputHash      string `json:"inputHash,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
}

// RefMeta returns the reference-data part of m.
func (m Meta) RefMeta() provenance.RefMeta {
	return provenance.RefMeta{RuleSetVersion: m.RuleSetVersion, RuleSetHash: m.RuleSetHash}
}

// Result is a classification with everything needed to explain it.
type Result struct {
	Classification Classification `json:"classification"`
	Primary        string         `json:"primary,omitempty"`
	Hybrid         *[2]string     `json:"hybrid,omitempty"`
	Allies         []Ally         `json:"allies"`
	// Percentages and Contributors cover every category, not only winners.
	Percentages  map[string]float64               `json:"percentages"`
	Contributors map[string][]scoring.Contributor `json:"contributors"`
	// Ranked is every category score in percentage order.
	Ranked []scoring.CategoryScore `json:"-"`
	Meta   Meta                    `json:"meta"`
}

// Winners returns the primary category, or both hybrid categories.
func (r *Result) Winners() []string {
	switch {
	case r.Hybrid != nil:
		return []string{r.Hybrid[0], r.Hybrid[1]}
	case r.Primary != "":
		return []string{r.Primary}
	default:
		return nil
	}
}

// Classifier applies the tie-threshold rule.
type Classifier struct {
	// TieThreshold is the largest gap, in percentage points, between the two
	// leading categories that still counts as a hybrid.
	TieThreshold float64
}

// New returns a classifier. A negative or NaN threshold means
// DefaultTieThreshold; zero makes only exact ties hybrid.
func New(tieThreshold float64) *Classifier {
	if math.IsNaN(tieThreshold) || tieThreshold < 0 {
		tieThreshold = DefaultTieThreshold
	}
	return &Classifier{TieThreshold: tieThreshold}
}

// Classify ranks scores by percentage and decides primary vs hybrid.
// Percentages are compared in whole hundredths so the boundary is exact:
// a gap equal to the threshold is a hybrid. x is optional; when given, its
// fingerprint is recorded in the result.
func (c *Classifier) Classify(scores []scoring.CategoryScore, ref provenance.RefMeta, x *chart.Extract) (*Result, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyScores
	}

	ranked := scoring.ByPercentage(scores)
	res := &Result{
		Allies:       make([]Ally, 0, MaxAllies),
		Percentages:  make(map[string]float64, len(ranked)),
		Contributors: make(map[string][]scoring.Contributor, len(ranked)),
		Ranked:       ranked,
		Meta: Meta{
			RuleSetVersion: ref.RuleSetVersion,
			RuleSetHash:    ref.RuleSetHash,
		},
	}
	if x != nil {
		res.Meta.InputHash = provenance.InputHash(x)
	}

	first := ranked[0]
	gap := int64(-1)
	if len(ranked) > 1 {
		gap = scoring.Cents(first.Percentage) - scoring.Cents(ranked[1].Percentage)
	}
	if len(ranked) == 1 || gap > scoring.Cents(c.TieThreshold) {
		res.Classification = Primary
		res.Primary = first.Category
	} else {
		res.Classification = Hybrid
		res.Hybrid = &[2]string{first.Category, ranked[1].Category}
	}

	for i, s := range ranked {
		if i < MaxAllies {
			res.Allies = append(res.Allies, Ally{Category: s.Category, Percentage: s.Percentage})
		}
		res.Percentages[s.Category] = s.Percentage
		cs := append([]scoring.Contributor{}, s.Contributors...)
		scoring.SortContributors(cs)
		res.Contributors[s.Category] = cs
	}

	logging.ClassifyDebug("%s: lead %s %.2f%% gap=%s threshold=%.2f",
		res.Classification, first.Category, first.Percentage, formatGap(gap), c.TieThreshold)
	return res, nil
}

func formatGap(cents int64) string {
	if cents < 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// Classify classifies with the default tie threshold.
func Classify(scores []scoring.CategoryScore, ref provenance.RefMeta, x *chart.Extract) (*Result, error) {
	return New(DefaultTieThreshold).Classify(scores, ref, x)
}
