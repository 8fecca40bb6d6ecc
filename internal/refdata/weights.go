package refdata

import (
	"sort"

	"starsorter/internal/chart"
	"starsorter/internal/provenance"
)

// WeightTable is the flat per-category attribute weight table.
type WeightTable struct {
	version string
	weights map[string]map[chart.Attribute]float64
	why     map[string]string
	hash    string
}

// NewWeightTable copies weights into an immutable table. why holds an
// optional per-category explanation.
func NewWeightTable(version string, weights map[string]map[chart.Attribute]float64, why map[string]string) *WeightTable {
	t := &WeightTable{
		version: version,
		weights: make(map[string]map[chart.Attribute]float64, len(weights)),
		why:     make(map[string]string, len(why)),
	}
	for cat, attrs := range weights {
		inner := make(map[chart.Attribute]float64, len(attrs))
		for a, w := range attrs {
			inner[a] = w
		}
		t.weights[cat] = inner
	}
	for cat, text := range why {
		t.why[cat] = text
	}
	t.hash = t.computeHash()
	return t
}

// Version of the table data.
func (t *WeightTable) Version() string {
	if t == nil {
		return ""
	}
	return t.version
}

// Categories returns the table's categories sorted by name.
func (t *WeightTable) Categories() []string {
	if t == nil {
		return nil
	}
	cats := make([]string, 0, len(t.weights))
	for c := range t.weights {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Weight returns the weight category assigns to attr.
func (t *WeightTable) Weight(category string, attr chart.Attribute) (float64, bool) {
	if t == nil {
		return 0, false
	}
	w, ok := t.weights[category][attr]
	return w, ok
}

// Why returns the category's explanation text, if any.
func (t *WeightTable) Why(category string) string {
	if t == nil {
		return ""
	}
	return t.why[category]
}

// Hash fingerprints the table contents.
func (t *WeightTable) Hash() string {
	if t == nil {
		return ""
	}
	return t.hash
}

func (t *WeightTable) computeHash() string {
	doc := struct {
		Version string                        `json:"version"`
		Weights map[string]map[string]float64 `json:"weights"`
	}{Version: t.version, Weights: make(map[string]map[string]float64, len(t.weights))}
	for cat, attrs := range t.weights {
		inner := make(map[string]float64, len(attrs))
		for a, w := range attrs {
			inner[a.Key()] = w
		}
		doc.Weights[cat] = inner
	}
	h, err := provenance.HashCanonical(doc)
	if err != nil {
		return ""
	}
	return h
}
