package refdata

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"starsorter/internal/provenance"
)

// Snapshot is one consistent, immutable set of reference data. Any of the
// datasets may be nil when a deployment only uses some scoring strategies.
type Snapshot struct {
	ID       uuid.UUID
	LoadedAt time.Time

	Rules     *RuleSet
	GateLines *GateLineMap
	Weights   *WeightTable
	Sparsify  SparsifyConfig

	universe []string
	meta     provenance.RefMeta
}

// NewSnapshot bundles datasets, derives the category universe and
// fingerprints the whole set. sparsify is deep-copied.
func NewSnapshot(rules *RuleSet, lines *GateLineMap, weights *WeightTable, sparsify SparsifyConfig) *Snapshot {
	s := &Snapshot{
		ID:        uuid.New(),
		LoadedAt:  time.Now(),
		Rules:     rules,
		GateLines: lines,
		Weights:   weights,
		Sparsify:  sparsify.Clone(),
	}
	s.universe = mergeCategories(rules.CategoryIDs(), lines.Categories(), weights.Categories())
	s.meta = provenance.RefMeta{
		RuleSetVersion: firstNonEmpty(rules.versionOrEmpty(), lines.Version(), weights.Version()),
		RuleSetHash:    s.contentHash(),
	}
	return s
}

func (rs *RuleSet) versionOrEmpty() string {
	if rs == nil {
		return ""
	}
	return rs.Version
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mergeCategories(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, c := range list {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *Snapshot) contentHash() string {
	sparsifyHash, _ := provenance.HashCanonical(s.Sparsify)
	doc := struct {
		Rules     string `json:"rules"`
		GateLines string `json:"gate_lines"`
		Weights   string `json:"weights"`
		Sparsify  string `json:"sparsify"`
	}{
		Rules:     s.Rules.Hash(),
		GateLines: s.GateLines.Hash(),
		Weights:   s.Weights.Hash(),
		Sparsify:  sparsifyHash,
	}
	h, err := provenance.HashCanonical(doc)
	if err != nil {
		return ""
	}
	return h
}

// Universe is the full category universe in canonical order: rule-set
// categories, then gate-line categories, then weight-table categories.
func (s *Snapshot) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Meta identifies this snapshot for staleness checks.
func (s *Snapshot) Meta() provenance.RefMeta {
	return s.meta
}

// TieThresholdPct returns the rule set's tie threshold, or fallback when the
// snapshot carries none.
func (s *Snapshot) TieThresholdPct(fallback float64) float64 {
	if s.Rules != nil && s.Rules.TieThresholdPct > 0 {
		return s.Rules.TieThresholdPct
	}
	return fallback
}

// Store holds the current snapshot. Readers take the pointer once per call
// and keep using it; Swap replaces it atomically so in-flight work never sees
// a half-updated set.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store serving s.
func NewStore(s *Snapshot) *Store {
	st := &Store{}
	st.current.Store(s)
	return st
}

// Current returns the snapshot in service.
func (st *Store) Current() *Snapshot {
	return st.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (st *Store) Swap(next *Snapshot) *Snapshot {
	return st.current.Swap(next)
}
