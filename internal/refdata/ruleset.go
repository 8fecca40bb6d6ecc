// Package refdata holds the immutable reference data the scoring engine reads:
// the condition-based rule set, the gate-line category map, the flat weight
// table and the sparsify configuration. It also provides the loader that
// parses and validates these from files, a Snapshot bundling one consistent
// set of them, a Store for atomic hot swaps, and a file watcher that reloads
// on change.
//
// Values in this package are never mutated after construction and are safe to
// share across goroutines without locking.
package refdata

import (
	"sort"

	"starsorter/internal/provenance"
)

// CategoryInfo describes one classification category.
type CategoryInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Source is a citation a rule can point at.
type Source struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Year     int    `json:"year,omitempty"`
	Disputed bool   `json:"disputed,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Conditions are the disjunctive match fields of a rule. Each non-empty
// field is evaluated independently against the chart.
type Conditions struct {
	TypeAny      []string `json:"typeAny,omitempty"`
	AuthorityAny []string `json:"authorityAny,omitempty"`
	ProfileAny   []string `json:"profileAny,omitempty"`
	CentersAny   []string `json:"centersAny,omitempty"`
	ChannelsAny  []string `json:"channelsAny,omitempty"`
	GatesAny     []int    `json:"gatesAny,omitempty"`
}

// Empty reports whether no condition field is set.
func (c Conditions) Empty() bool {
	return len(c.TypeAny) == 0 && len(c.AuthorityAny) == 0 && len(c.ProfileAny) == 0 &&
		len(c.CentersAny) == 0 && len(c.ChannelsAny) == 0 && len(c.GatesAny) == 0
}

// CategoryWeight is the contribution a rule assigns to one category.
type CategoryWeight struct {
	Category string  `json:"id"`
	Weight   float64 `json:"w"`
}

// Rule maps chart conditions to weighted category contributions.
type Rule struct {
	ID         string           `json:"id"`
	If         Conditions       `json:"if"`
	Weights    []CategoryWeight `json:"systems"`
	Rationale  string           `json:"rationale"`
	Sources    []string         `json:"sources"`
	Confidence int              `json:"confidence"`
	Synergy    bool             `json:"synergy,omitempty"`
}

// RuleSet is a versioned, id-sorted collection of rules.
type RuleSet struct {
	Version         string
	TieThresholdPct float64
	Categories      []CategoryInfo
	Sources         []Source
	Rules           []Rule

	hash string
}

// NewRuleSet builds a rule set, sorting rules by id and fingerprinting them.
// The slices are copied; the caller may reuse its inputs.
func NewRuleSet(version string, tieThresholdPct float64, categories []CategoryInfo, sources []Source, rules []Rule) *RuleSet {
	rs := &RuleSet{
		Version:         version,
		TieThresholdPct: tieThresholdPct,
		Categories:      append([]CategoryInfo(nil), categories...),
		Sources:         append([]Source(nil), sources...),
		Rules:           append([]Rule(nil), rules...),
	}
	sort.SliceStable(rs.Rules, func(i, j int) bool { return rs.Rules[i].ID < rs.Rules[j].ID })
	rs.hash = hashRules(rs.Rules)
	return rs
}

func hashRules(rules []Rule) string {
	h, err := provenance.HashCanonical(rules)
	if err != nil {
		return ""
	}
	return h
}

// Hash is the fingerprint of the sorted rules.
func (rs *RuleSet) Hash() string {
	if rs == nil {
		return ""
	}
	if rs.hash == "" {
		return hashRules(rs.Rules)
	}
	return rs.hash
}

// CategoryIDs returns declared categories in declaration order, followed by
// any category a rule references without declaring it, in rule order.
func (rs *RuleSet) CategoryIDs() []string {
	if rs == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, c := range rs.Categories {
		add(c.ID)
	}
	for _, r := range rs.Rules {
		for _, w := range r.Weights {
			add(w.Category)
		}
	}
	return ids
}
