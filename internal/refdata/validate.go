package refdata

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"starsorter/internal/chart"
)

// ErrInvalid marks structurally invalid reference data.
var ErrInvalid = errors.New("invalid reference data")

// ValidationError lists every problem found in one reference source.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d problem(s): %s", e.Source, len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

type problems struct {
	source string
	list   []string
}

func (p *problems) add(format string, args ...any) {
	p.list = append(p.list, fmt.Sprintf(format, args...))
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return &ValidationError{Source: p.source, Problems: p.list}
}

// ValidateRuleSet checks ids, weights, confidence and condition values.
func ValidateRuleSet(rs *RuleSet) error {
	p := &problems{source: "rule set"}
	if rs == nil {
		p.add("missing")
		return p.err()
	}
	if rs.Version == "" {
		p.add("version is required")
	}
	if rs.TieThresholdPct < 0 || math.IsNaN(rs.TieThresholdPct) {
		p.add("tieThresholdPct must be >= 0, got %v", rs.TieThresholdPct)
	}

	categories := make(map[string]bool, len(rs.Categories))
	for _, c := range rs.Categories {
		if c.ID == "" {
			p.add("category with empty id")
			continue
		}
		if categories[c.ID] {
			p.add("duplicate category id %q", c.ID)
		}
		categories[c.ID] = true
	}

	sources := make(map[string]bool, len(rs.Sources))
	for _, s := range rs.Sources {
		if s.ID == "" {
			p.add("source with empty id")
			continue
		}
		if sources[s.ID] {
			p.add("duplicate source id %q", s.ID)
		}
		sources[s.ID] = true
	}

	if len(rs.Rules) == 0 {
		p.add("at least one rule is required")
	}
	ruleIDs := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.ID == "" {
			p.add("rule with empty id")
			continue
		}
		if ruleIDs[r.ID] {
			p.add("duplicate rule id %q", r.ID)
		}
		ruleIDs[r.ID] = true

		if len(r.Weights) == 0 {
			p.add("rule %s: at least one category weight is required", r.ID)
		}
		for _, w := range r.Weights {
			if len(categories) > 0 && !categories[w.Category] {
				p.add("rule %s: unknown category %q", r.ID, w.Category)
			}
			if !(w.Weight > 0) || math.IsInf(w.Weight, 0) {
				p.add("rule %s: weight for %q must be positive, got %v", r.ID, w.Category, w.Weight)
			}
		}
		if r.Confidence < 1 || r.Confidence > 5 {
			p.add("rule %s: confidence must be 1-5, got %d", r.ID, r.Confidence)
		}
		if r.If.Empty() {
			p.add("rule %s: no conditions", r.ID)
		}
		for _, g := range r.If.GatesAny {
			if g < 1 || g > MaxGate {
				p.add("rule %s: gate %d out of range", r.ID, g)
			}
		}
		for _, ch := range r.If.ChannelsAny {
			a, b, ok := chart.Channel(ch).Gates()
			if !ok || a < 1 || a > MaxGate || b < 1 || b > MaxGate {
				p.add("rule %s: channel %q is not gate-gate", r.ID, ch)
			}
		}
		if len(sources) > 0 {
			for _, s := range r.Sources {
				if !sources[s] {
					p.add("rule %s: unknown source %q", r.ID, s)
				}
			}
		}
	}
	return p.err()
}

// ValidateGateLineMap checks key ranges, weight bounds and categories.
func ValidateGateLineMap(m *GateLineMap) error {
	p := &problems{source: "gate-line map"}
	if m == nil {
		p.add("missing")
		return p.err()
	}
	for _, k := range m.Keys() {
		if !k.Valid() {
			p.add("key %s out of range", k)
		}
		for _, e := range m.lines[k] {
			if e.Category == "" {
				p.add("%s: entry with empty category", k)
			}
			if e.Weight < 0 || e.Weight > 1 || math.IsNaN(e.Weight) {
				p.add("%s/%s: weight must be within [0,1], got %v", k, e.Category, e.Weight)
			}
			if e.Polarity != PolarityCore && e.Polarity != PolaritySecondary {
				p.add("%s/%s: unknown polarity %q", k, e.Category, e.Polarity)
			}
		}
	}
	return p.err()
}

// ValidateWeightTable checks that every weight is a finite non-negative
// number.
func ValidateWeightTable(t *WeightTable) error {
	p := &problems{source: "weight table"}
	if t == nil {
		p.add("missing")
		return p.err()
	}
	for _, cat := range t.Categories() {
		for a, w := range t.weights[cat] {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				p.add("%s/%s: weight must be a finite number >= 0, got %v", cat, a.Key(), w)
			}
		}
	}
	return p.err()
}
