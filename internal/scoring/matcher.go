package scoring

import (
	"starsorter/internal/chart"
	"starsorter/internal/logging"
	"starsorter/internal/refdata"
)

// Contribution is one (rule, category, weight) match.
type Contribution struct {
	RuleID     string
	Category   string
	Key        string
	Label      string
	Weight     float64
	Rationale  string
	Sources    []string
	Confidence int
}

// Match evaluates every rule against x and groups the resulting
// contributions by category. Condition fields are independent:
//
//   - typeAny, authorityAny, profileAny test exact membership of the
//     chart's scalar value.
//   - centersAny fires once per listed center the chart defines.
//   - channelsAny "A-B" fires when both A and B are in the chart's gates;
//     the chart's channel list is not consulted.
//   - gatesAny fires once per listed gate the chart has.
//
// Each firing emits one contribution per category the rule weights.
func Match(x *chart.Extract, rs *refdata.RuleSet) map[string][]Contribution {
	x = orEmpty(x)
	out := make(map[string][]Contribution)
	if rs == nil {
		return out
	}
	gates := x.GateSet()
	centers := x.CenterSet()

	for _, r := range rs.Rules {
		for _, a := range matchRule(r.If, x, gates, centers) {
			for _, w := range r.Weights {
				out[w.Category] = append(out[w.Category], Contribution{
					RuleID:     r.ID,
					Category:   w.Category,
					Key:        a.Key(),
					Label:      a.Label(),
					Weight:     w.Weight,
					Rationale:  r.Rationale,
					Sources:    r.Sources,
					Confidence: r.Confidence,
				})
			}
		}
	}
	return out
}

// matchRule returns the attribute behind each firing of c, in field order.
func matchRule(c refdata.Conditions, x *chart.Extract, gates map[int]struct{}, centers map[string]struct{}) []chart.Attribute {
	var hits []chart.Attribute
	scalar := func(kind chart.Kind, list []string, value string) {
		if value == "" {
			return
		}
		for _, v := range list {
			if v == value {
				hits = append(hits, chart.NewAttribute(kind, value))
				return
			}
		}
	}
	scalar(chart.KindType, c.TypeAny, x.Type)
	scalar(chart.KindAuthority, c.AuthorityAny, x.Authority)
	scalar(chart.KindProfile, c.ProfileAny, x.Profile)

	seenCenter := make(map[string]bool)
	for _, center := range c.CentersAny {
		if _, ok := centers[center]; ok && !seenCenter[center] {
			seenCenter[center] = true
			hits = append(hits, chart.NewAttribute(chart.KindCenter, center))
		}
	}
	seenChannel := make(map[string]bool)
	for _, ch := range c.ChannelsAny {
		a, b, ok := chart.Channel(ch).Gates()
		if !ok || seenChannel[ch] {
			continue
		}
		_, hasA := gates[a]
		_, hasB := gates[b]
		if hasA && hasB {
			seenChannel[ch] = true
			hits = append(hits, chart.NewAttribute(chart.KindChannel, ch))
		}
	}
	seenGate := make(map[int]bool)
	for _, g := range c.GatesAny {
		if _, ok := gates[g]; ok && !seenGate[g] {
			seenGate[g] = true
			hits = append(hits, chart.GateAttribute(g))
		}
	}
	return hits
}

// RuleScorer is the condition-based strategy.
type RuleScorer struct {
	Rules *refdata.RuleSet
	// Universe fixes output order and membership. Empty means the rule
	// set's categories.
	Universe []string
}

// NewRuleScorer returns a rule scorer over rs.
func NewRuleScorer(rs *refdata.RuleSet, universe []string) *RuleScorer {
	return &RuleScorer{Rules: rs, Universe: universe}
}

// Strategy implements Scorer.
func (s *RuleScorer) Strategy() Strategy { return StrategyRules }

// Score implements Scorer.
func (s *RuleScorer) Score(x *chart.Extract) []CategoryScore {
	universe := s.Universe
	if len(universe) == 0 {
		universe = s.Rules.CategoryIDs()
	}
	t := newTally(universe)

	matches := Match(x, s.Rules)
	n := 0
	for _, cat := range s.Rules.CategoryIDs() {
		for _, m := range matches[cat] {
			t.addCore(cat, m.contributor())
			n++
		}
	}
	out := t.finish()
	logging.ScoringDebug("rules: %d contributions over %d categories", n, len(out))
	return out
}

func (m Contribution) contributor() Contributor {
	return Contributor{
		Key:        m.Key,
		Label:      m.Label,
		Weight:     m.Weight,
		RuleID:     m.RuleID,
		Rationale:  m.Rationale,
		Sources:    append([]string(nil), m.Sources...),
		Confidence: m.Confidence,
	}
}

// ScoreByRules scores x against a rule set.
func ScoreByRules(x *chart.Extract, rs *refdata.RuleSet) []CategoryScore {
	return NewRuleScorer(rs, nil).Score(x)
}
