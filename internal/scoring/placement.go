package scoring

import (
	"fmt"
	"math"
	"sort"

	"starsorter/internal/chart"
	"starsorter/internal/logging"
	"starsorter/internal/refdata"
)

// Weighted is a category with a line-local weight.
type Weighted struct {
	Category  string  `json:"category"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale,omitempty"`
	Rescued   bool    `json:"rescued,omitempty"`
}

// SparseLine is the surviving weights of one gate.line after sparsify.
// Weights within each polarity sum to 1, except rescued entries which keep
// their original line weight.
type SparseLine struct {
	Core      []Weighted `json:"core"`
	Secondary []Weighted `json:"secondary"`
}

// For returns the kept entries for p.
func (l SparseLine) For(p refdata.Polarity) []Weighted {
	if p == refdata.PolaritySecondary {
		return l.Secondary
	}
	return l.Core
}

func (l *SparseLine) set(p refdata.Polarity, ws []Weighted) {
	if p == refdata.PolaritySecondary {
		l.Secondary = ws
	} else {
		l.Core = ws
	}
}

// Sparsify sharpens, prunes and renormalizes one line's entries, each
// polarity on its own:
//
//  1. raise every weight to cfg.Gamma;
//  2. drop entries below max*rel_floor or below min_abs;
//  3. keep at most top_k, stopping once the kept mass reaches top_p of
//     what survived step 2;
//  4. rescale the kept weights to sum to 1.
//
// rank orders equal weights; nil falls back to category name.
func Sparsify(entries []refdata.LineEntry, cfg *refdata.SparsifyConfig, rank func(string) int) SparseLine {
	var out SparseLine
	for _, pol := range refdata.Polarities {
		var arr []Weighted
		for _, e := range entries {
			if e.Polarity != pol {
				continue
			}
			arr = append(arr, Weighted{Category: e.Category, Weight: math.Pow(e.Weight, cfg.Gamma), Rationale: e.Rationale})
		}
		if len(arr) == 0 {
			continue
		}
		sort.SliceStable(arr, func(i, j int) bool {
			if arr[i].Weight != arr[j].Weight {
				return arr[i].Weight > arr[j].Weight
			}
			if rank != nil {
				if ri, rj := rank(arr[i].Category), rank(arr[j].Category); ri != rj {
					return ri < rj
				}
			}
			return arr[i].Category < arr[j].Category
		})

		pc := cfg.PerPolarity.For(pol)
		top := arr[0].Weight
		filtered := arr[:0:0]
		for _, w := range arr {
			if w.Weight >= pc.MinAbs && w.Weight >= top*pc.RelFloor {
				filtered = append(filtered, w)
			}
		}

		topK := pc.TopK
		if topK <= 0 {
			topK = len(filtered)
		}
		topP := pc.TopP
		if topP <= 0 {
			topP = 1
		}
		sumAll := 0.0
		for _, w := range filtered {
			sumAll += w.Weight
		}
		if sumAll == 0 {
			sumAll = 1
		}

		var kept []Weighted
		cum := 0.0
		for _, w := range filtered {
			if len(kept) >= topK {
				break
			}
			kept = append(kept, w)
			cum += w.Weight
			if cum/sumAll >= topP {
				break
			}
		}

		s := 0.0
		for _, k := range kept {
			s += k.Weight
		}
		if s == 0 {
			s = 1
		}
		for i := range kept {
			kept[i].Weight /= s
		}
		out.set(pol, kept)
	}
	return out
}

// PlacementScorer is the placement strategy: each placement is scored from
// exactly its own gate.line entry, sparsified, weighted by planet and role,
// and accumulated per polarity.
type PlacementScorer struct {
	Lines  *refdata.GateLineMap
	Config refdata.SparsifyConfig
	// Universe fixes output order and membership. Empty means the map's
	// categories.
	Universe []string
}

// NewPlacementScorer returns a placement scorer. cfg nil means
// refdata.DefaultSparsifyConfig. The config is copied.
func NewPlacementScorer(lines *refdata.GateLineMap, cfg *refdata.SparsifyConfig, universe []string) *PlacementScorer {
	c := refdata.DefaultSparsifyConfig()
	if cfg != nil {
		c = cfg.Clone()
	}
	return &PlacementScorer{Lines: lines, Config: c, Universe: universe}
}

// Strategy implements Scorer.
func (s *PlacementScorer) Strategy() Strategy { return StrategyPlacements }

// Score implements Scorer. Placements are processed in input order and
// categories in canonical order so float sums are reproducible.
func (s *PlacementScorer) Score(x *chart.Extract) []CategoryScore {
	x = orEmpty(x)
	universe := s.Universe
	if len(universe) == 0 {
		universe = s.Lines.Categories()
	}
	t := newTally(universe)
	cfg := &s.Config
	log := logging.Get(logging.CategoryPlacement)

	rescued := s.rescued(x.Placements)

	for i := range x.Placements {
		p := x.Placements[i]
		entries := s.Lines.Lookup(p.Gate, p.Line)
		if len(entries) == 0 {
			log.Debug("%s %s: no entries for %s", p.Planet, p.Role, p.Key())
			continue
		}
		for _, e := range entries {
			t.get(e.Category)
		}

		line := Sparsify(entries, cfg, t.rank)
		if len(rescued) > 0 {
			line.Core = s.rescue(line.Core, entries, rescued, t.rank)
		}

		pw := cfg.PlanetWeight(p.Role, p.Planet)
		for _, k := range line.Core {
			t.addCore(k.Category, placementContributor(&p, k, refdata.PolarityCore, k.Weight*pw))
		}
		sm := cfg.SecondaryLineMultiplier(p.Line)
		for _, k := range line.Secondary {
			t.addSecondary(k.Category, placementContributor(&p, k, refdata.PolaritySecondary, k.Weight*pw*sm))
		}
		log.Debug("%s %s %s: kept core=%d secondary=%d of %d (planet x%.2f)",
			p.Planet, p.Role, p.Key(), len(line.Core), len(line.Secondary), len(entries), pw)
	}
	return t.finish()
}

// rescued returns categories that reach core at or above the rescue weight
// on at least the configured number of placements, before sharpening.
func (s *PlacementScorer) rescued(placements []chart.Placement) map[string]bool {
	rc := s.Config.ConsistencyRescue
	if rc == nil {
		return nil
	}
	counts := make(map[string]int)
	for _, p := range placements {
		seen := make(map[string]bool)
		for _, e := range s.Lines.Lookup(p.Gate, p.Line) {
			if e.Polarity == refdata.PolarityCore && e.Weight >= rc.MinWeight && !seen[e.Category] {
				seen[e.Category] = true
				counts[e.Category]++
			}
		}
	}
	var out map[string]bool
	for cat, n := range counts {
		if n >= rc.MinPlacements {
			if out == nil {
				out = make(map[string]bool)
			}
			out[cat] = true
		}
	}
	if len(out) > 0 {
		logging.PlacementDebug("consistency rescue armed for %d categories", len(out))
	}
	return out
}

// rescue re-inserts rescued categories that were pruned from core on this
// line, at their original unsharpened weight.
func (s *PlacementScorer) rescue(core []Weighted, entries []refdata.LineEntry, rescued map[string]bool, rank func(string) int) []Weighted {
	kept := make(map[string]bool, len(core))
	for _, k := range core {
		kept[k.Category] = true
	}
	var add []Weighted
	for _, e := range entries {
		if e.Polarity != refdata.PolarityCore || !rescued[e.Category] || kept[e.Category] {
			continue
		}
		if e.Weight < s.Config.ConsistencyRescue.MinWeight {
			continue
		}
		kept[e.Category] = true
		add = append(add, Weighted{Category: e.Category, Weight: e.Weight, Rationale: e.Rationale, Rescued: true})
	}
	sort.SliceStable(add, func(i, j int) bool { return rank(add[i].Category) < rank(add[j].Category) })
	return append(core, add...)
}

func placementContributor(p *chart.Placement, k Weighted, pol refdata.Polarity, w float64) Contributor {
	pl := *p
	return Contributor{
		Key:       p.Key(),
		Label:     fmt.Sprintf("%s (%s) · Gate %s", p.Planet, p.Role, p.Key()),
		Weight:    w,
		Polarity:  pol,
		Rationale: k.Rationale,
		Placement: &pl,
		Rescued:   k.Rescued,
	}
}

// ScoreByPlacements scores x's placements against a gate-line map. cfg nil
// means refdata.DefaultSparsifyConfig.
func ScoreByPlacements(x *chart.Extract, lines *refdata.GateLineMap, cfg *refdata.SparsifyConfig) []CategoryScore {
	return NewPlacementScorer(lines, cfg, nil).Score(x)
}

// Dropped is a line entry that did not survive sparsify.
type Dropped struct {
	Category string           `json:"category"`
	Weight   float64          `json:"weight"`
	Polarity refdata.Polarity `json:"polarity"`
}

// LineInspection is a debug view of one gate.line under a config.
type LineInspection struct {
	Gate          int        `json:"gate"`
	Line          int        `json:"line"`
	Found         bool       `json:"found"`
	KeptCore      []Weighted `json:"keptCore"`
	KeptSecondary []Weighted `json:"keptSecondary"`
	Dropped       []Dropped  `json:"dropped"`
}

// InspectPlacement shows what sparsify keeps and drops for one gate.line.
// Rescue is not applied; it depends on the whole chart.
func InspectPlacement(gate, line int, lines *refdata.GateLineMap, cfg *refdata.SparsifyConfig) LineInspection {
	if cfg == nil {
		def := refdata.DefaultSparsifyConfig()
		cfg = &def
	}
	out := LineInspection{Gate: gate, Line: line}
	entries := lines.Lookup(gate, line)
	if len(entries) == 0 {
		return out
	}
	out.Found = true

	rankOf := make(map[string]int)
	for i, c := range lines.Categories() {
		rankOf[c] = i
	}
	sl := Sparsify(entries, cfg, func(c string) int {
		if r, ok := rankOf[c]; ok {
			return r
		}
		return len(rankOf)
	})
	out.KeptCore = sl.Core
	out.KeptSecondary = sl.Secondary

	for _, e := range entries {
		found := false
		for _, k := range sl.For(e.Polarity) {
			if k.Category == e.Category {
				found = true
				break
			}
		}
		if !found {
			out.Dropped = append(out.Dropped, Dropped{Category: e.Category, Weight: e.Weight, Polarity: e.Polarity})
		}
	}
	return out
}
