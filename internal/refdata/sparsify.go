package refdata

import (
	"fmt"
	"math"
	"strconv"

	"starsorter/internal/chart"
)

// PolarityConfig bounds how many categories one line may credit on a
// polarity.
type PolarityConfig struct {
	TopK     int     `json:"top_k" yaml:"top_k"`         // keep at most K; <= 0 means unlimited
	TopP     float64 `json:"top_p" yaml:"top_p"`         // stop once kept mass reaches this share; <= 0 means 1
	MinAbs   float64 `json:"min_abs" yaml:"min_abs"`     // absolute floor on sharpened weight
	RelFloor float64 `json:"rel_floor" yaml:"rel_floor"` // floor as a fraction of the line max
}

// PerPolarity holds the core and secondary pruning settings.
type PerPolarity struct {
	Core      PolarityConfig `json:"core" yaml:"core"`
	Secondary PolarityConfig `json:"secondary" yaml:"secondary"`
}

// For returns the settings for p.
func (pp PerPolarity) For(p Polarity) PolarityConfig {
	if p == PolaritySecondary {
		return pp.Secondary
	}
	return pp.Core
}

// RescueConfig protects categories that recur across placements from being
// pruned on individual lines.
type RescueConfig struct {
	MinPlacements int     `json:"core_min_placements" yaml:"core_min_placements"`
	MinWeight     float64 `json:"min_weight_before_sparsify" yaml:"min_weight_before_sparsify"`
}

// SparsifyConfig drives the placement scorer.
type SparsifyConfig struct {
	Gamma       float64     `json:"gamma" yaml:"gamma"`
	PerPolarity PerPolarity `json:"per_polarity" yaml:"per_polarity"`
	// LineSecondaryMultiplier is keyed by line number ("3").
	LineSecondaryMultiplier map[string]float64 `json:"line_secondary_multiplier,omitempty" yaml:"line_secondary_multiplier,omitempty"`
	PlanetWeights           map[string]float64 `json:"planet_weights,omitempty" yaml:"planet_weights,omitempty"`
	// RolePlanetWeights overrides PlanetWeights for one role.
	RolePlanetWeights   map[chart.Role]map[string]float64 `json:"role_planet_weights,omitempty" yaml:"role_planet_weights,omitempty"`
	DefaultPlanetWeight float64                           `json:"default_planet_weight,omitempty" yaml:"default_planet_weight,omitempty"`
	ConsistencyRescue   *RescueConfig                     `json:"consistency_rescue,omitempty" yaml:"consistency_rescue,omitempty"`
}

// DefaultSparsifyConfig returns the production tuning: gentle sharpening,
// up to three core and two secondary categories per line, a line 3
// secondary dampener, and primary bodies weighted above minor ones.
func DefaultSparsifyConfig() SparsifyConfig {
	return SparsifyConfig{
		Gamma: 1.35,
		PerPolarity: PerPolarity{
			Core:      PolarityConfig{TopK: 3, TopP: 0.80, MinAbs: 0.10, RelFloor: 0.35},
			Secondary: PolarityConfig{TopK: 2, TopP: 0.75, MinAbs: 0.10, RelFloor: 0.35},
		},
		LineSecondaryMultiplier: map[string]float64{"3": 0.75},
		PlanetWeights: map[string]float64{
			"Sun":        2.0,
			"Earth":      2.0,
			"Moon":       1.5,
			"North Node": 1.5,
			"South Node": 1.5,
			"Pluto":      1.3,
			"Mars":       1.3,
			"Saturn":     1.3,
			"Jupiter":    1.3,
			"Mercury":    1.0,
			"Venus":      1.0,
			"Uranus":     1.0,
			"Neptune":    1.0,
		},
		DefaultPlanetWeight: 1.0,
		ConsistencyRescue:   &RescueConfig{MinPlacements: 3, MinWeight: 0.18},
	}
}

// PlanetWeight returns the multiplier for a planet on a role. Role-specific
// weights win over the shared table; unknown planets get
// DefaultPlanetWeight (1 when unset).
func (c *SparsifyConfig) PlanetWeight(role chart.Role, planet string) float64 {
	if w, ok := c.RolePlanetWeights[role][planet]; ok {
		return w
	}
	if w, ok := c.PlanetWeights[planet]; ok {
		return w
	}
	if c.DefaultPlanetWeight > 0 {
		return c.DefaultPlanetWeight
	}
	return 1.0
}

// SecondaryLineMultiplier returns the secondary dampener for a line, 1 when
// none is configured.
func (c *SparsifyConfig) SecondaryLineMultiplier(line int) float64 {
	if m, ok := c.LineSecondaryMultiplier[strconv.Itoa(line)]; ok {
		return m
	}
	return 1.0
}

// Clone returns a deep copy so a caller can tweak a per-request config
// without touching shared state.
func (c SparsifyConfig) Clone() SparsifyConfig {
	out := c
	out.LineSecondaryMultiplier = cloneFloats(c.LineSecondaryMultiplier)
	out.PlanetWeights = cloneFloats(c.PlanetWeights)
	if c.RolePlanetWeights != nil {
		out.RolePlanetWeights = make(map[chart.Role]map[string]float64, len(c.RolePlanetWeights))
		for r, m := range c.RolePlanetWeights {
			out.RolePlanetWeights[r] = cloneFloats(m)
		}
	}
	if c.ConsistencyRescue != nil {
		rescue := *c.ConsistencyRescue
		out.ConsistencyRescue = &rescue
	}
	return out
}

func cloneFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks the config's numeric ranges.
func (c *SparsifyConfig) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !(c.Gamma > 0) || math.IsInf(c.Gamma, 0) {
		bad("gamma must be a positive finite number, got %v", c.Gamma)
	}
	for _, p := range Polarities {
		pc := c.PerPolarity.For(p)
		if pc.TopP < 0 || pc.TopP > 1 {
			bad("%s.top_p must be within [0,1], got %v", p, pc.TopP)
		}
		if pc.MinAbs < 0 {
			bad("%s.min_abs must be >= 0, got %v", p, pc.MinAbs)
		}
		if pc.RelFloor < 0 || pc.RelFloor > 1 {
			bad("%s.rel_floor must be within [0,1], got %v", p, pc.RelFloor)
		}
	}
	for line, m := range c.LineSecondaryMultiplier {
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > MaxLine {
			bad("line_secondary_multiplier key %q is not a line 1-%d", line, MaxLine)
		}
		if m < 0 {
			bad("line_secondary_multiplier[%s] must be >= 0, got %v", line, m)
		}
	}
	for planet, w := range c.PlanetWeights {
		if w < 0 {
			bad("planet_weights[%s] must be >= 0, got %v", planet, w)
		}
	}
	for role, m := range c.RolePlanetWeights {
		if !role.Valid() {
			bad("role_planet_weights has unknown role %q", role)
		}
		for planet, w := range m {
			if w < 0 {
				bad("role_planet_weights[%s][%s] must be >= 0, got %v", role, planet, w)
			}
		}
	}
	if r := c.ConsistencyRescue; r != nil {
		if r.MinPlacements < 1 {
			bad("consistency_rescue.core_min_placements must be >= 1, got %d", r.MinPlacements)
		}
		if r.MinWeight < 0 || r.MinWeight > 1 {
			bad("consistency_rescue.min_weight_before_sparsify must be within [0,1], got %v", r.MinWeight)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Source: "sparsify config", Problems: problems}
	}
	return nil
}
