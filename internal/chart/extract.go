// Package chart defines the birth chart extract consumed by the scoring engine
// and the closed attribute union used to match chart facts against reference
// data. Chart generation itself happens elsewhere; this package only describes
// the shape that arrives at the engine.
package chart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is the side of the chart a placement belongs to.
type Role string

const (
	RolePersonality Role = "personality"
	RoleDesign      Role = "design"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RolePersonality || r == RoleDesign
}

// Placement is one planet occupying a single gate.line.
type Placement struct {
	Planet string `json:"planet" yaml:"planet"`
	Gate   int    `json:"gate" yaml:"gate"`
	Line   int    `json:"line" yaml:"line"`
	Role   Role   `json:"role" yaml:"role"`
}

// Key returns the "gate.line" form used by the gate-line map.
func (p Placement) Key() string {
	return fmt.Sprintf("%d.%d", p.Gate, p.Line)
}

// Extract is the subset of a birth chart the engine scores.
// The engine does not require Gates/Channels to agree with Placements;
// chart integrity is the producer's responsibility.
type Extract struct {
	Type       string      `json:"type" yaml:"type"`
	Authority  string      `json:"authority" yaml:"authority"`
	Profile    string      `json:"profile" yaml:"profile"`
	Centers    []string    `json:"centers" yaml:"centers"`
	Channels   []Channel   `json:"channels" yaml:"channels"`
	Gates      []int       `json:"gates" yaml:"gates"`
	Placements []Placement `json:"placements,omitempty" yaml:"placements,omitempty"`
}

// GateSet returns the chart's gates as a set.
func (x *Extract) GateSet() map[int]struct{} {
	set := make(map[int]struct{}, len(x.Gates))
	for _, g := range x.Gates {
		set[g] = struct{}{}
	}
	return set
}

// CenterSet returns the chart's defined centers as a set.
func (x *Extract) CenterSet() map[string]struct{} {
	set := make(map[string]struct{}, len(x.Centers))
	for _, c := range x.Centers {
		set[c] = struct{}{}
	}
	return set
}

// Attributes emits one attribute per populated scalar field and per array
// element, in field order: type, authority, profile, centers, channels, gates.
// Duplicated array elements are emitted once per occurrence.
func (x *Extract) Attributes() []Attribute {
	attrs := make([]Attribute, 0, 3+len(x.Centers)+len(x.Channels)+len(x.Gates))
	if x.Type != "" {
		attrs = append(attrs, NewAttribute(KindType, x.Type))
	}
	if x.Authority != "" {
		attrs = append(attrs, NewAttribute(KindAuthority, x.Authority))
	}
	if x.Profile != "" {
		attrs = append(attrs, NewAttribute(KindProfile, x.Profile))
	}
	for _, c := range x.Centers {
		attrs = append(attrs, NewAttribute(KindCenter, c))
	}
	for _, ch := range x.Channels {
		attrs = append(attrs, NewAttribute(KindChannel, string(ch)))
	}
	for _, g := range x.Gates {
		attrs = append(attrs, GateAttribute(g))
	}
	return attrs
}

// Load reads a chart extract from a JSON or YAML file, chosen by extension.
func Load(path string) (*Extract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart: %w", err)
	}

	var x Extract
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &x)
	default:
		err = json.Unmarshal(data, &x)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart %s: %w", filepath.Base(path), err)
	}
	return &x, nil
}
