package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"starsorter/internal/chart"
	"starsorter/internal/logging"
)

// Paths locates reference files. Empty paths are skipped.
type Paths struct {
	Rules     string
	GateLines string
	Weights   string
	Sparsify  string
}

// Files lists the non-empty paths.
func (p Paths) Files() []string {
	var out []string
	for _, f := range []string{p.Rules, p.GateLines, p.Weights, p.Sparsify} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Loader reads and validates reference data into a Snapshot.
type Loader struct {
	Paths Paths
	// BaseSparsify is the config a sparsify file overlays, or the config used
	// as-is when no file is given.
	BaseSparsify SparsifyConfig
}

// NewLoader returns a loader over paths with the default sparsify config as
// its base.
func NewLoader(paths Paths) *Loader {
	return &Loader{Paths: paths, BaseSparsify: DefaultSparsifyConfig()}
}

// Load reads every configured file, validates it and builds a snapshot. Any
// failure leaves nothing half-built: the caller keeps its previous snapshot.
func (l *Loader) Load() (*Snapshot, error) {
	if len(l.Paths.Files()) == 0 {
		return nil, fmt.Errorf("no reference data paths configured")
	}

	var (
		rules   *RuleSet
		lines   *GateLineMap
		weights *WeightTable
		err     error
	)
	if l.Paths.Rules != "" {
		if rules, err = LoadRuleSet(l.Paths.Rules); err != nil {
			return nil, err
		}
	}
	if l.Paths.GateLines != "" {
		if lines, err = LoadGateLineMap(l.Paths.GateLines); err != nil {
			return nil, err
		}
	}
	if l.Paths.Weights != "" {
		if weights, err = LoadWeightTable(l.Paths.Weights); err != nil {
			return nil, err
		}
	}
	sparsify := l.BaseSparsify.Clone()
	if l.Paths.Sparsify != "" {
		if sparsify, err = LoadSparsifyConfig(l.Paths.Sparsify, l.BaseSparsify); err != nil {
			return nil, err
		}
	} else if err := sparsify.Validate(); err != nil {
		return nil, err
	}

	snap := NewSnapshot(rules, lines, weights, sparsify)
	logging.Get(logging.CategoryRefData).Infow("reference data loaded",
		"snapshot", snap.ID.String(),
		"version", snap.Meta().RuleSetVersion,
		"hash", snap.Meta().RuleSetHash,
		"categories", len(snap.universe))
	return snap, nil
}

// decodeDocument reads a YAML, JSON or TOML file and returns it re-encoded
// as JSON so every format shares one set of struct tags.
func decodeDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return data, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	case ".toml":
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		doc = m
	default:
		return nil, fmt.Errorf("unsupported reference file type %q", ext)
	}

	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// stringKeys rewrites YAML's map[any]any (non-string keys such as line
// numbers) into JSON-encodable map[string]any.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stringKeys(val)
		}
		return out
	default:
		return v
	}
}

type ruleSetFile struct {
	Version         string         `json:"lore_version"`
	TieThresholdPct float64        `json:"tieThresholdPct"`
	Systems         []CategoryInfo `json:"systems"`
	Sources         []Source       `json:"sources"`
	Rules           []Rule         `json:"rules"`
}

// LoadRuleSet reads and validates a rule set file.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := decodeDocument(path)
	if err != nil {
		return nil, err
	}
	var f ruleSetFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode rule set %s: %w", filepath.Base(path), err)
	}
	rs := NewRuleSet(f.Version, f.TieThresholdPct, f.Systems, f.Sources, f.Rules)
	if err := ValidateRuleSet(rs); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	logging.RefDataDebug("rule set %s: %d rules, hash %s", rs.Version, len(rs.Rules), rs.Hash())
	return rs, nil
}

type gateLineMetaFile struct {
	Version string   `json:"version"`
	Systems []string `json:"systems"`
}

type gateLineEntryFile struct {
	StarSystem    string  `json:"star_system"`
	Weight        float64 `json:"weight"`
	AlignmentType string  `json:"alignment_type"`
	Why           string  `json:"why"`
}

// LoadGateLineMap reads and validates a gate-line map file: a "_meta" block
// plus "gate.line" keys mapping to entry lists.
func LoadGateLineMap(path string) (*GateLineMap, error) {
	data, err := decodeDocument(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode gate-line map %s: %w", filepath.Base(path), err)
	}

	var meta gateLineMetaFile
	if m, ok := raw["_meta"]; ok {
		if err := json.Unmarshal(m, &meta); err != nil {
			return nil, fmt.Errorf("gate-line map %s: bad _meta: %w", filepath.Base(path), err)
		}
	}

	p := &problems{source: "gate-line map " + filepath.Base(path)}
	lines := make(map[LineKey][]LineEntry, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, "_") {
			continue
		}
		key, err := ParseLineKey(k)
		if err != nil {
			p.add("%v", err)
			continue
		}
		var entries []gateLineEntryFile
		if err := json.Unmarshal(raw[k], &entries); err != nil {
			p.add("%s: %v", k, err)
			continue
		}
		for _, e := range entries {
			pol, keep, err := ParsePolarity(e.AlignmentType)
			if err != nil {
				p.add("%s/%s: %v", k, e.StarSystem, err)
				continue
			}
			if !keep {
				continue
			}
			lines[key] = append(lines[key], LineEntry{
				Category:  e.StarSystem,
				Weight:    e.Weight,
				Polarity:  pol,
				Rationale: e.Why,
			})
		}
	}
	if err := p.err(); err != nil {
		return nil, err
	}

	m := NewGateLineMap(meta.Version, meta.Systems, lines)
	if err := ValidateGateLineMap(m); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if m.Len() < TotalLines {
		logging.RefDataDebug("gate-line map %s covers %d/%d keys", m.Version(), m.Len(), TotalLines)
	}
	return m, nil
}

type weightTableFile struct {
	Version string `json:"version"`
	Systems map[string]struct {
		Weights map[string]float64 `json:"weights"`
		Why     string             `json:"why"`
	} `json:"systems"`
}

// LoadWeightTable reads and validates a flat weight table. Every key must
// name an attribute kind; see chart.ParseAttributeKey.
func LoadWeightTable(path string) (*WeightTable, error) {
	data, err := decodeDocument(path)
	if err != nil {
		return nil, err
	}
	var f weightTableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode weight table %s: %w", filepath.Base(path), err)
	}

	p := &problems{source: "weight table " + filepath.Base(path)}
	weights := make(map[string]map[chart.Attribute]float64, len(f.Systems))
	why := make(map[string]string, len(f.Systems))
	for cat, sys := range f.Systems {
		attrs := make(map[chart.Attribute]float64, len(sys.Weights))
		for key, w := range sys.Weights {
			a, err := chart.ParseAttributeKey(key)
			if err != nil {
				p.add("%s: %v", cat, err)
				continue
			}
			attrs[a] = w
		}
		weights[cat] = attrs
		why[cat] = sys.Why
	}
	if err := p.err(); err != nil {
		return nil, err
	}

	t := NewWeightTable(f.Version, weights, why)
	if err := ValidateWeightTable(t); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// LoadSparsifyConfig overlays a sparsify config file onto base. Fields the
// file leaves out keep base's values; map entries are merged.
func LoadSparsifyConfig(path string, base SparsifyConfig) (SparsifyConfig, error) {
	data, err := decodeDocument(path)
	if err != nil {
		return SparsifyConfig{}, err
	}
	cfg := base.Clone()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SparsifyConfig{}, fmt.Errorf("failed to decode sparsify config %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return SparsifyConfig{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}
