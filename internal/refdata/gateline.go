package refdata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"starsorter/internal/provenance"
)

const (
	MaxGate = 64
	MaxLine = 6
	// TotalLines is the number of distinct gate.line keys.
	TotalLines = MaxGate * MaxLine
)

// Polarity is the expression axis a gate-line entry scores on.
type Polarity string

const (
	PolarityCore      Polarity = "core"
	PolaritySecondary Polarity = "secondary"
)

// Polarities lists both polarities in processing order.
var Polarities = [2]Polarity{PolarityCore, PolaritySecondary}

// ParsePolarity maps a file alignment value onto a polarity. "shadow" is the
// legacy name for secondary. "none" yields ok=false with a nil error so the
// caller can drop the entry.
func ParsePolarity(s string) (p Polarity, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "core":
		return PolarityCore, true, nil
	case "secondary", "shadow":
		return PolaritySecondary, true, nil
	case "none":
		return "", false, nil
	default:
		return "", false, fmt.Errorf("unknown alignment type %q", s)
	}
}

// LineKey addresses one of the 384 gate.line combinations.
type LineKey struct {
	Gate int
	Line int
}

func (k LineKey) String() string {
	return strconv.Itoa(k.Gate) + "." + strconv.Itoa(k.Line)
}

// Valid reports whether the key is within 1..64 / 1..6.
func (k LineKey) Valid() bool {
	return k.Gate >= 1 && k.Gate <= MaxGate && k.Line >= 1 && k.Line <= MaxLine
}

// ParseLineKey parses "gate.line".
func ParseLineKey(s string) (LineKey, error) {
	g, l, found := strings.Cut(s, ".")
	if !found {
		return LineKey{}, fmt.Errorf("gate-line key %q: expected gate.line", s)
	}
	gate, err := strconv.Atoi(g)
	if err != nil {
		return LineKey{}, fmt.Errorf("gate-line key %q: bad gate: %w", s, err)
	}
	line, err := strconv.Atoi(l)
	if err != nil {
		return LineKey{}, fmt.Errorf("gate-line key %q: bad line: %w", s, err)
	}
	k := LineKey{Gate: gate, Line: line}
	if !k.Valid() {
		return LineKey{}, fmt.Errorf("gate-line key %q out of range", s)
	}
	return k, nil
}

// LineEntry is one category's weight on a gate.line.
type LineEntry struct {
	Category  string   `json:"category"`
	Weight    float64  `json:"weight"`
	Polarity  Polarity `json:"polarity"`
	Rationale string   `json:"rationale,omitempty"`
}

// GateLineMap is the read-only (gate, line) -> entries table.
type GateLineMap struct {
	version    string
	categories []string
	lines      map[LineKey][]LineEntry
	hash       string
}

// NewGateLineMap copies lines into an immutable map. categories lists the
// declared category universe in canonical order and may be empty.
func NewGateLineMap(version string, categories []string, lines map[LineKey][]LineEntry) *GateLineMap {
	m := &GateLineMap{
		version:    version,
		categories: append([]string(nil), categories...),
		lines:      make(map[LineKey][]LineEntry, len(lines)),
	}
	for k, entries := range lines {
		m.lines[k] = append([]LineEntry(nil), entries...)
	}
	m.hash = m.computeHash()
	return m
}

// Version of the map data.
func (m *GateLineMap) Version() string {
	if m == nil {
		return ""
	}
	return m.version
}

// Len is the number of populated gate.line keys.
func (m *GateLineMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.lines)
}

// Lookup returns a copy of the entries for exactly (gate, line). A missing
// key is not an error: it contributes nothing and yields nil.
func (m *GateLineMap) Lookup(gate, line int) []LineEntry {
	if m == nil {
		return nil
	}
	entries, ok := m.lines[LineKey{Gate: gate, Line: line}]
	if !ok {
		return nil
	}
	return append([]LineEntry(nil), entries...)
}

// Keys returns the populated keys ordered by gate, then line.
func (m *GateLineMap) Keys() []LineKey {
	if m == nil {
		return nil
	}
	keys := make([]LineKey, 0, len(m.lines))
	for k := range m.lines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Gate != keys[j].Gate {
			return keys[i].Gate < keys[j].Gate
		}
		return keys[i].Line < keys[j].Line
	})
	return keys
}

// Categories returns the declared categories followed by any category that
// only appears in entries, in key order.
func (m *GateLineMap) Categories() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]bool, len(m.categories))
	out := make([]string, 0, len(m.categories))
	for _, c := range m.categories {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, k := range m.Keys() {
		for _, e := range m.lines[k] {
			if !seen[e.Category] {
				seen[e.Category] = true
				out = append(out, e.Category)
			}
		}
	}
	return out
}

// Hash fingerprints the map contents.
func (m *GateLineMap) Hash() string {
	if m == nil {
		return ""
	}
	return m.hash
}

func (m *GateLineMap) computeHash() string {
	type keyed struct {
		Key     string      `json:"key"`
		Entries []LineEntry `json:"entries"`
	}
	doc := struct {
		Version    string   `json:"version"`
		Categories []string `json:"categories"`
		Lines      []keyed  `json:"lines"`
	}{Version: m.version, Categories: m.categories}
	for _, k := range m.Keys() {
		doc.Lines = append(doc.Lines, keyed{Key: k.String(), Entries: m.lines[k]})
	}
	h, err := provenance.HashCanonical(doc)
	if err != nil {
		return ""
	}
	return h
}
