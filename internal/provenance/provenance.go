// Package provenance fingerprints chart inputs and reference data so that a
// stored classification can be recognized as stale without recomputing it.
//
// Fingerprints are change-detection hashes, not commitments: they are short
// (16 hex characters of SHA-256) and make no claim of collision resistance
// against adversarial input.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"starsorter/internal/chart"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// RefMeta identifies the reference data a result was computed against.
type RefMeta struct {
	RuleSetVersion string `json:"ruleSetVersion" yaml:"rule_set_version"`
	RuleSetHash    string `json:"ruleSetHash" yaml:"rule_set_hash"`
}

// Stale reports whether a result stamped with m was computed against
// reference data other than current.
func (m RefMeta) Stale(current RefMeta) bool {
	return m.RuleSetHash != current.RuleSetHash || m.RuleSetVersion != current.RuleSetVersion
}

// HashBytes returns the truncated hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:HashLength]
}

// HashCanonical hashes the JSON encoding of v. Struct fields encode in
// declaration order and map keys are sorted by encoding/json, so equal
// values always hash equally.
func HashCanonical(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode for hashing: %w", err)
	}
	return HashBytes(data), nil
}

// Normalize returns a copy of x with every array-valued field sorted:
// centers lexicographically, gates ascending, channels numerically and
// placements by (role, planet, gate, line). x is not modified.
func Normalize(x *chart.Extract) *chart.Extract {
	if x == nil {
		return &chart.Extract{}
	}
	n := *x

	n.Centers = append([]string(nil), x.Centers...)
	sort.Strings(n.Centers)

	n.Gates = append([]int(nil), x.Gates...)
	sort.Ints(n.Gates)

	n.Channels = append([]chart.Channel(nil), x.Channels...)
	sort.SliceStable(n.Channels, func(i, j int) bool {
		return chart.ChannelLess(n.Channels[i], n.Channels[j])
	})

	n.Placements = append([]chart.Placement(nil), x.Placements...)
	sort.SliceStable(n.Placements, func(i, j int) bool {
		a, b := n.Placements[i], n.Placements[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.Planet != b.Planet {
			return a.Planet < b.Planet
		}
		if a.Gate != b.Gate {
			return a.Gate < b.Gate
		}
		return a.Line < b.Line
	})

	return &n
}

// InputHash fingerprints a chart. Two charts that differ only in the order
// of their array-valued fields hash identically.
func InputHash(x *chart.Extract) string {
	h, err := HashCanonical(Normalize(x))
	if err != nil {
		// Extract holds only strings and ints; encoding cannot fail.
		return ""
	}
	return h
}
