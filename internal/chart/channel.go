package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Channel is a chart channel as supplied by the chart producer: either a
// bare gate number ("34") or a "gate-gate" pair ("34-57"). The raw text is
// kept verbatim because attribute keys are derived from it.
type Channel string

// Gates splits a "A-B" channel into its two gate numbers.
func (c Channel) Gates() (int, int, bool) {
	left, right, found := strings.Cut(strings.TrimSpace(string(c)), "-")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

// sortKey orders channels numerically: first gate, then second gate.
// Single-gate channels sort with a zero second gate.
func (c Channel) sortKey() (int, int) {
	if a, b, ok := c.Gates(); ok {
		return a, b
	}
	if n, err := strconv.Atoi(strings.TrimSpace(string(c))); err == nil {
		return n, 0
	}
	return 1<<31 - 1, 0
}

// ChannelLess orders channels numerically, falling back to the raw text.
func ChannelLess(a, b Channel) bool {
	a1, a2 := a.sortKey()
	b1, b2 := b.sortKey()
	if a1 != b1 {
		return a1 < b1
	}
	if a2 != b2 {
		return a2 < b2
	}
	return a < b
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (c *Channel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Channel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("channel must be a number or a string: %w", err)
	}
	*c = Channel(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar.
func (c *Channel) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: channel must be a scalar", node.Line)
	}
	*c = Channel(node.Value)
	return nil
}
