package chart

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidAttributeKey is returned when a reference key does not name any
// attribute kind.
var ErrInvalidAttributeKey = errors.New("invalid attribute key")

// Kind tags which chart field an attribute came from.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindAuthority
	KindProfile
	KindCenter
	KindChannel
	KindGate
)

var kindPrefixes = [...]string{
	KindType:      "type_",
	KindAuthority: "authority_",
	KindProfile:   "profile_",
	KindCenter:    "center_",
	KindChannel:   "channel_",
	KindGate:      "gate_",
}

var kindTitles = [...]string{
	KindType:      "Type",
	KindAuthority: "Authority",
	KindProfile:   "Profile",
	KindCenter:    "Center",
	KindChannel:   "Channel",
	KindGate:      "Gate",
}

const centerSuffix = "_defined"

func (k Kind) String() string {
	if k < KindType || k > KindGate {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return strings.TrimSuffix(kindPrefixes[k], "_")
}

var whitespace = regexp.MustCompile(`\s+`)

// Attribute is one chart fact: a kind plus its normalized value. Attributes
// are comparable and are used directly as map keys.
type Attribute struct {
	Kind  Kind
	Value string
}

// NewAttribute builds an attribute from a raw chart value, applying the same
// normalization as the reference key format: type, authority and center
// values are lowercased with whitespace runs collapsed to "_"; the first "/"
// of a profile becomes "_"; channels are kept verbatim.
func NewAttribute(kind Kind, raw string) Attribute {
	switch kind {
	case KindType, KindAuthority, KindCenter:
		return Attribute{Kind: kind, Value: whitespace.ReplaceAllString(strings.ToLower(raw), "_")}
	case KindProfile:
		return Attribute{Kind: kind, Value: strings.Replace(raw, "/", "_", 1)}
	default:
		return Attribute{Kind: kind, Value: raw}
	}
}

// GateAttribute returns the attribute for a single gate number.
func GateAttribute(gate int) Attribute {
	return Attribute{Kind: KindGate, Value: strconv.Itoa(gate)}
}

// Key renders the snake-case reference key, e.g. "type_generator",
// "center_solar_plexus_defined" or "gate_34".
func (a Attribute) Key() string {
	if a.Kind < KindType || a.Kind > KindGate {
		return a.Value
	}
	key := kindPrefixes[a.Kind] + a.Value
	if a.Kind == KindCenter {
		key += centerSuffix
	}
	return key
}

// Label renders a human-readable form, e.g. "Center: Solar plexus".
func (a Attribute) Label() string {
	if a.Kind < KindType || a.Kind > KindGate {
		return a.Value
	}
	title := kindTitles[a.Kind]
	switch a.Kind {
	case KindProfile:
		return title + ": " + strings.Replace(a.Value, "_", "/", 1)
	case KindChannel, KindGate:
		return title + ": " + a.Value
	default:
		return title + ": " + capitalize(strings.ReplaceAll(a.Value, "_", " "))
	}
}

func (a Attribute) String() string {
	return a.Key()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseAttributeKey parses a reference key back into an attribute. Keys
// with an unknown prefix, an empty value, a center key without the
// "_defined" suffix, or a non-numeric gate are rejected. Keys that are well
// formed but can never be produced by a chart (for example "channel_34_57")
// parse successfully.
func ParseAttributeKey(key string) (Attribute, error) {
	for kind := KindType; kind <= KindGate; kind++ {
		prefix := kindPrefixes[kind]
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		value := strings.TrimPrefix(key, prefix)
		switch kind {
		case KindCenter:
			if !strings.HasSuffix(value, centerSuffix) {
				return Attribute{}, fmt.Errorf("%w: %q lacks %q suffix", ErrInvalidAttributeKey, key, centerSuffix)
			}
			value = strings.TrimSuffix(value, centerSuffix)
		case KindGate:
			if _, err := strconv.Atoi(value); err != nil {
				return Attribute{}, fmt.Errorf("%w: %q has a non-numeric gate", ErrInvalidAttributeKey, key)
			}
		}
		if value == "" {
			return Attribute{}, fmt.Errorf("%w: %q has an empty value", ErrInvalidAttributeKey, key)
		}
		return Attribute{Kind: kind, Value: value}, nil
	}
	return Attribute{}, fmt.Errorf("%w: %q", ErrInvalidAttributeKey, key)
}
