package scoring

import (
	"errors"
	"fmt"
	"strings"

	"starsorter/internal/refdata"
)

// Strategy names a scoring strategy.
type Strategy string

const (
	StrategyWeights    Strategy = "weights"
	StrategyRules      Strategy = "rules"
	StrategyPlacements Strategy = "placements"
)

// Strategies lists every strategy.
var Strategies = []Strategy{StrategyWeights, StrategyRules, StrategyPlacements}

var (
	// ErrUnknownStrategy is returned for a strategy name no scorer implements.
	ErrUnknownStrategy = errors.New("unknown scoring strategy")
	// ErrMissingReference is returned when a snapshot lacks the dataset a
	// strategy needs.
	ErrMissingReference = errors.New("reference data missing for strategy")
)

// ParseStrategy parses a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyWeights, StrategyRules, StrategyPlacements:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// ForSnapshot builds the scorer for st over snap, using the snapshot's full
// category universe. sparsify overrides the snapshot's config for the
// placement strategy and is ignored by the others.
func ForSnapshot(st Strategy, snap *refdata.Snapshot, sparsify *refdata.SparsifyConfig) (Scorer, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot loaded", ErrMissingReference)
	}
	universe := snap.Universe()
	switch st {
	case StrategyWeights:
		if snap.Weights == nil {
			return nil, fmt.Errorf("%w: %s needs a weight table", ErrMissingReference, st)
		}
		return NewWeightScorer(snap.Weights, universe), nil
	case StrategyRules:
		if snap.Rules == nil {
			return nil, fmt.Errorf("%w: %s needs a rule set", ErrMissingReference, st)
		}
		return NewRuleScorer(snap.Rules, universe), nil
	case StrategyPlacements:
		if snap.GateLines == nil {
			return nil, fmt.Errorf("%w: %s needs a gate-line map", ErrMissingReference, st)
		}
		cfg := &snap.Sparsify
		if sparsify != nil {
			cfg = sparsify
		}
		return NewPlacementScorer(snap.GateLines, cfg, universe), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, st)
	}
}
