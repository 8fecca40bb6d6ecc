// Package engine is the caller-facing facade over scoring and
// classification. It reads the current reference-data snapshot once per
// call, so a hot swap never changes the data under an in-flight
// classification.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"starsorter/internal/chart"
	"starsorter/internal/classify"
	"starsorter/internal/logging"
	"starsorter/internal/provenance"
	"starsorter/internal/refdata"
	"starsorter/internal/scoring"
)

// ErrUnknownStrategy is returned for a strategy no scorer implements.
var ErrUnknownStrategy = scoring.ErrUnknownStrategy

// Options tune an Engine. The zero value is usable.
type Options struct {
	// Strategy is used when a call passes an empty strategy. Empty means
	// placements.
	Strategy scoring.Strategy
	// TieThreshold overrides the rule set's tieThresholdPct when > 0.
	TieThreshold float64
	// Concurrency bounds ClassifyBatch. <= 0 means GOMAXPROCS.
	Concurrency int
	// Sparsify overrides the snapshot's placement config.
	Sparsify *refdata.SparsifyConfig
}

// Engine scores and classifies charts against a refdata.Store.
type Engine struct {
	store *refdata.Store
	opts  Options
}

// New returns an engine reading from store.
func New(store *refdata.Store, opts Options) *Engine {
	if opts.Strategy == "" {
		opts.Strategy = scoring.StrategyPlacements
	}
	if opts.Sparsify != nil {
		c := opts.Sparsify.Clone()
		opts.Sparsify = &c
	}
	return &Engine{store: store, opts: opts}
}

// Snapshot returns the reference data currently in service.
func (e *Engine) Snapshot() *refdata.Snapshot {
	return e.store.Current()
}

func (e *Engine) strategy(st scoring.Strategy) scoring.Strategy {
	if st == "" {
		return e.opts.Strategy
	}
	return st
}

func (e *Engine) tieThreshold(snap *refdata.Snapshot) float64 {
	if e.opts.TieThreshold > 0 {
		return e.opts.TieThreshold
	}
	return snap.TieThresholdPct(classify.DefaultTieThreshold)
}

// Score runs one strategy against the current snapshot.
func (e *Engine) Score(x *chart.Extract, st scoring.Strategy) ([]scoring.CategoryScore, error) {
	scorer, err := scoring.ForSnapshot(e.strategy(st), e.store.Current(), e.opts.Sparsify)
	if err != nil {
		return nil, err
	}
	return scorer.Score(x), nil
}

// ScoreByWeights scores x with the flat weight table.
func (e *Engine) ScoreByWeights(x *chart.Extract) ([]scoring.CategoryScore, error) {
	return e.Score(x, scoring.StrategyWeights)
}

// ScoreByRules scores x with the rule set, keeping rule provenance.
func (e *Engine) ScoreByRules(x *chart.Extract) ([]scoring.CategoryScore, error) {
	return e.Score(x, scoring.StrategyRules)
}

// ScoreByPlacements scores x's placements. cfg, when non-nil, replaces the
// configured sparsify settings for this call only.
func (e *Engine) ScoreByPlacements(x *chart.Extract, cfg *refdata.SparsifyConfig) ([]scoring.CategoryScore, error) {
	if cfg == nil {
		return e.Score(x, scoring.StrategyPlacements)
	}
	scorer, err := scoring.ForSnapshot(scoring.StrategyPlacements, e.store.Current(), cfg)
	if err != nil {
		return nil, err
	}
	return scorer.Score(x), nil
}

// Classify scores x with st (empty means the configured default) and
// classifies the result.
func (e *Engine) Classify(x *chart.Extract, st scoring.Strategy) (*classify.Result, error) {
	return e.classifyWith(e.store.Current(), x, e.strategy(st), logging.Audit())
}

func (e *Engine) classifyWith(snap *refdata.Snapshot, x *chart.Extract, st scoring.Strategy, audit *logging.AuditLogger) (*classify.Result, error) {
	start := time.Now()
	fail := func(err error) (*classify.Result, error) {
		audit.ClassifyFailed(string(st), provenance.InputHash(x), err)
		return nil, err
	}

	scorer, err := scoring.ForSnapshot(st, snap, e.opts.Sparsify)
	if err != nil {
		return fail(err)
	}
	res, err := classify.New(e.tieThreshold(snap)).Classify(scorer.Score(x), snap.Meta(), x)
	if err != nil {
		return fail(fmt.Errorf("classify with %s: %w", st, err))
	}
	res.Meta.Strategy = string(st)

	audit.Classified(string(st), res.Meta.InputHash, res.Meta.RuleSetHash,
		string(res.Classification), res.Primary, time.Since(start))
	return res, nil
}

// ClassifyBatch classifies extracts concurrently against one snapshot.
// Results are in input order. The first error cancels the remaining work
// and is returned with the index of the failing chart.
func (e *Engine) ClassifyBatch(ctx context.Context, extracts []*chart.Extract, st scoring.Strategy) ([]*classify.Result, error) {
	st = e.strategy(st)
	snap := e.store.Current()
	audit := logging.AuditWithRequest(uuid.NewString())
	start := time.Now()

	limit := e.opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*classify.Result, len(extracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range extracts {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.classifyWith(snap, extracts[i], st, audit)
			if err != nil {
				return fmt.Errorf("chart %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	audit.BatchComplete(string(st), len(extracts), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	logging.EngineDebug("batch of %d charts classified with %s (limit %d)", len(extracts), st, limit)
	return results, nil
}

// IsStale reports whether res was computed against reference data other
// than the snapshot now in service.
func (e *Engine) IsStale(res *classify.Result) bool {
	snap := e.store.Current()
	if res == nil || snap == nil {
		return true
	}
	return res.Meta.RefMeta().Stale(snap.Meta())
}
