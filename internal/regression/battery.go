// Package regression provides a lightweight regression battery harness.
// Batteries are YAML-defined suites of charts with expected classifications,
// run against the loaded reference data whenever it is edited.
package regression

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"starsorter/internal/chart"
	"starsorter/internal/classify"
	"starsorter/internal/engine"
	"starsorter/internal/scoring"
)

// Battery is a collection of regression cases.
type Battery struct {
	Version  int    `yaml:"version"`
	FailFast bool   `yaml:"fail_fast,omitempty"`
	Cases    []Case `yaml:"cases"`
}

// Case is a single chart with its expected outcome. The chart is given
// inline or as a path relative to the battery file.
type Case struct {
	ID        string         `yaml:"id"`
	Strategy  string         `yaml:"strategy,omitempty"` // empty = engine default
	ChartFile string         `yaml:"chart_file,omitempty"`
	Chart     *chart.Extract `yaml:"chart,omitempty"`
	Expect    Expectation    `yaml:"expect"`
}

// Expectation is what a case must classify as. Empty fields are not checked.
type Expectation struct {
	Classification classify.Classification `yaml:"classification,omitempty"`
	Primary        string                  `yaml:"primary,omitempty"`
	// Hybrid is order-insensitive.
	Hybrid []string `yaml:"hybrid,omitempty"`
}

// Result captures the outcome for a case.
type Result struct {
	CaseID     string
	Success    bool
	Got        string
	Error      string
	DurationMs int64
}

// LoadBattery reads a YAML battery file from disk. Chart files are resolved
// against the battery's directory.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	base := filepath.Dir(path)
	for i := range b.Cases {
		c := &b.Cases[i]
		if c.Chart != nil || c.ChartFile == "" {
			continue
		}
		p := c.ChartFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		if c.Chart, err = chart.Load(p); err != nil {
			return nil, fmt.Errorf("case %s: %w", c.ID, err)
		}
	}
	return &b, nil
}

// RunBattery classifies every case in order and compares the outcome.
// A case that errors counts as a failure. With FailFast the run stops at
// the first failure.
func RunBattery(ctx context.Context, eng *engine.Engine, b *Battery) ([]Result, error) {
	if b == nil || len(b.Cases) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(b.Cases))

	for _, c := range b.Cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		res := runCase(eng, c)
		res.DurationMs = time.Since(start).Milliseconds()
		results = append(results, res)

		if !res.Success && b.FailFast {
			break
		}
	}

	return results, nil
}

func runCase(eng *engine.Engine, c Case) Result {
	res := Result{CaseID: c.ID}
	if c.Chart == nil {
		res.Error = "case has no chart"
		return res
	}
	var st scoring.Strategy
	if c.Strategy != "" {
		parsed, err := scoring.ParseStrategy(c.Strategy)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		st = parsed
	}

	got, err := eng.Classify(c.Chart, st)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Got = describe(got)
	if msg := c.Expect.mismatch(got); msg != "" {
		res.Error = msg
		return res
	}
	res.Success = true
	return res
}

func describe(r *classify.Result) string {
	if r.Hybrid != nil {
		return fmt.Sprintf("hybrid %s+%s", r.Hybrid[0], r.Hybrid[1])
	}
	return fmt.Sprintf("%s %s", r.Classification, r.Primary)
}

// mismatch returns a description of the first unmet expectation.
func (e Expectation) mismatch(r *classify.Result) string {
	if e.Classification != "" && e.Classification != r.Classification {
		return fmt.Sprintf("classification = %s, want %s", r.Classification, e.Classification)
	}
	if e.Primary != "" && e.Primary != r.Primary {
		return fmt.Sprintf("primary = %q, want %q", r.Primary, e.Primary)
	}
	if len(e.Hybrid) > 0 {
		if len(e.Hybrid) != 2 {
			return fmt.Sprintf("expected hybrid needs two categories, got %d", len(e.Hybrid))
		}
		if r.Hybrid == nil {
			return fmt.Sprintf("hybrid = none, want %s", strings.Join(e.Hybrid, "+"))
		}
		a, b := r.Hybrid[0], r.Hybrid[1]
		if !(a == e.Hybrid[0] && b == e.Hybrid[1]) && !(a == e.Hybrid[1] && b == e.Hybrid[0]) {
			return fmt.Sprintf("hybrid = %s+%s, want %s", a, b, strings.Join(e.Hybrid, "+"))
		}
	}
	return ""
}

// Failed counts unsuccessful results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

// DefaultBatteryPath returns the canonical battery path next to the
// reference data.
func DefaultBatteryPath(dataDir string) string {
	return filepath.Join(dataDir, "regression", "battery.yaml")
}
