package transparency

import (
	"fmt"
	"sort"
	"strings"

	"starsorter/internal/classify"
	"starsorter/internal/scoring"
)

// Explainer builds human-readable explanations of classification results.
// This provides the "why" behind a classification in markdown.
type Explainer struct {
	maxContributors int
	showDetails     bool
}

// NewExplainer creates a new explainer with default settings.
func NewExplainer() *Explainer {
	return &Explainer{
		maxContributors: 5,
		showDetails:     true,
	}
}

// SetMaxContributors configures how many contributors are listed per
// winning category. Zero or less lists all of them.
func (e *Explainer) SetMaxContributors(n int) {
	e.maxContributors = n
}

// SetShowDetails configures whether to show the provenance footer.
func (e *Explainer) SetShowDetails(show bool) {
	e.showDetails = show
}

// Explain renders a result as markdown: the decision, the percentage table,
// the contributors behind each winner, and the provenance footer.
func (e *Explainer) Explain(res *classify.Result) string {
	if res == nil {
		return "No classification available."
	}

	var sb strings.Builder

	// Header
	sb.WriteString("## Classification\n\n")
	sb.WriteString(Summary(res) + "\n\n")

	// Percentages
	sb.WriteString("### Percentages\n\n")
	sb.WriteString("| Category | % |\n|---|---:|\n")
	for _, r := range ranked(res) {
		sb.WriteString(fmt.Sprintf("| %s | %.2f |\n", r.Category, r.Percentage))
	}
	sb.WriteString("\n")

	// Why each winner
	for _, cat := range res.Winners() {
		sb.WriteString(fmt.Sprintf("### Why %s\n\n", cat))
		e.explainContributors(&sb, res.Contributors[cat])
		sb.WriteString("\n")
	}

	if len(res.Allies) > 0 {
		names := make([]string, len(res.Allies))
		for i, a := range res.Allies {
			names[i] = fmt.Sprintf("%s (%.2f%%)", a.Category, a.Percentage)
		}
		sb.WriteString("**Allies**: " + strings.Join(names, ", ") + "\n\n")
	}

	// Provenance
	if e.showDetails {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("*reference data `%s` (hash `%s`)", res.Meta.RuleSetVersion, res.Meta.RuleSetHash))
		if res.Meta.InputHash != "" {
			sb.WriteString(fmt.Sprintf(", input `%s`", res.Meta.InputHash))
		}
		if res.Meta.Strategy != "" {
			sb.WriteString(fmt.Sprintf(", strategy %s", res.Meta.Strategy))
		}
		sb.WriteString("*\n")
	}

	return sb.String()
}

// explainContributors lists contributors in weight order.
func (e *Explainer) explainContributors(sb *strings.Builder, cs []scoring.Contributor) {
	if len(cs) == 0 {
		sb.WriteString("*No contributing facts.*\n")
		return
	}
	shown := cs
	if e.maxContributors > 0 && len(cs) > e.maxContributors {
		shown = cs[:e.maxContributors]
	}
	for _, c := range shown {
		sb.WriteString(fmt.Sprintf("- **%s** +%.2f", c.Label, c.Weight))
		if c.Polarity != "" {
			sb.WriteString(fmt.Sprintf(" (%s", c.Polarity))
			if c.Rescued {
				sb.WriteString(", rescued")
			}
			sb.WriteString(")")
		}
		if c.Rationale != "" {
			sb.WriteString(": " + c.Rationale)
		}
		if len(c.Sources) > 0 {
			sb.WriteString(fmt.Sprintf(" [%s]", strings.Join(c.Sources, ", ")))
		}
		sb.WriteString("\n")
	}
	if rest := len(cs) - len(shown); rest > 0 {
		sb.WriteString(fmt.Sprintf("- *... and %d more*\n", rest))
	}
}

type rankedCategory struct {
	Category   string
	Percentage float64
}

// ranked orders categories by percentage. Results decoded from JSON have no
// Ranked slice, so the map is sorted with name as the tie-break.
func ranked(res *classify.Result) []rankedCategory {
	out := make([]rankedCategory, 0, len(res.Percentages))
	if len(res.Ranked) > 0 {
		for _, s := range res.Ranked {
			out = append(out, rankedCategory{s.Category, s.Percentage})
		}
		return out
	}
	for cat, pct := range res.Percentages {
		out = append(out, rankedCategory{cat, pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Summary provides a one-line description of the decision.
func Summary(res *classify.Result) string {
	switch res.Classification {
	case classify.Primary:
		return fmt.Sprintf("**Primary**: %s (%.2f%%)", res.Primary, res.Percentages[res.Primary])
	case classify.Hybrid:
		a, b := res.Hybrid[0], res.Hybrid[1]
		return fmt.Sprintf("**Hybrid**: %s (%.2f%%) + %s (%.2f%%)", a, res.Percentages[a], b, res.Percentages[b])
	default:
		return "**Unresolved**"
	}
}

// ExplainPlacement renders what sparsify keeps and drops on one gate.line.
func ExplainPlacement(insp scoring.LineInspection) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Gate %d.%d\n\n", insp.Gate, insp.Line))
	if !insp.Found {
		sb.WriteString("*No entries; placements here contribute nothing.*\n")
		return sb.String()
	}

	kept := func(title string, ws []scoring.Weighted) {
		sb.WriteString(fmt.Sprintf("### %s\n", title))
		if len(ws) == 0 {
			sb.WriteString("- *none*\n")
		}
		for _, w := range ws {
			sb.WriteString(fmt.Sprintf("- %s %.3f\n", w.Category, w.Weight))
		}
		sb.WriteString("\n")
	}
	kept("Core", insp.KeptCore)
	kept("Secondary", insp.KeptSecondary)

	if len(insp.Dropped) > 0 {
		sb.WriteString("### Dropped\n")
		for _, d := range insp.Dropped {
			sb.WriteString(fmt.Sprintf("- %s %.3f (%s)\n", d.Category, d.Weight, d.Polarity))
		}
	}
	return sb.String()
}

// BatchSummary holds summary data for a completed batch run.
type BatchSummary struct {
	Strategy string         // Strategy used
	Duration string         // How long it took
	Charts   int            // Charts classified
	Primary  map[string]int // Primary classifications per category
	Hybrid   int            // Number of hybrid results
	Stale    int            // Results computed against replaced reference data
}

// FormatBatchSummary formats a batch summary for display.
func FormatBatchSummary(summary *BatchSummary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Batch Complete (%s)\n\n", summary.Strategy))

	if summary.Duration != "" {
		sb.WriteString(fmt.Sprintf("**Duration**: %s\n", summary.Duration))
	}
	sb.WriteString(fmt.Sprintf("**Charts**: %d\n", summary.Charts))
	sb.WriteString(fmt.Sprintf("**Hybrid**: %d\n\n", summary.Hybrid))

	if len(summary.Primary) > 0 {
		cats := make([]string, 0, len(summary.Primary))
		for c := range summary.Primary {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		sb.WriteString("### Primary\n")
		for _, c := range cats {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", c, summary.Primary[c]))
		}
		sb.WriteString("\n")
	}

	if summary.Stale > 0 {
		sb.WriteString(fmt.Sprintf("*%d results are stale: reference data changed during the run.*\n", summary.Stale))
	}

	return sb.String()
}

// SummarizeBatch tallies results into a BatchSummary.
func SummarizeBatch(strategy string, results []*classify.Result) *BatchSummary {
	s := &BatchSummary{Strategy: strategy, Charts: len(results), Primary: make(map[string]int)}
	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.Classification {
		case classify.Primary:
			s.Primary[r.Primary]++
		case classify.Hybrid:
			s.Hybrid++
		}
	}
	return s
}
