// Package transparency turns engine output into something a person can read.
//
// The engine returns structured results; this package renders them:
//
//   - Explanations: the decision, the percentage table and the facts behind
//     each winning category, as markdown
//   - Placement inspection: what sparsify keeps and drops on a gate.line
//   - Batch summaries: tallies over a batch run
//   - Error categorization: typed errors with remediation suggestions
//
// Nothing here feeds back into scoring. Rendering a result never changes it.
package transparency
