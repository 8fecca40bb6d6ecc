package transparency

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"starsorter/internal/chart"
	"starsorter/internal/classify"
	"starsorter/internal/refdata"
	"starsorter/internal/scoring"
)

// ErrorCategory classifies errors for user guidance.
type ErrorCategory int

const (
	// ErrorCategoryConfig indicates a configuration issue.
	ErrorCategoryConfig ErrorCategory = iota

	// ErrorCategoryReferenceData indicates reference data that failed to
	// parse or validate.
	ErrorCategoryReferenceData

	// ErrorCategoryStrategy indicates an unknown strategy or a strategy
	// whose dataset is not loaded.
	ErrorCategoryStrategy

	// ErrorCategoryChart indicates a chart extract that could not be read.
	ErrorCategoryChart

	// ErrorCategoryFilesystem indicates a file/directory issue.
	ErrorCategoryFilesystem

	// ErrorCategoryCancelled indicates a cancelled or timed out operation.
	ErrorCategoryCancelled

	// ErrorCategoryUnknown is the fallback for unclassified errors.
	ErrorCategoryUnknown
)

// Prefix returns the display prefix for this error category.
func (c ErrorCategory) Prefix() string {
	prefixes := []string{
		"[CONFIG]",
		"[REFDATA]",
		"[STRATEGY]",
		"[CHART]",
		"[FS]",
		"[CANCELLED]",
		"[ERROR]",
	}
	if int(c) < len(prefixes) {
		return prefixes[c]
	}
	return "[ERROR]"
}

// String returns the category name.
func (c ErrorCategory) String() string {
	names := []string{
		"config",
		"reference_data",
		"strategy",
		"chart",
		"filesystem",
		"cancelled",
		"unknown",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "unknown"
}

// ClassifiedError wraps an error with classification and remediation.
type ClassifiedError struct {
	Original    error
	Category    ErrorCategory
	Summary     string
	Remediation []string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return ce.Format()
}

// Unwrap returns the original error for errors.Is/As compatibility.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Original
}

// Format returns a user-friendly error message with remediation.
func (ce *ClassifiedError) Format() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s\n\n", ce.Category.Prefix(), ce.Summary))
	sb.WriteString(fmt.Sprintf("Details: %s\n", ce.Original.Error()))

	if len(ce.Remediation) > 0 {
		sb.WriteString("\nSuggested fixes:\n")
		for _, r := range ce.Remediation {
			sb.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}

	return sb.String()
}

// ClassifyError analyzes an error and returns a classified version.
// Sentinel errors are matched first; message patterns catch the rest.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	category := categorize(err)
	return &ClassifiedError{
		Original:    err,
		Category:    category,
		Summary:     summaries[category],
		Remediation: GetRecoveryGuide(category),
	}
}

var summaries = map[ErrorCategory]string{
	ErrorCategoryConfig:        "Configuration issue detected",
	ErrorCategoryReferenceData: "Reference data is invalid",
	ErrorCategoryStrategy:      "Strategy cannot run",
	ErrorCategoryChart:         "Chart extract could not be read",
	ErrorCategoryFilesystem:    "Filesystem issue",
	ErrorCategoryCancelled:     "Operation was cancelled",
	ErrorCategoryUnknown:       "An unexpected error occurred",
}

func categorize(err error) ErrorCategory {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCancelled
	case errors.Is(err, refdata.ErrInvalid):
		return ErrorCategoryReferenceData
	case errors.Is(err, scoring.ErrUnknownStrategy), errors.Is(err, scoring.ErrMissingReference):
		return ErrorCategoryStrategy
	case errors.Is(err, chart.ErrInvalidAttributeKey), errors.Is(err, classify.ErrEmptyScores):
		return ErrorCategoryChart
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ErrorCategoryFilesystem
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "timeout", "timed out", "interrupt"):
		return ErrorCategoryCancelled
	case containsAny(errStr, "reference data", "rules", "gate_lines", "weights", "sparsify"):
		return ErrorCategoryReferenceData
	case containsAny(errStr, "chart"):
		return ErrorCategoryChart
	case containsAny(errStr, "config", "configuration"):
		return ErrorCategoryConfig
	case containsAny(errStr, "no such", "cannot open", "permission denied", "directory"):
		return ErrorCategoryFilesystem
	}
	return ErrorCategoryUnknown
}

// containsAny returns true if s contains any of the patterns.
func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// GetRecoveryGuide returns remediation steps for an error category.
func GetRecoveryGuide(category ErrorCategory) []string {
	guides := map[ErrorCategory][]string{
		ErrorCategoryConfig: {
			"Check starsorter.yaml is valid YAML",
			"Unset STARSORTER_* variables that override the file",
			"Compare against the output of a fresh default config",
		},
		ErrorCategoryReferenceData: {
			"Fix the file named in the details; every problem is listed",
			"Check that rule weights reference declared categories",
			"Gate-line keys must look like \"gate.line\" with gate 1-64 and line 1-6",
		},
		ErrorCategoryStrategy: {
			"Use one of: weights, rules, placements",
			"Point reference_data at the dataset the strategy needs",
		},
		ErrorCategoryChart: {
			"Check the chart file is JSON or YAML with type, centers, channels and gates",
			"Channels are written as \"34-20\" or [34, 20]",
		},
		ErrorCategoryFilesystem: {
			"Verify path exists",
			"Check file permissions",
			"Relative reference paths resolve against the config file's directory",
		},
		ErrorCategoryCancelled: {
			"Re-run the command; partial batch results are discarded",
		},
	}

	if steps, ok := guides[category]; ok {
		return steps
	}
	return []string{"Re-run with --verbose for debug logs"}
}
