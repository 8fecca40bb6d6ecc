package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names an auditable engine event.
type AuditEventType string

const (
	AuditClassify      AuditEventType = "classify"
	AuditClassifyError AuditEventType = "classify_error"
	AuditBatchComplete AuditEventType = "batch_complete"
	AuditSnapshotSwap  AuditEventType = "snapshot_swap"
	AuditSnapshotFail  AuditEventType = "snapshot_reject"
)

// AuditEvent is one structured audit entry. Zero fields are omitted.
type AuditEvent struct {
	EventType      AuditEventType
	Strategy       string
	InputHash      string
	RuleSetVersion string
	RuleSetHash    string
	Classification string
	Primary        string
	Count          int
	Duration       time.Duration
	Success        bool
	Error          string
}

// AuditLogger writes audit events to the audit category.
type AuditLogger struct {
	requestID string
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithRequest scopes audit entries to a request or batch id.
func AuditWithRequest(requestID string) *AuditLogger {
	return &AuditLogger{requestID: requestID}
}

// Log writes an audit event
func (a *AuditLogger) Log(e AuditEvent) {
	fields := []zap.Field{
		zap.String("event", string(e.EventType)),
		zap.Bool("success", e.Success),
	}
	add := func(key, val string) {
		if val != "" {
			fields = append(fields, zap.String(key, val))
		}
	}
	add("req", a.requestID)
	add("strategy", e.Strategy)
	add("input_hash", e.InputHash)
	add("ruleset_version", e.RuleSetVersion)
	add("ruleset_hash", e.RuleSetHash)
	add("classification", e.Classification)
	add("primary", e.Primary)
	add("error", e.Error)
	if e.Count > 0 {
		fields = append(fields, zap.Int("count", e.Count))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("dur", e.Duration))
	}
	Get(CategoryAudit).Zap().Info("audit", fields...)
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// Classified records a successful classification.
func (a *AuditLogger) Classified(strategy, inputHash, ruleSetHash, classification, primary string, d time.Duration) {
	a.Log(AuditEvent{
		EventType:      AuditClassify,
		Strategy:       strategy,
		InputHash:      inputHash,
		RuleSetHash:    ruleSetHash,
		Classification: classification,
		Primary:        primary,
		Duration:       d,
		Success:        true,
	})
}

// ClassifyFailed records a classification that returned an error.
func (a *AuditLogger) ClassifyFailed(strategy, inputHash string, err error) {
	a.Log(AuditEvent{
		EventType: AuditClassifyError,
		Strategy:  strategy,
		InputHash: inputHash,
		Error:     err.Error(),
	})
}

// BatchComplete records the end of a batch run.
func (a *AuditLogger) BatchComplete(strategy string, count int, d time.Duration, err error) {
	e := AuditEvent{
		EventType: AuditBatchComplete,
		Strategy:  strategy,
		Count:     count,
		Duration:  d,
		Success:   err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// SnapshotSwapped records a reference data hot swap.
func (a *AuditLogger) SnapshotSwapped(version, hash string) {
	a.Log(AuditEvent{
		EventType:      AuditSnapshotSwap,
		RuleSetVersion: version,
		RuleSetHash:    hash,
		Success:        true,
	})
}

// SnapshotRejected records a reload that failed validation; the previous
// snapshot stays in service.
func (a *AuditLogger) SnapshotRejected(err error) {
	a.Log(AuditEvent{EventType: AuditSnapshotFail, Error: err.Error()})
}
