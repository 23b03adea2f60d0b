package logging

import (
	"context"
	"staffcore/internal/core"
)

// AuditRecorder writes one line per audited service call. Failures are
// logged at warn level.
type AuditRecorder struct {
	log *Logger
}

// NewAuditRecorder returns a core.AuditRecorder backed by l.
func NewAuditRecorder(l *Logger) *AuditRecorder {
	return &AuditRecorder{log: l.With("component", "audit")}
}

func (a *AuditRecorder) Record(_ context.Context, entry core.AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
		"status", string(entry.Status),
		"duration", entry.Duration,
	}
	if entry.Status == core.AuditStatusError {
		a.log.Warn("audit", append(args, "error", entry.Error)...)
		return
	}
	a.log.Info("audit", args...)
}
