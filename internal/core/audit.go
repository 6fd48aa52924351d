package core

import (
	"context"
	"time"
)

// AuditEntry records one completed import run.
type AuditEntry struct {
	ID         string        `json:"id"`
	Collection string        `json:"collection"`
	Mode       ImportMode    `json:"mode"`
	MatchField string        `json:"matchField,omitempty"`
	Records    int           `json:"records"`
	Summary    ImportSummary `json:"summary"`
	IPAddress  string        `json:"ipAddress,omitempty"`
	UserAgent  string        `json:"userAgent,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// AuditRecorder is implemented by stores that persist an import audit trail.
type AuditRecorder interface {
	RecordImport(ctx context.Context, entry AuditEntry) error
}

// newAuditEntry builds the audit record for a finished run.
func newAuditEntry(ctx context.Context, importID string, req ImportRequest, summary ImportSummary, started time.Time) AuditEntry {
	meta := RequestMetaFromContext(ctx)
	return AuditEntry{
		ID:         importID,
		Collection: req.CollectionSlug,
		Mode:       req.ImportMode,
		MatchField: req.MatchField,
		Records:    len(req.Data),
		Summary:    summary,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Duration:   time.Since(started),
		CreatedAt:  time.Now().UTC(),
	}
}
