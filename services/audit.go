package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/domain"
)

// AuditRecorder writes authentication events to the audit trail. Writes are
// fire-and-forget: audit failures must never fail the operation being
// audited.
type AuditRecorder struct {
	repo domain.AuditRepository
}

// NewAuditRecorder creates an AuditRecorder. A nil repository disables
// recording, which keeps tests and tools free of the dependency.
func NewAuditRecorder(repo domain.AuditRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

// Record stores one audit event in the background.
func (r *AuditRecorder) Record(ctx context.Context, event *domain.AuditEvent) {
	if r == nil || r.repo == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.repo.StoreAuditEvent(writeCtx, event); err != nil {
			log.Warn().Err(err).Str("action", event.Action).Msg("Failed to store audit event")
		}
	}()
}
