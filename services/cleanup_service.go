package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/domain"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
)

// Retention windows for the cleanup sweeps.
const (
	revokedTokenRetention   = 7 * 24 * time.Hour
	completedAuthRetention  = 24 * time.Hour
	verifiedMfaRetention    = 30 * time.Minute
	auditLogRetention       = 90 * 24 * time.Hour
	defaultCleanupInterval  = time.Hour
)

// CleanupStats reports what one sweep removed.
type CleanupStats struct {
	RefreshTokens int64 `json:"refresh_tokens"`
	Sessions      int64 `json:"sessions"`
	AuthSessions  int64 `json:"auth_sessions"`
	MfaSessions   int64 `json:"mfa_sessions"`
	AuditLogs     int64 `json:"audit_logs"`
	SweptAt       time.Time `json:"swept_at"`
}

// TokenStats is the admin-endpoint snapshot of live token state.
type TokenStats struct {
	ActiveRefreshTokens int64     `json:"active_refresh_tokens"`
	CollectedAt         time.Time `json:"collected_at"`
}

// CleanupService removes expired and defunct records on a schedule. Each
// sweep runs its five tasks independently: a failing task is logged and
// the rest still run.
type CleanupService struct {
	refreshRepo  domain.RefreshTokenRepository
	sessions     domain.SessionRepository
	authSessions domain.AuthSessionRepository
	mfaSessions  domain.MfaSessionRepository
	auditRepo    domain.AuditRepository
	interval     time.Duration
}

// NewCleanupService creates a CleanupService. A non-positive interval
// falls back to hourly.
func NewCleanupService(
	refreshRepo domain.RefreshTokenRepository,
	sessions domain.SessionRepository,
	authSessions domain.AuthSessionRepository,
	mfaSessions domain.MfaSessionRepository,
	auditRepo domain.AuditRepository,
	interval time.Duration,
) *CleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &CleanupService{
		refreshRepo:  refreshRepo,
		sessions:     sessions,
		authSessions: authSessions,
		mfaSessions:  mfaSessions,
		auditRepo:    auditRepo,
		interval:     interval,
	}
}

// Run sweeps periodically until ctx is cancelled. One sweep runs
// immediately on start.
func (s *CleanupService) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("Cleanup service started")
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Cleanup service stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs all cleanup tasks once and returns what was removed.
func (s *CleanupService) Sweep(ctx context.Context) CleanupStats {
	now := time.Now()
	stats := CleanupStats{SweptAt: now}

	stats.RefreshTokens = s.runTask(ctx, "refresh_tokens", func(ctx context.Context) (int64, error) {
		return s.refreshRepo.DeleteDefunctRefreshTokens(ctx, now, now.Add(-revokedTokenRetention))
	})
	stats.Sessions = s.runTask(ctx, "sessions", func(ctx context.Context) (int64, error) {
		return s.sessions.DeleteDefunctSessions(ctx, now)
	})
	stats.AuthSessions = s.runTask(ctx, "auth_sessions", func(ctx context.Context) (int64, error) {
		return s.authSessions.DeleteDefunctAuthSessions(ctx, now, now.Add(-completedAuthRetention))
	})
	stats.MfaSessions = s.runTask(ctx, "mfa_sessions", func(ctx context.Context) (int64, error) {
		return s.mfaSessions.DeleteDefunctMfaSessions(ctx, now, now.Add(-verifiedMfaRetention))
	})
	stats.AuditLogs = s.runTask(ctx, "audit_logs", func(ctx context.Context) (int64, error) {
		return s.auditRepo.DeleteAuditEventsBefore(ctx, now.Add(-auditLogRetention))
	})

	log.Info().
		Int64("refresh_tokens", stats.RefreshTokens).
		Int64("sessions", stats.Sessions).
		Int64("auth_sessions", stats.AuthSessions).
		Int64("mfa_sessions", stats.MfaSessions).
		Int64("audit_logs", stats.AuditLogs).
		Msg("Cleanup sweep finished")
	return stats
}

// RevokeAllUserRefreshTokens is the imperative kill switch for one user's
// refresh tokens.
func (s *CleanupService) RevokeAllUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	return s.refreshRepo.RevokeUserRefreshTokens(ctx, userID, time.Now())
}

// RevokeAllUserSessions deactivates all SSO sessions of one user.
func (s *CleanupService) RevokeAllUserSessions(ctx context.Context, userID string) (int64, error) {
	return s.sessions.DeactivateUserSessions(ctx, userID)
}

// Stats collects the live token counters for the admin endpoint.
func (s *CleanupService) Stats(ctx context.Context) (*TokenStats, error) {
	now := time.Now()
	active, err := s.refreshRepo.CountActiveRefreshTokens(ctx, now)
	if err != nil {
		return nil, err
	}
	return &TokenStats{ActiveRefreshTokens: active, CollectedAt: now}, nil
}

func (s *CleanupService) runTask(ctx context.Context, name string, task func(context.Context) (int64, error)) int64 {
	n, err := task(ctx)
	if err != nil {
		log.Error().Err(err).Str("task", name).Msg("Cleanup task failed")
		return 0
	}
	if n > 0 && metrics.CleanupDeletionsTotal != nil {
		metrics.CleanupDeletionsTotal.WithLabelValues(name).Add(float64(n))
	}
	return n
}
