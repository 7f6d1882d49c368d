package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cleanupServiceFixture struct {
	refreshRepo  *MockRefreshTokenRepository
	sessions     *MockSessionRepository
	authSessions *MockAuthSessionRepository
	mfaSessions  *MockMfaSessionRepository
	audit        *MockAuditRepository
	svc          *CleanupService
}

func newCleanupServiceFixture() *cleanupServiceFixture {
	f := &cleanupServiceFixture{
		refreshRepo:  new(MockRefreshTokenRepository),
		sessions:     new(MockSessionRepository),
		authSessions: new(MockAuthSessionRepository),
		mfaSessions:  new(MockMfaSessionRepository),
		audit:        new(MockAuditRepository),
	}
	f.svc = NewCleanupService(f.refreshRepo, f.sessions, f.authSessions, f.mfaSessions, f.audit, time.Hour)
	return f
}

func TestCleanupService_Sweep(t *testing.T) {
	f := newCleanupServiceFixture()
	f.refreshRepo.On("DeleteDefunctRefreshTokens", mock.Anything, mock.Anything, mock.Anything).Return(int64(3), nil).Once()
	f.sessions.On("DeleteDefunctSessions", mock.Anything, mock.Anything).Return(int64(2), nil).Once()
	f.authSessions.On("DeleteDefunctAuthSessions", mock.Anything, mock.Anything, mock.Anything).Return(int64(5), nil).Once()
	f.mfaSessions.On("DeleteDefunctMfaSessions", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil).Once()
	f.audit.On("DeleteAuditEventsBefore", mock.Anything, mock.Anything).Return(int64(7), nil).Once()

	stats := f.svc.Sweep(context.Background())

	assert.Equal(t, int64(3), stats.RefreshTokens)
	assert.Equal(t, int64(2), stats.Sessions)
	assert.Equal(t, int64(5), stats.AuthSessions)
	assert.Equal(t, int64(1), stats.MfaSessions)
	assert.Equal(t, int64(7), stats.AuditLogs)
	assert.False(t, stats.SweptAt.IsZero())

	f.refreshRepo.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
	f.authSessions.AssertExpectations(t)
	f.mfaSessions.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestCleanupService_Sweep_RetentionCutoffs(t *testing.T) {
	f := newCleanupServiceFixture()
	start := time.Now()
	f.refreshRepo.On("DeleteDefunctRefreshTokens", mock.Anything, mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Before(start.Add(-6 * 24 * time.Hour))
	})).Return(int64(0), nil).Once()
	f.sessions.On("DeleteDefunctSessions", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	f.authSessions.On("DeleteDefunctAuthSessions", mock.Anything, mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Before(start.Add(-23 * time.Hour))
	})).Return(int64(0), nil).Once()
	f.mfaSessions.On("DeleteDefunctMfaSessions", mock.Anything, mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Before(start.Add(-29 * time.Minute))
	})).Return(int64(0), nil).Once()
	f.audit.On("DeleteAuditEventsBefore", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Before(start.Add(-89 * 24 * time.Hour))
	})).Return(int64(0), nil).Once()

	f.svc.Sweep(context.Background())

	f.refreshRepo.AssertExpectations(t)
	f.authSessions.AssertExpectations(t)
	f.mfaSessions.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestCleanupService_Sweep_FailingTaskDoesNotStopOthers(t *testing.T) {
	f := newCleanupServiceFixture()
	f.refreshRepo.On("DeleteDefunctRefreshTokens", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("mongo unavailable")).Once()
	f.sessions.On("DeleteDefunctSessions", mock.Anything, mock.Anything).Return(int64(4), nil).Once()
	f.authSessions.On("DeleteDefunctAuthSessions", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	f.mfaSessions.On("DeleteDefunctMfaSessions", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	f.audit.On("DeleteAuditEventsBefore", mock.Anything, mock.Anything).Return(int64(0), nil).Once()

	stats := f.svc.Sweep(context.Background())

	assert.Equal(t, int64(0), stats.RefreshTokens)
	assert.Equal(t, int64(4), stats.Sessions)
	f.sessions.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestCleanupService_Run_StopsOnCancel(t *testing.T) {
	f := newCleanupServiceFixture()
	f.refreshRepo.On("DeleteDefunctRefreshTokens", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.sessions.On("DeleteDefunctSessions", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.authSessions.On("DeleteDefunctAuthSessions", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.mfaSessions.On("DeleteDefunctMfaSessions", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.audit.On("DeleteAuditEventsBefore", mock.Anything, mock.Anything).Return(int64(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestCleanupService_RevokeAllUserTokens(t *testing.T) {
	f := newCleanupServiceFixture()
	f.refreshRepo.On("RevokeUserRefreshTokens", mock.Anything, "user-1", mock.Anything).Return(int64(2), nil).Once()
	f.sessions.On("DeactivateUserSessions", mock.Anything, "user-1").Return(int64(1), nil).Once()

	revoked, err := f.svc.RevokeAllUserRefreshTokens(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	deactivated, err := f.svc.RevokeAllUserSessions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deactivated)

	f.refreshRepo.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestCleanupService_Stats(t *testing.T) {
	f := newCleanupServiceFixture()
	f.refreshRepo.On("CountActiveRefreshTokens", mock.Anything, mock.Anything).Return(int64(42), nil).Once()

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.ActiveRefreshTokens)
	f.refreshRepo.AssertExpectations(t)
}
