package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/skygenesisenterprise/aether-identity/domain"
)

// Shared mock repositories for the service tests.

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error {
	args := m.Called(ctx, userID, lockUntil)
	return args.Error(0)
}

func (m *MockUserRepository) ResetLoginFailures(ctx context.Context, userID string, loginAt time.Time) error {
	args := m.Called(ctx, userID, loginAt)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateMfaState(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	args := m.Called(ctx, userID, code)
	return args.Bool(0), args.Error(1)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) GetClientByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockClientRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) UpdateClient(ctx context.Context, client *domain.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) TouchSession(ctx context.Context, id string, seenAt time.Time) error {
	args := m.Called(ctx, id, seenAt)
	return args.Error(0)
}

func (m *MockSessionRepository) DeactivateSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) DeactivateUserSessions(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) DeleteDefunctSessions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuthSessionRepository struct {
	mock.Mock
}

func (m *MockAuthSessionRepository) CreateAuthSession(ctx context.Context, session *domain.AuthorizationSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockAuthSessionRepository) GetAuthSessionBySessionID(ctx context.Context, sessionID string) (*domain.AuthorizationSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthorizationSession), args.Error(1)
}

func (m *MockAuthSessionRepository) UpdateAuthSession(ctx context.Context, session *domain.AuthorizationSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockAuthSessionRepository) CompleteAuthSession(ctx context.Context, sessionID string, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, sessionID, completedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthSessionRepository) DeleteDefunctAuthSessions(ctx context.Context, now time.Time, completedBefore time.Time) (int64, error) {
	args := m.Called(ctx, now, completedBefore)
	return args.Get(0).(int64), args.Error(1)
}

type MockMfaSessionRepository struct {
	mock.Mock
}

func (m *MockMfaSessionRepository) GetMfaSession(ctx context.Context, userID string) (*domain.MfaSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MfaSession), args.Error(1)
}

func (m *MockMfaSessionRepository) GetMfaSessionByID(ctx context.Context, id string) (*domain.MfaSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MfaSession), args.Error(1)
}

func (m *MockMfaSessionRepository) UpsertMfaSession(ctx context.Context, session *domain.MfaSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockMfaSessionRepository) UpdateMfaSession(ctx context.Context, session *domain.MfaSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockMfaSessionRepository) DeleteMfaSessions(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockMfaSessionRepository) DeleteDefunctMfaSessions(ctx context.Context, now time.Time, verifiedBefore time.Time) (int64, error) {
	args := m.Called(ctx, now, verifiedBefore)
	return args.Get(0).(int64), args.Error(1)
}

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) GetRefreshTokenByTokenID(ctx context.Context, tokenID string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepository) RevokeRefreshToken(ctx context.Context, tokenID string, revokedAt time.Time) (bool, error) {
	args := m.Called(ctx, tokenID, revokedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRefreshTokenRepository) RevokeUserRefreshTokens(ctx context.Context, userID string, revokedAt time.Time) (int64, error) {
	args := m.Called(ctx, userID, revokedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteDefunctRefreshTokens(ctx context.Context, now time.Time, revokedBefore time.Time) (int64, error) {
	args := m.Called(ctx, now, revokedBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepository) CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) StoreAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditRepository) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(hashedPassword, password string) error {
	args := m.Called(hashedPassword, password)
	return args.Error(0)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	args := m.Called(ctx, to, body)
	return args.Error(0)
}
