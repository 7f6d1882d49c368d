package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
)

type ssoServiceFixture struct {
	clients      *MockClientRepository
	users        *MockUserRepository
	authSessions *MockAuthSessionRepository
	sessions     *MockSessionRepository
	refreshRepo  *MockRefreshTokenRepository
	tokens       *TokenService
	svc          *SSOService
}

func newSSOServiceFixture(t *testing.T) *ssoServiceFixture {
	t.Helper()
	f := &ssoServiceFixture{
		clients:      new(MockClientRepository),
		users:        new(MockUserRepository),
		authSessions: new(MockAuthSessionRepository),
		sessions:     new(MockSessionRepository),
		refreshRepo:  new(MockRefreshTokenRepository),
	}
	f.tokens = NewTokenService(newTestKeyService(t), f.refreshRepo, nil, TokenServiceOptions{
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	authSvc := NewAuthService(f.users, f.sessions, new(MockMfaSessionRepository), f.refreshRepo, f.tokens, nil, new(MockPasswordHasher), nil)
	f.svc = NewSSOService(f.clients, f.users, f.authSessions, authSvc, f.tokens, nil, SSOServiceOptions{
		IdentityBaseURL: "https://sso.example.com",
		APIBaseURL:      "https://api.example.com",
	})
	return f
}

func testClient() *domain.Client {
	return &domain.Client{
		ClientID:           "client-1",
		Name:               "Test App",
		RedirectURIs:       []string{"https://app.example.com/callback"},
		DefaultRedirectURI: "https://app.example.com/default",
		AllowedScopes:      []string{"openid", "profile", "email", "read"},
		IsActive:           true,
	}
}

func oauthCode(t *testing.T, err error) string {
	t.Helper()
	var oauthErr *serrors.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	return oauthErr.Code
}

func TestSSOService_Authorize(t *testing.T) {
	t.Run("hands off to the identity login page", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		var session *domain.AuthorizationSession
		f.authSessions.On("CreateAuthSession", mock.Anything, mock.AnythingOfType("*domain.AuthorizationSession")).
			Run(func(args mock.Arguments) { session = args.Get(1).(*domain.AuthorizationSession) }).
			Return(nil).Once()

		target, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
			ClientID:    "client-1",
			RedirectURI: "https://app.example.com/callback",
			Scope:       "openid profile",
			State:       "xyz",
		})
		require.NoError(t, err)

		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "sso.example.com", u.Host)
		assert.Equal(t, "/api/v1/oauth/authorize", u.Path)
		q := u.Query()
		require.NotNil(t, session)
		assert.Equal(t, session.SessionID, q.Get("session_id"))
		assert.Equal(t, "client-1", q.Get("client_id"))
		assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "openid profile", q.Get("scope"))
		assert.Equal(t, "https://api.example.com/api/v1/auth/sso/callback", q.Get("api_callback"))
		assert.Equal(t, "xyz", q.Get("state"))
		assert.NotEmpty(t, session.AuthCode)
	})

	t.Run("unknown client", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		f.clients.On("GetClientByClientID", mock.Anything, "ghost").Return(nil, serrors.ErrClientNotFound).Once()

		_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{ClientID: "ghost"})
		assert.Equal(t, serrors.InvalidClient, oauthCode(t, err))
	})

	t.Run("disabled client", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		client := testClient()
		client.IsActive = false
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(client, nil).Once()

		_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{ClientID: "client-1"})
		assert.Equal(t, serrors.InvalidClient, oauthCode(t, err))
	})

	t.Run("unregistered redirect_uri", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()

		_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
			ClientID:    "client-1",
			RedirectURI: "https://evil.example.org/steal",
		})
		assert.Equal(t, serrors.InvalidRequest, oauthCode(t, err))
	})

	t.Run("redirect target priority", func(t *testing.T) {
		capture := func(f *ssoServiceFixture) *domain.AuthorizationSession {
			var session *domain.AuthorizationSession
			f.authSessions.On("CreateAuthSession", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { session = args.Get(1).(*domain.AuthorizationSession) }).
				Return(nil).Once()
			_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
				ClientID:         "client-1",
				RedirectURI:      "https://app.example.com/callback",
				FinalRedirectURL: "https://final.example.com/land",
			})
			require.NoError(t, err)
			return session
		}

		f := newSSOServiceFixture(t)
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		session := capture(f)
		assert.Equal(t, "https://final.example.com/land", session.RedirectURI,
			"final_redirect_url wins over redirect_uri")

		f2 := newSSOServiceFixture(t)
		f2.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		var session2 *domain.AuthorizationSession
		f2.authSessions.On("CreateAuthSession", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { session2 = args.Get(1).(*domain.AuthorizationSession) }).
			Return(nil).Once()
		_, err := f2.svc.Authorize(context.Background(), AuthorizeRequest{ClientID: "client-1"})
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.com/default", session2.RedirectURI,
			"client default applies when nothing was requested")
	})

	t.Run("disallowed scopes are filtered", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		var session *domain.AuthorizationSession
		f.authSessions.On("CreateAuthSession", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { session = args.Get(1).(*domain.AuthorizationSession) }).
			Return(nil).Once()

		_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
			ClientID: "client-1",
			Scope:    "openid admin delete",
		})
		require.NoError(t, err)
		assert.Equal(t, "openid", session.Scope)
	})

	t.Run("client default scopes apply when nothing survives", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		client := testClient()
		client.DefaultScopes = []string{"openid", "read"}
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(client, nil).Twice()
		var session *domain.AuthorizationSession
		f.authSessions.On("CreateAuthSession", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { session = args.Get(1).(*domain.AuthorizationSession) }).
			Return(nil).Twice()

		_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{ClientID: "client-1"})
		require.NoError(t, err)
		assert.Equal(t, "openid read", session.Scope, "no scope requested")

		_, err = f.svc.Authorize(context.Background(), AuthorizeRequest{
			ClientID: "client-1",
			Scope:    "admin delete",
		})
		require.NoError(t, err)
		assert.Equal(t, "openid read", session.Scope, "nothing requested survived the allow-list")
	})

	t.Run("client requiring PKCE rejects a challenge-less request", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		client := testClient()
		client.RequirePKCE = true
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(client, nil).Once()

		_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
			ClientID:    "client-1",
			RedirectURI: "https://app.example.com/callback",
		})
		require.Error(t, err)
		assert.Equal(t, serrors.InvalidRequest, oauthCode(t, err))
		assert.Contains(t, err.Error(), "code_challenge")
	})

	t.Run("existing SSO session short-circuits login", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		ssoSession := &domain.Session{
			ID: "sess-1", UserID: "user-1", SessionToken: "tok-1",
			IsActive: true, ExpiresAt: time.Now().Add(time.Hour),
		}
		f.sessions.On("GetSessionByToken", mock.Anything, "tok-1").Return(ssoSession, nil).Once()
		f.sessions.On("TouchSession", mock.Anything, "sess-1", mock.Anything).Return(nil).Once()
		f.users.On("GetUserByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
		f.refreshRepo.On("StoreRefreshToken", mock.Anything, mock.Anything).Return(nil).Once()
		f.authSessions.On("CreateAuthSession", mock.Anything, mock.Anything).Return(nil).Once()

		target, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
			ClientID:     "client-1",
			RedirectURI:  "https://app.example.com/callback",
			State:        "s1",
			SessionToken: "tok-1",
		})
		require.NoError(t, err)

		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", u.Host, "straight back to the client, no login leg")
		assert.NotEmpty(t, u.Query().Get("code"))
		assert.Equal(t, "s1", u.Query().Get("state"))
	})
}

func TestSSOService_Callback(t *testing.T) {
	t.Run("binds the user and redirects with a fresh code", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := &domain.AuthorizationSession{
			SessionID:   "as-1",
			ClientID:    "client-1",
			RedirectURI: "https://app.example.com/callback",
			Scope:       "openid",
			State:       "xyz",
		}
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()
		f.users.On("GetUserByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
		f.authSessions.On("UpdateAuthSession", mock.Anything, mock.Anything).Return(nil).Once()

		target, err := f.svc.Callback(context.Background(), "as-1", "user-1")
		require.NoError(t, err)

		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", u.Host)
		assert.NotEmpty(t, u.Query().Get("code"))
		assert.Equal(t, "xyz", u.Query().Get("state"))
		assert.Equal(t, "user-1", session.UserID)
	})

	t.Run("completed session is rejected", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := &domain.AuthorizationSession{SessionID: "as-1", IsCompleted: true}
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

		_, err := f.svc.Callback(context.Background(), "as-1", "user-1")
		assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
	})

	t.Run("inactive user is rejected", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := &domain.AuthorizationSession{SessionID: "as-1"}
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()
		user := testUser()
		user.Status = domain.UserStatusDisabled
		f.users.On("GetUserByID", mock.Anything, "user-1").Return(user, nil).Once()

		_, err := f.svc.Callback(context.Background(), "as-1", "user-1")
		assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
	})
}

func TestSSOService_ExchangeToken(t *testing.T) {
	setup := func(t *testing.T, f *ssoServiceFixture, session *domain.AuthorizationSession) string {
		t.Helper()
		code, err := f.tokens.EncodeAuthorizationCode(session.SessionID, session.Scope, nil)
		require.NoError(t, err)
		session.AuthCode = code
		session.AuthCodeExpiresAt = time.Now().Add(AuthCodeTTL)
		return code
	}

	baseSession := func() *domain.AuthorizationSession {
		return &domain.AuthorizationSession{
			SessionID: "as-1",
			UserID:    "user-1",
			ClientID:  "client-1",
			Scope:     "openid",
		}
	}

	t.Run("happy path", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := baseSession()
		code := setup(t, f, session)

		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()
		f.users.On("GetUserByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
		f.refreshRepo.On("StoreRefreshToken", mock.Anything, mock.Anything).Return(nil).Once()
		f.authSessions.On("CompleteAuthSession", mock.Anything, "as-1", mock.Anything).Return(true, nil).Once()

		tokens, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.NotEmpty(t, tokens.IDToken)
	})

	t.Run("embedded token set is unwrapped, not re-minted", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := baseSession()
		set := &domain.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1", IDToken: "idt-1", TokenType: "Bearer"}
		code, err := f.tokens.EncodeAuthorizationCode(session.SessionID, session.Scope, set)
		require.NoError(t, err)
		session.AuthCode = code
		session.AuthCodeExpiresAt = time.Now().Add(AuthCodeTTL)

		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()
		f.users.On("GetUserByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
		f.authSessions.On("CompleteAuthSession", mock.Anything, "as-1", mock.Anything).Return(true, nil).Once()

		tokens, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
		require.NoError(t, err)
		assert.Equal(t, "at-1", tokens.AccessToken)
		assert.Equal(t, "rt-1", tokens.RefreshToken)
		// No new refresh token row: the set issued at authorize time is the
		// one delivered.
		f.refreshRepo.AssertExpectations(t)
		f.refreshRepo.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything)
	})

	t.Run("code is one-shot", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := baseSession()
		code := setup(t, f, session)

		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()
		f.users.On("GetUserByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
		f.refreshRepo.On("StoreRefreshToken", mock.Anything, mock.Anything).Return(nil).Once()
		// The conditional completion lost: someone already redeemed the code.
		f.authSessions.On("CompleteAuthSession", mock.Anything, "as-1", mock.Anything).Return(false, nil).Once()

		_, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
		assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
	})

	t.Run("already completed session", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := baseSession()
		session.IsCompleted = true
		code := setup(t, f, session)

		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

		_, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
		assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
	})

	t.Run("expired code", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := baseSession()
		code := setup(t, f, session)
		session.AuthCodeExpiresAt = time.Now().Add(-time.Minute)

		f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

		_, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
		assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
	})

	t.Run("code issued to another client", func(t *testing.T) {
		f := newSSOServiceFixture(t)
		session := baseSession()
		code := setup(t, f, session)

		other := testClient()
		other.ClientID = "client-2"
		f.clients.On("GetClientByClientID", mock.Anything, "client-2").Return(other, nil).Once()
		f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

		_, err := f.svc.ExchangeToken(context.Background(), "client-2", code, "")
		assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
	})

	t.Run("PKCE", func(t *testing.T) {
		verifier := "3641a2d12d66101249cdf7a79c000c1f8c7d72106f03a9aadd8c9fc9"
		sum := sha256.Sum256([]byte(verifier))
		challenge := base64.RawURLEncoding.EncodeToString(sum[:])

		pkceSession := func() *domain.AuthorizationSession {
			s := baseSession()
			s.CodeChallenge = challenge
			s.CodeChallengeMethod = PKCEMethodS256
			return s
		}

		t.Run("missing verifier invalidates the grant", func(t *testing.T) {
			f := newSSOServiceFixture(t)
			session := pkceSession()
			code := setup(t, f, session)
			f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
			f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

			_, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
			require.Error(t, err)
			assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
			assert.Contains(t, err.Error(), "PKCE")
		})

		t.Run("wrong verifier invalidates the grant", func(t *testing.T) {
			f := newSSOServiceFixture(t)
			session := pkceSession()
			code := setup(t, f, session)
			f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
			f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

			_, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "wrong-verifier")
			require.Error(t, err)
			assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
		})

		t.Run("client requiring PKCE rejects a challenge-less code", func(t *testing.T) {
			f := newSSOServiceFixture(t)
			session := baseSession()
			code := setup(t, f, session)
			client := testClient()
			client.RequirePKCE = true
			f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(client, nil).Once()
			f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()

			_, err := f.svc.ExchangeToken(context.Background(), "client-1", code, "")
			require.Error(t, err)
			assert.Equal(t, serrors.InvalidGrant, oauthCode(t, err))
		})

		t.Run("correct verifier", func(t *testing.T) {
			f := newSSOServiceFixture(t)
			session := pkceSession()
			code := setup(t, f, session)
			f.clients.On("GetClientByClientID", mock.Anything, "client-1").Return(testClient(), nil).Once()
			f.authSessions.On("GetAuthSessionBySessionID", mock.Anything, "as-1").Return(session, nil).Once()
			f.users.On("GetUserByID", mock.Anything, "user-1").Return(testUser(), nil).Once()
			f.refreshRepo.On("StoreRefreshToken", mock.Anything, mock.Anything).Return(nil).Once()
			f.authSessions.On("CompleteAuthSession", mock.Anything, "as-1", mock.Anything).Return(true, nil).Once()

			tokens, err := f.svc.ExchangeToken(context.Background(), "client-1", code, verifier)
			require.NoError(t, err)
			assert.NotEmpty(t, tokens.AccessToken)
		})
	})
}

func TestSSOService_Logout(t *testing.T) {
	f := newSSOServiceFixture(t)

	t.Run("builds the identity logout URL", func(t *testing.T) {
		target := f.svc.Logout(context.Background(), "", "https://app.example.com/")

		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "sso.example.com", u.Host)
		assert.Equal(t, "/api/v1/oauth/logout", u.Path)
		assert.NotEmpty(t, u.Query().Get("logout_id"))
		assert.Equal(t, "https://app.example.com/", u.Query().Get("redirect_uri"))
	})

	t.Run("verifiable token adds the user", func(t *testing.T) {
		accessToken, err := f.tokens.GenerateAccessToken(testUser(), "openid")
		require.NoError(t, err)

		target := f.svc.Logout(context.Background(), accessToken, "")
		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.Query().Get("user_id"))
	})

	t.Run("garbage token still logs out", func(t *testing.T) {
		target := f.svc.Logout(context.Background(), "garbage", "")
		assert.True(t, strings.HasPrefix(target, "https://sso.example.com/api/v1/oauth/logout"))
	})
}
