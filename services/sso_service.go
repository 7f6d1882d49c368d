package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
)

// SSOServiceOptions carries the two base URLs the broker redirects
// between: the Identity frontend that renders login, and this API.
type SSOServiceOptions struct {
	IdentityBaseURL string
	APIBaseURL      string
}

// AuthorizeRequest is one /authorize call.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	FinalRedirectURL    string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	// SessionToken is the browser's SSO session cookie, empty when absent.
	SessionToken string
}

// SSOService brokers the OAuth2 authorization-code flow between client
// applications, the Identity login frontend, and the token service.
type SSOService struct {
	clients      domain.ClientRepository
	users        domain.UserRepository
	authSessions domain.AuthSessionRepository
	auth         *AuthService
	tokens       *TokenService
	audit        *AuditRecorder

	identityBaseURL string
	apiBaseURL      string
}

// NewSSOService creates an SSOService.
func NewSSOService(
	clients domain.ClientRepository,
	users domain.UserRepository,
	authSessions domain.AuthSessionRepository,
	auth *AuthService,
	tokens *TokenService,
	audit *AuditRecorder,
	opts SSOServiceOptions,
) *SSOService {
	return &SSOService{
		clients:         clients,
		users:           users,
		authSessions:    authSessions,
		auth:            auth,
		tokens:          tokens,
		audit:           audit,
		identityBaseURL: strings.TrimRight(opts.IdentityBaseURL, "/"),
		apiBaseURL:      strings.TrimRight(opts.APIBaseURL, "/"),
	}
}

// Authorize starts the authorization-code flow and returns the URL the
// browser must be redirected to: straight back to the client with a code
// when an SSO session already exists, otherwise to the Identity login page.
func (s *SSOService) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	client, err := s.validateClient(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	redirectURI, err := s.determineRedirectURI(client, req)
	if err != nil {
		return "", err
	}
	if client.RequirePKCE && req.CodeChallenge == "" {
		return "", serrors.NewPKCERequired()
	}
	scope := s.validateScopes(client, req.Scope)

	now := time.Now()
	session := &domain.AuthorizationSession{
		ID:                  uuid.NewString(),
		SessionID:           uuid.NewString(),
		ClientID:            client.ClientID,
		RedirectURI:         redirectURI,
		Scope:               scope,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		AuthCodeExpiresAt:   now.Add(AuthCodeTTL),
		CreatedAt:           now,
	}

	// An existing SSO session short-circuits the login leg entirely.
	if req.SessionToken != "" {
		if ssoSession, err := s.auth.ValidateSsoSession(ctx, req.SessionToken); err == nil {
			return s.completeWithSession(ctx, session, ssoSession.UserID)
		}
	}

	code, err := s.tokens.EncodeAuthorizationCode(session.SessionID, scope, nil)
	if err != nil {
		return "", serrors.NewServerError("failed to create authorization code")
	}
	session.AuthCode = code
	if err := s.authSessions.CreateAuthSession(ctx, session); err != nil {
		return "", serrors.NewServerError("failed to persist authorization session")
	}

	// Hand off to the Identity frontend; it sends the user back through
	// our callback once login (and MFA, if any) succeeds.
	login, _ := url.Parse(s.identityBaseURL + "/api/v1/oauth/authorize")
	q := login.Query()
	q.Set("session_id", session.SessionID)
	q.Set("client_id", client.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", defaultString(req.ResponseType, "code"))
	q.Set("scope", scope)
	q.Set("api_callback", s.apiBaseURL+"/api/v1/auth/sso/callback")
	if req.State != "" {
		q.Set("state", req.State)
	}
	login.RawQuery = q.Encode()
	return login.String(), nil
}

// Callback is the Identity frontend's return leg: the user authenticated,
// and the auth session can now be bound to them and sent back to the
// client with a fresh code.
func (s *SSOService) Callback(ctx context.Context, sessionID, userID string) (string, error) {
	session, err := s.authSessions.GetAuthSessionBySessionID(ctx, sessionID)
	if err != nil {
		return "", serrors.NewInvalidGrant("unknown authorization session")
	}
	if session.IsCompleted {
		return "", serrors.NewInvalidGrant("authorization session already completed")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || user.Status != domain.UserStatusActive {
		return "", serrors.NewInvalidGrant("user is not active")
	}

	session.UserID = userID
	code, err := s.tokens.EncodeAuthorizationCode(session.SessionID, session.Scope, nil)
	if err != nil {
		return "", serrors.NewServerError("failed to create authorization code")
	}
	session.AuthCode = code
	session.AuthCodeExpiresAt = time.Now().Add(AuthCodeTTL)
	if err := s.authSessions.UpdateAuthSession(ctx, session); err != nil {
		return "", serrors.NewServerError("failed to update authorization session")
	}
	return buildClientRedirect(session.RedirectURI, code, session.State), nil
}

// completeWithSession handles the already-logged-in branch of Authorize:
// tokens are minted now and travel inside the code, the exchange only
// validates and unwraps them.
func (s *SSOService) completeWithSession(ctx context.Context, session *domain.AuthorizationSession, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil || user.Status != domain.UserStatusActive {
		return "", serrors.NewInvalidGrant("user is not active")
	}
	tokens, err := s.tokens.GenerateTokenSet(ctx, user, session.ClientID, session.Scope, session.Nonce)
	if err != nil {
		return "", serrors.NewServerError("failed to issue tokens")
	}
	code, err := s.tokens.EncodeAuthorizationCode(session.SessionID, session.Scope, tokens)
	if err != nil {
		return "", serrors.NewServerError("failed to create authorization code")
	}
	session.UserID = userID
	session.AuthCode = code
	if err := s.authSessions.CreateAuthSession(ctx, session); err != nil {
		return "", serrors.NewServerError("failed to persist authorization session")
	}
	return buildClientRedirect(session.RedirectURI, code, session.State), nil
}

// ExchangeToken redeems an authorization code for the token triple. The
// exchange is one-shot: completing the session is a conditional update and
// a second redemption of the same code fails with invalid_grant.
func (s *SSOService) ExchangeToken(ctx context.Context, clientID, code, codeVerifier string) (*domain.TokenSet, error) {
	client, err := s.validateClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sessionID, _, embedded, err := s.tokens.DecodeAuthorizationCode(code)
	if err != nil {
		return nil, serrors.NewInvalidGrant("authorization code is invalid or expired")
	}
	session, err := s.authSessions.GetAuthSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, serrors.NewInvalidGrant("unknown authorization session")
	}
	now := time.Now()
	if session.IsCompleted {
		return nil, serrors.NewInvalidGrant("authorization code already used")
	}
	if session.IsCodeExpired(now) {
		return nil, serrors.NewInvalidGrant("authorization code has expired")
	}
	if session.ClientID != clientID {
		return nil, serrors.NewInvalidGrant("authorization code was issued to another client")
	}

	if session.CodeChallenge != "" {
		if codeVerifier == "" {
			return nil, serrors.NewInvalidPKCE("code_verifier is required")
		}
		if !ValidatePKCEChallenge(session.CodeChallenge, session.CodeChallengeMethod, codeVerifier) {
			return nil, serrors.NewInvalidPKCE("code_verifier does not match challenge")
		}
	} else if client.RequirePKCE {
		return nil, serrors.NewInvalidGrant("authorization code was issued without the required PKCE challenge")
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil || user.Status != domain.UserStatusActive {
		return nil, serrors.NewInvalidGrant("user is not active")
	}

	// A code minted for an existing SSO session already carries the token
	// set; redeeming it must not issue a second one.
	tokens := embedded
	if tokens == nil {
		tokens, err = s.tokens.GenerateTokenSet(ctx, user, session.ClientID, session.Scope, session.Nonce)
		if err != nil {
			return nil, serrors.NewServerError("failed to issue tokens")
		}
	}

	completed, err := s.authSessions.CompleteAuthSession(ctx, session.SessionID, now)
	if err != nil {
		return nil, serrors.NewServerError("failed to complete authorization session")
	}
	if !completed {
		return nil, serrors.NewInvalidGrant("authorization code already used")
	}

	if metrics.TokenExchangesTotal != nil {
		metrics.TokenExchangesTotal.Inc()
	}
	s.audit.Record(ctx, &domain.AuditEvent{
		UserID: user.ID, Action: domain.AuditActionTokenExchange, Status: domain.AuditSuccess,
		Details: session.ClientID,
	})
	return tokens, nil
}

// Refresh exchanges a refresh token for a new pair on behalf of a client.
func (s *SSOService) Refresh(ctx context.Context, clientID, refreshToken string) (*domain.TokenSet, error) {
	if _, err := s.validateClient(ctx, clientID); err != nil {
		return nil, err
	}
	tokens, err := s.auth.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, serrors.NewInvalidGrant("refresh token is invalid or revoked")
	}
	return tokens, nil
}

// Logout builds the Identity logout URL. It never fails: a bad or missing
// token still logs the browser out of the Identity frontend.
func (s *SSOService) Logout(ctx context.Context, accessToken, redirectURI string) string {
	logoutURL, _ := url.Parse(s.identityBaseURL + "/api/v1/oauth/logout")
	q := logoutURL.Query()
	q.Set("logout_id", uuid.NewString())
	if accessToken != "" {
		if claims, err := s.tokens.VerifyAccessToken(accessToken); err == nil {
			if sub, _ := claims["sub"].(string); sub != "" {
				q.Set("user_id", sub)
				s.audit.Record(ctx, &domain.AuditEvent{
					UserID: sub, Action: domain.AuditActionLogout, Status: domain.AuditSuccess,
				})
			}
		} else {
			log.Debug().Err(err).Msg("Logout called with unverifiable access token")
		}
	}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	logoutURL.RawQuery = q.Encode()
	return logoutURL.String()
}

func (s *SSOService) validateClient(ctx context.Context, clientID string) (*domain.Client, error) {
	if clientID == "" {
		return nil, serrors.NewInvalidClient("client_id is required")
	}
	client, err := s.clients.GetClientByClientID(ctx, clientID)
	if err != nil {
		return nil, serrors.NewInvalidClient("unknown client")
	}
	if !client.IsActive {
		return nil, serrors.NewInvalidClient("client is disabled")
	}
	return client, nil
}

// determineRedirectURI resolves the target in priority order: an explicit
// final_redirect_url, the requested redirect_uri checked against the
// allow-list, then the client default.
func (s *SSOService) determineRedirectURI(client *domain.Client, req AuthorizeRequest) (string, error) {
	if req.FinalRedirectURL != "" {
		u, err := url.Parse(req.FinalRedirectURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", serrors.NewInvalidRequest("final_redirect_url is not a valid URL")
		}
		return req.FinalRedirectURL, nil
	}
	if req.RedirectURI != "" {
		if !client.AllowsRedirectURI(req.RedirectURI) {
			return "", serrors.NewInvalidRequest("redirect_uri is not registered for this client")
		}
		return req.RedirectURI, nil
	}
	if client.DefaultRedirectURI != "" {
		return client.DefaultRedirectURI, nil
	}
	return "", serrors.NewInvalidRequest("no redirect_uri available")
}

// validateScopes filters the requested scopes against the client's
// allow-list. When nothing was requested or nothing survives, the client's
// configured default scopes apply, then the base scopes.
func (s *SSOService) validateScopes(client *domain.Client, requested string) string {
	fallback := client.DefaultScopes
	if len(fallback) == 0 {
		fallback = domain.BaseScopes
	}
	if requested == "" {
		return strings.Join(fallback, " ")
	}
	if len(client.AllowedScopes) == 0 {
		return requested
	}
	allowed := make(map[string]bool, len(client.AllowedScopes))
	for _, sc := range client.AllowedScopes {
		allowed[sc] = true
	}
	var kept []string
	for _, sc := range strings.Fields(requested) {
		if allowed[sc] {
			kept = append(kept, sc)
		}
	}
	if len(kept) == 0 {
		return strings.Join(fallback, " ")
	}
	return strings.Join(kept, " ")
}

func buildClientRedirect(redirectURI, code, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
