package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/services"
)

// ssoSessionCookie carries the browser's SSO session token so later
// authorize calls can skip the login leg.
const ssoSessionCookie = "aether_sso_session"

// AuthorizeHandler starts the authorization-code flow.
// GET /api/v1/auth/sso/authorize
func (a *API) AuthorizeHandler(c echo.Context) error {
	req := services.AuthorizeRequest{
		ClientID:            c.QueryParam("client_id"),
		RedirectURI:         c.QueryParam("redirect_uri"),
		FinalRedirectURL:    c.QueryParam("final_redirect_url"),
		ResponseType:        c.QueryParam("response_type"),
		Scope:               c.QueryParam("scope"),
		State:               c.QueryParam("state"),
		Nonce:               c.QueryParam("nonce"),
		CodeChallenge:       c.QueryParam("code_challenge"),
		CodeChallengeMethod: c.QueryParam("code_challenge_method"),
	}
	if cookie, err := c.Cookie(ssoSessionCookie); err == nil {
		req.SessionToken = cookie.Value
	}

	target, err := a.sso.Authorize(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Redirect(http.StatusFound, target)
}

// CallbackHandler is the return leg from the Identity login frontend. It
// binds the authorization session to the authenticated user, establishes
// the browser's SSO session, and sends the user back to the client.
// GET /api/v1/auth/sso/callback
func (a *API) CallbackHandler(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	uid := c.QueryParam("user_id")
	if sessionID == "" || uid == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("session_id and user_id are required"))
	}

	target, err := a.sso.Callback(c.Request().Context(), sessionID, uid)
	if err != nil {
		return writeError(c, err)
	}

	if session, err := a.auth.CreateSsoSession(c.Request().Context(), uid, c.RealIP(), c.Request().UserAgent()); err == nil {
		c.SetCookie(&http.Cookie{
			Name:     ssoSessionCookie,
			Value:    session.SessionToken,
			Path:     "/",
			Expires:  session.ExpiresAt,
			HttpOnly: true,
			Secure:   c.Scheme() == "https",
			SameSite: http.SameSiteLaxMode,
		})
	}
	return c.Redirect(http.StatusFound, target)
}

type tokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	ClientID     string `form:"client_id" json:"client_id"`
	Code         string `form:"code" json:"code"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// TokenHandler redeems an authorization code (or refresh token) for the
// token triple. POST /api/v1/auth/sso/token
func (a *API) TokenHandler(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed token request"))
	}

	switch req.GrantType {
	case "authorization_code":
		if req.Code == "" {
			return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("code is required"))
		}
		tokens, err := a.sso.ExchangeToken(c.Request().Context(), req.ClientID, req.Code, req.CodeVerifier)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, tokens)
	case "refresh_token":
		if req.RefreshToken == "" {
			return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("refresh_token is required"))
		}
		tokens, err := a.sso.Refresh(c.Request().Context(), req.ClientID, req.RefreshToken)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, tokens)
	default:
		return c.JSON(http.StatusBadRequest, serrors.NewUnsupportedGrantType())
	}
}

// SSORefreshHandler rotates a refresh token on behalf of a client.
// POST /api/v1/auth/sso/refresh
func (a *API) SSORefreshHandler(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed refresh request"))
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("refresh_token is required"))
	}
	tokens, err := a.sso.Refresh(c.Request().Context(), req.ClientID, req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// LogoutHandler tears down the browser's SSO session and forwards to the
// Identity logout page. It never fails. GET /api/v1/auth/sso/logout
func (a *API) LogoutHandler(c echo.Context) error {
	accessToken := bearerToken(c)
	if accessToken == "" {
		accessToken = c.QueryParam("access_token")
	}

	if cookie, err := c.Cookie(ssoSessionCookie); err == nil && cookie.Value != "" {
		if session, err := a.auth.ValidateSsoSession(c.Request().Context(), cookie.Value); err == nil {
			_ = a.auth.InvalidateSsoSession(c.Request().Context(), session.ID)
		}
	}
	c.SetCookie(&http.Cookie{
		Name:     ssoSessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})

	target := a.sso.Logout(c.Request().Context(), accessToken, c.QueryParam("redirect_uri"))
	return c.Redirect(http.StatusFound, target)
}
