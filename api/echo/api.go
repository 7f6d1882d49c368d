// Package echo wires the HTTP surface: the SSO authorization-code flow,
// login and refresh, MFA management, OIDC discovery, and the admin
// endpoints the CLI talks to.
package echo

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/services"
)

// API holds the handler dependencies.
type API struct {
	sso     *services.SSOService
	auth    *services.AuthService
	mfa     *services.MFAService
	totp    *services.TOTPService
	keys    *services.KeyService
	tokens  *services.TokenService
	cleanup *services.CleanupService

	issuer     string
	adminToken string
}

// NewAPI initializes the HTTP API.
func NewAPI(
	sso *services.SSOService,
	auth *services.AuthService,
	mfa *services.MFAService,
	totp *services.TOTPService,
	keys *services.KeyService,
	tokens *services.TokenService,
	cleanup *services.CleanupService,
	issuer, adminToken string,
) *API {
	return &API{
		sso:        sso,
		auth:       auth,
		mfa:        mfa,
		totp:       totp,
		keys:       keys,
		tokens:     tokens,
		cleanup:    cleanup,
		issuer:     issuer,
		adminToken: adminToken,
	}
}

// RegisterRoutes registers all routes on the echo instance.
func (a *API) RegisterRoutes(e *echo.Echo) {
	sso := e.Group("/api/v1/auth/sso")
	sso.GET("/authorize", a.AuthorizeHandler)
	sso.GET("/callback", a.CallbackHandler)
	sso.POST("/token", a.TokenHandler)
	sso.POST("/refresh", a.SSORefreshHandler)
	sso.GET("/logout", a.LogoutHandler)

	auth := e.Group("/api/v1/auth")
	auth.POST("/login", a.LoginHandler)
	auth.POST("/refresh", a.RefreshHandler)

	// MFA endpoints are brute-forceable; rate limit per IP.
	mfa := e.Group("/api/v1/mfa", middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      10.0 / (15 * 60), // 10 requests per 15 minutes
			Burst:     10,
			ExpiresIn: 15 * time.Minute,
		}),
	}))
	mfa.POST("/setup", a.MFASetupHandler, a.requireUser)
	mfa.POST("/enable", a.MFAEnableHandler, a.requireUser)
	mfa.POST("/verify", a.MFAVerifyHandler, a.requireUser)
	mfa.POST("/send-code", a.MFASendCodeHandler, a.requireUser)
	mfa.POST("/disable", a.MFADisableHandler, a.requireUser)
	mfa.POST("/backup-codes/regenerate", a.MFARegenerateBackupCodesHandler, a.requireUser)
	mfa.GET("/status", a.MFAStatusHandler, a.requireUser)
	mfa.GET("/check-required", a.MFACheckRequiredHandler, a.requireUser)

	e.GET("/.well-known/openid-configuration", a.OpenIDConfigurationHandler)
	e.GET("/.well-known/jwks.json", a.JWKSHandler)

	e.GET("/health", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	admin := e.Group("/api/v1/admin", a.requireAdmin)
	admin.POST("/keys/rotate", a.AdminRotateKeysHandler)
	admin.GET("/keys", a.AdminListKeysHandler)
	admin.POST("/cleanup", a.AdminCleanupHandler)
	admin.GET("/token-stats", a.AdminTokenStatsHandler)
	admin.POST("/users/:id/revoke-tokens", a.AdminRevokeUserTokensHandler)
}

const userIDContextKey = "auth.user_id"

// requireUser authenticates the request with a Bearer access token and
// stores the subject in the request context.
func (a *API) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing_token"})
		}
		claims, err := a.tokens.VerifyAccessToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
		}
		c.Set(userIDContextKey, sub)
		return next(c)
	}
}

// requireAdmin gates the admin group with the configured bearer token.
// An empty configured token disables the endpoints entirely.
func (a *API) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if a.adminToken == "" {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		if bearerToken(c) != a.adminToken {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
		}
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// writeError maps service errors onto HTTP status codes and OAuth2 wire
// errors.
func writeError(c echo.Context, err error) error {
	var oauthErr *serrors.OAuth2Error
	if errors.As(err, &oauthErr) {
		status := http.StatusBadRequest
		if oauthErr.Code == serrors.InvalidClient {
			status = http.StatusUnauthorized
		}
		return c.JSON(status, oauthErr)
	}
	switch {
	case errors.Is(err, serrors.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	// Locked and disabled accounts answer 401 like any other failed login,
	// so the response does not leak which accounts exist and are locked.
	case errors.Is(err, serrors.ErrAccountLocked):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account_locked"})
	case errors.Is(err, serrors.ErrAccountDisabled):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account_disabled"})
	case errors.Is(err, serrors.ErrMfaInvalid), errors.Is(err, serrors.ErrMfaExpired),
		errors.Is(err, serrors.ErrMfaAttempts), errors.Is(err, serrors.ErrMfaNotSetup):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "mfa_failed", "error_description": err.Error()})
	case errors.Is(err, serrors.ErrTokenExpired), errors.Is(err, serrors.ErrTokenInvalid),
		errors.Is(err, serrors.ErrTokenRevoked):
		return c.JSON(http.StatusUnauthorized, serrors.NewInvalidGrant(err.Error()))
	case errors.Is(err, serrors.ErrUserNotFound), errors.Is(err, serrors.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	default:
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("internal error"))
	}
}
