package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	serrors "github.com/skygenesisenterprise/aether-identity/errors"
)

// AdminRotateKeysHandler generates and activates a fresh signing key.
// POST /api/v1/admin/keys/rotate
func (a *API) AdminRotateKeysHandler(c echo.Context) error {
	keyID, err := a.keys.Rotate()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("key rotation failed"))
	}
	return c.JSON(http.StatusOK, echo.Map{"active_key_id": keyID})
}

// AdminListKeysHandler lists signing key metadata, private material
// excluded. GET /api/v1/admin/keys
func (a *API) AdminListKeysHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"keys": a.keys.Keys()})
}

// AdminCleanupHandler triggers an immediate cleanup sweep and returns the
// per-task deletion counts. POST /api/v1/admin/cleanup
func (a *API) AdminCleanupHandler(c echo.Context) error {
	stats := a.cleanup.Sweep(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}

// AdminTokenStatsHandler reports live token counts.
// GET /api/v1/admin/token-stats
func (a *API) AdminTokenStatsHandler(c echo.Context) error {
	stats, err := a.cleanup.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to collect token stats"))
	}
	return c.JSON(http.StatusOK, stats)
}

// AdminRevokeUserTokensHandler revokes every refresh token and SSO
// session a user holds. POST /api/v1/admin/users/:id/revoke-tokens
func (a *API) AdminRevokeUserTokensHandler(c echo.Context) error {
	uid := c.Param("id")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("user id is required"))
	}
	tokens, err := a.cleanup.RevokeAllUserRefreshTokens(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to revoke refresh tokens"))
	}
	sessions, err := a.cleanup.RevokeAllUserSessions(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("failed to revoke sessions"))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"revoked_refresh_tokens": tokens,
		"revoked_sessions":       sessions,
	})
}
