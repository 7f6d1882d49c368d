package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/services"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	MfaCode  string `json:"mfa_code" form:"mfa_code"`
	ClientID string `json:"client_id" form:"client_id"`
}

// LoginHandler authenticates with email and password, gating on MFA when
// the account has it enabled. POST /api/v1/auth/login
func (a *API) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed login request"))
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("email and password are required"))
	}

	result, err := a.auth.Login(c.Request().Context(), services.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		MfaCode:   req.MfaCode,
		ClientID:  req.ClientID,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeError(c, err)
	}
	if result.MfaRequired {
		return c.JSON(http.StatusUnauthorized, result)
	}
	return c.JSON(http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// RefreshHandler rotates a refresh token. POST /api/v1/auth/refresh
func (a *API) RefreshHandler(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed refresh request"))
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("refresh_token is required"))
	}
	tokens, err := a.auth.RefreshToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}
