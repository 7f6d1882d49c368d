package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
)

type mfaSetupRequest struct {
	Method string `json:"method" form:"method"`
}

// MFASetupHandler begins MFA enrollment for the authenticated user. The
// returned secret stays pending until a code proves possession.
// POST /api/v1/mfa/setup
func (a *API) MFASetupHandler(c echo.Context) error {
	var req mfaSetupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed setup request"))
	}
	method := domain.MfaMethod(req.Method)
	if method == "" {
		method = domain.MfaMethodTOTP
	}

	setup, err := a.mfa.Setup(c.Request().Context(), userID(c), method)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, setup)
}

type mfaCodeRequest struct {
	Code   string `json:"code" form:"code"`
	Method string `json:"method" form:"method"`
}

// MFAEnableHandler finishes enrollment: a valid code flips MFA on.
// POST /api/v1/mfa/enable
func (a *API) MFAEnableHandler(c echo.Context) error {
	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed enable request"))
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("code is required"))
	}
	if err := a.mfa.ConfirmSetup(c.Request().Context(), userID(c), req.Code); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"enabled": true})
}

// MFAVerifyHandler checks a second-factor code against the pending
// challenge. POST /api/v1/mfa/verify
func (a *API) MFAVerifyHandler(c echo.Context) error {
	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed verify request"))
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("code is required"))
	}
	method := domain.MfaMethod(req.Method)

	result, err := a.mfa.Verify(c.Request().Context(), userID(c), req.Code, method)
	if err != nil {
		return writeError(c, err)
	}
	if !result.Verified {
		return c.JSON(http.StatusUnauthorized, result)
	}
	return c.JSON(http.StatusOK, result)
}

// MFASendCodeHandler delivers a fresh challenge code over SMS or email.
// POST /api/v1/mfa/send-code
func (a *API) MFASendCodeHandler(c echo.Context) error {
	var req mfaSetupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed send-code request"))
	}
	if err := a.mfa.SendCode(c.Request().Context(), userID(c), domain.MfaMethod(req.Method)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sent": true})
}

type mfaDisableRequest struct {
	Password string `json:"password" form:"password"`
}

// MFADisableHandler turns MFA off after re-authenticating with the
// account password. POST /api/v1/mfa/disable
func (a *API) MFADisableHandler(c echo.Context) error {
	var req mfaDisableRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed disable request"))
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("password is required"))
	}
	if err := a.mfa.Disable(c.Request().Context(), userID(c), req.Password); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"enabled": false})
}

// MFARegenerateBackupCodesHandler replaces the remaining backup codes
// with a fresh set. POST /api/v1/mfa/backup-codes/regenerate
func (a *API) MFARegenerateBackupCodesHandler(c echo.Context) error {
	codes, err := a.totp.RegenerateBackupCodes(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"backup_codes": codes})
}

// MFAStatusHandler reports the user's MFA configuration.
// GET /api/v1/mfa/status
func (a *API) MFAStatusHandler(c echo.Context) error {
	status, err := a.mfa.Status(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// MFACheckRequiredHandler reports whether a login for this user must
// present a second factor. GET /api/v1/mfa/check-required
func (a *API) MFACheckRequiredHandler(c echo.Context) error {
	required, err := a.mfa.Required(c.Request().Context(), userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"required": required})
}
