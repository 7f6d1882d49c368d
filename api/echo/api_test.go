package echo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/skygenesisenterprise/aether-identity/errors"
)

func recordError(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, writeError(c, err))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestWriteError(t *testing.T) {
	t.Run("login failures all answer 401", func(t *testing.T) {
		for _, tc := range []struct {
			err  error
			code string
		}{
			{serrors.ErrInvalidCredentials, "invalid_credentials"},
			{serrors.ErrAccountLocked, "account_locked"},
			{serrors.ErrAccountDisabled, "account_disabled"},
		} {
			status, body := recordError(t, tc.err)
			assert.Equal(t, http.StatusUnauthorized, status, tc.code)
			assert.Equal(t, tc.code, body["error"])
		}
	})

	t.Run("oauth errors render the RFC body", func(t *testing.T) {
		status, body := recordError(t, serrors.NewInvalidGrant("authorization code already used"))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, serrors.InvalidGrant, body["error"])
		assert.Equal(t, "authorization code already used", body["error_description"])
	})

	t.Run("invalid_client answers 401", func(t *testing.T) {
		status, body := recordError(t, serrors.NewInvalidClient("unknown client"))
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, serrors.InvalidClient, body["error"])
	})

	t.Run("token errors map to invalid_grant", func(t *testing.T) {
		status, body := recordError(t, serrors.ErrTokenRevoked)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, serrors.InvalidGrant, body["error"])
	})

	t.Run("unknown errors stay opaque", func(t *testing.T) {
		status, body := recordError(t, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, serrors.ServerError, body["error"])
	})
}
