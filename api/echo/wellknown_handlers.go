package echo

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// OpenIDConfiguration is the discovery document served at
// /.well-known/openid-configuration.
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	EndSessionEndpoint               string   `json:"end_session_endpoint"`
	ScopesSupported                  []string `json:"scopes_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}

// OpenIDConfigurationHandler serves OIDC discovery. Endpoints are built
// from the request host; the issuer is the configured token issuer.
func (a *API) OpenIDConfigurationHandler(c echo.Context) error {
	base := fmt.Sprintf("%s://%s", c.Scheme(), c.Request().Host)

	return c.JSON(http.StatusOK, OpenIDConfiguration{
		Issuer:                           a.issuer,
		AuthorizationEndpoint:            base + "/api/v1/auth/sso/authorize",
		TokenEndpoint:                    base + "/api/v1/auth/sso/token",
		JwksURI:                          base + "/.well-known/jwks.json",
		EndSessionEndpoint:               base + "/api/v1/auth/sso/logout",
		ScopesSupported:                  []string{"openid", "profile", "email", "read", "write", "delete", "admin", "organizations"},
		ResponseTypesSupported:           []string{"code"},
		GrantTypesSupported:              []string{"authorization_code", "refresh_token"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		CodeChallengeMethodsSupported:    []string{"S256", "plain"},
		ClaimsSupported:                  []string{"sub", "email", "name", "role", "scope", "permissions", "plan"},
	})
}

// JWKSHandler serves the published verification keys: the active key plus
// any key young enough that tokens signed with it may still be live.
func (a *API) JWKSHandler(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	return c.JSON(http.StatusOK, a.keys.JWKS())
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
