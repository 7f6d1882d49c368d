package errors

import "fmt"

// OAuth2Error is the RFC 6749 error body. Handlers serialize it straight
// into the response, so the JSON field names follow the wire format.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes from RFC 6749 §5.2 served by the authorize and token
// endpoints.
const (
	InvalidRequest       = "invalid_request"
	InvalidClient        = "invalid_client"
	InvalidGrant         = "invalid_grant"
	UnsupportedGrantType = "unsupported_grant_type"
	ServerError          = "server_error"
)

// NewInvalidRequest covers malformed or incomplete requests: bad redirect
// URIs, missing required parameters.
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidRequest, Description: description}
}

// NewInvalidClient covers unknown, disabled or misauthenticated clients.
// Handlers serve it with HTTP 401 per the RFC.
func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidClient, Description: description}
}

// NewInvalidGrant covers a bad authorization code or refresh token:
// expired, already used, issued to another client, or bound to a user who
// can no longer sign in.
func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidGrant, Description: description}
}

// NewPKCERequired rejects an authorize request that carries no code
// challenge for a client registered with mandatory PKCE.
func NewPKCERequired() *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: "code_challenge is required for this client",
	}
}

// NewInvalidPKCE fails a code exchange whose verifier is missing or does
// not match the stored challenge. The verifier is part of the grant, so a
// mismatch invalidates the grant itself rather than the request.
func NewInvalidPKCE(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: "PKCE verification failed: " + description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "the authorization grant type is not supported",
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{Code: ServerError, Description: description}
}
