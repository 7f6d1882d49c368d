package errors

import "errors"

// Authentication and token error taxonomy. Handlers map these onto HTTP
// status codes and OAuth2 wire errors; services return them untranslated.
var (
	// ErrInvalidCredentials covers both unknown user and wrong password so
	// responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	ErrMfaRequired = errors.New("mfa verification required")
	ErrMfaInvalid  = errors.New("invalid mfa code")
	ErrMfaExpired  = errors.New("mfa code has expired")
	ErrMfaAttempts = errors.New("maximum mfa attempts exceeded")
	ErrMfaNotSetup = errors.New("mfa is not configured for this user")

	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenRevoked = errors.New("token has been revoked")

	ErrKeyNotFound     = errors.New("signing key not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrClientNotFound  = errors.New("client not found")
)
