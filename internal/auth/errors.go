package auth

import "errors"

// Sentinel errors for the token protocol.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidClient is returned when client credentials do not match
	// the configured client. Surfaced as invalid_client with 401.
	ErrInvalidClient = errors.New("auth: invalid client")

	// ErrInvalidGrant is returned when an authorization code or refresh
	// token is unknown, expired, or bound to a different redirect URI.
	// Surfaced as invalid_grant with 400.
	ErrInvalidGrant = errors.New("auth: invalid grant")

	// ErrUnsupportedGrant is returned for grant types the client is not
	// allowed to use.
	ErrUnsupportedGrant = errors.New("auth: unsupported grant type")

	// ErrInvalidRedirect is returned when a redirect URI is not in the
	// client's allow list.
	ErrInvalidRedirect = errors.New("auth: redirect uri not allowed")

	// ErrInvalidIdentity is returned when the identity token presented at
	// the authorization endpoint fails verification.
	ErrInvalidIdentity = errors.New("auth: invalid identity token")

	// ErrTokenInvalid is returned when an access token is unknown or
	// expired. Surfaced as 401 on protected endpoints.
	ErrTokenInvalid = errors.New("auth: token invalid or expired")
)
