package auth

import "time"

// TokenKind namespaces stored token records.
type TokenKind string

// Stored token kinds.
const (
	KindAccessToken  TokenKind = "accesstoken"
	KindRefreshToken TokenKind = "refreshtoken"
	KindAuthCode     TokenKind = "authcode"
)

// Grant type names from the token protocol.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Token is one stored token or authorization-code record.
// TokenHash is the SHA-256 of the raw value; the raw value exists only in
// transit.
type Token struct {
	Kind        TokenKind
	TokenHash   string
	ExpiresAt   time.Time
	ClientID    string
	UserID      string
	RedirectURI string // authorization codes only
	CreatedAt   time.Time
}

// Expired reports whether the record's expiry has passed.
func (t *Token) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// TokenPair is the token endpoint's response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
