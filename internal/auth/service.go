package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hiroag/irhub-core/internal/infrastructure/config"
)

// Service implements the authorization-code and refresh-token grants
// against the single configured client.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Service struct {
	tokens TokenRepository
	cfg    config.OAuthConfig
}

// NewService creates the token service.
func NewService(tokens TokenRepository, cfg config.OAuthConfig) *Service {
	return &Service{tokens: tokens, cfg: cfg}
}

// Authorize verifies the user's identity token and issues an authorization
// code bound to the redirect URI.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - clientID: Must match the configured client
//   - redirectURI: Must be in the client's allow list
//   - identityToken: HMAC-signed JWT proving the user's identity
//
// Returns:
//   - string: The raw authorization code for the redirect
//   - error: ErrInvalidClient, ErrInvalidRedirect, or ErrInvalidIdentity
func (s *Service) Authorize(ctx context.Context, clientID, redirectURI, identityToken string) (string, error) {
	if clientID != s.cfg.Client.ID {
		return "", fmt.Errorf("%w: unknown client %q", ErrInvalidClient, clientID)
	}
	if !s.redirectAllowed(redirectURI) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRedirect, redirectURI)
	}
	if !s.grantAllowed(GrantAuthorizationCode) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedGrant, GrantAuthorizationCode)
	}

	userID, err := s.verifyIdentity(identityToken)
	if err != nil {
		return "", err
	}

	code := uuid.NewString()
	record := &Token{
		Kind:        KindAuthCode,
		TokenHash:   HashToken(code),
		ExpiresAt:   time.Now().Add(time.Duration(s.cfg.AuthCodeTTL) * time.Second),
		ClientID:    clientID,
		UserID:      userID,
		RedirectURI: redirectURI,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("storing authorization code: %w", err)
	}

	return code, nil
}

// Exchange trades an authorization code for a token pair. The code is
// consumed whether or not the exchange succeeds past its lookup.
func (s *Service) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*TokenPair, error) {
	if err := s.validateClient(clientID, clientSecret); err != nil {
		return nil, err
	}
	if !s.grantAllowed(GrantAuthorizationCode) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGrant, GrantAuthorizationCode)
	}

	record, err := s.tokens.GetByHash(ctx, KindAuthCode, HashToken(code))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown authorization code", ErrInvalidGrant)
	}

	// Single use: delete before validating so a replayed code always fails.
	if err := s.tokens.Delete(ctx, KindAuthCode, record.TokenHash); err != nil {
		return nil, fmt.Errorf("consuming authorization code: %w", err)
	}

	if record.Expired() {
		return nil, fmt.Errorf("%w: authorization code expired", ErrInvalidGrant)
	}
	if record.RedirectURI != redirectURI {
		return nil, fmt.Errorf("%w: redirect uri mismatch", ErrInvalidGrant)
	}

	return s.issuePair(ctx, record.UserID)
}

// Refresh issues a new access token from a refresh token. The refresh
// token itself is not rotated; it lives until revocation or expiry.
func (s *Service) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenPair, error) {
	if err := s.validateClient(clientID, clientSecret); err != nil {
		return nil, err
	}
	if !s.grantAllowed(GrantRefreshToken) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGrant, GrantRefreshToken)
	}

	record, err := s.tokens.GetByHash(ctx, KindRefreshToken, HashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown refresh token", ErrInvalidGrant)
	}
	if record.Expired() {
		return nil, fmt.Errorf("%w: refresh token expired", ErrInvalidGrant)
	}

	access := uuid.NewString()
	if err := s.tokens.Create(ctx, &Token{
		Kind:      KindAccessToken,
		TokenHash: HashToken(access),
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.AccessTokenTTL) * time.Second),
		ClientID:  s.cfg.Client.ID,
		UserID:    record.UserID,
	}); err != nil {
		return nil, fmt.Errorf("storing access token: %w", err)
	}

	return &TokenPair{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.AccessTokenTTL,
	}, nil
}

// Authenticate introspects a bearer token from a protected request.
//
// Returns:
//   - string: The user ID the token was issued to
//   - error: ErrTokenInvalid when unknown or expired
func (s *Service) Authenticate(ctx context.Context, accessToken string) (string, error) {
	record, err := s.tokens.GetByHash(ctx, KindAccessToken, HashToken(accessToken))
	if err != nil {
		return "", err
	}
	if record.Expired() {
		return "", fmt.Errorf("%w: access token expired", ErrTokenInvalid)
	}
	return record.UserID, nil
}

// Revoke deletes a raw token regardless of kind. Idempotent.
func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	hash := HashToken(rawToken)
	for _, kind := range []TokenKind{KindAccessToken, KindRefreshToken} {
		if err := s.tokens.Delete(ctx, kind, hash); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpired removes expired records. Intended for a periodic
// housekeeping goroutine.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

// issuePair creates and stores a fresh access plus refresh token.
func (s *Service) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access := uuid.NewString()
	refresh := uuid.NewString()
	now := time.Now()

	if err := s.tokens.Create(ctx, &Token{
		Kind:      KindAccessToken,
		TokenHash: HashToken(access),
		ExpiresAt: now.Add(time.Duration(s.cfg.AccessTokenTTL) * time.Second),
		ClientID:  s.cfg.Client.ID,
		UserID:    userID,
	}); err != nil {
		return nil, fmt.Errorf("storing access token: %w", err)
	}

	if err := s.tokens.Create(ctx, &Token{
		Kind:      KindRefreshToken,
		TokenHash: HashToken(refresh),
		ExpiresAt: now.Add(time.Duration(s.cfg.RefreshTokenTTL) * time.Second),
		ClientID:  s.cfg.Client.ID,
		UserID:    userID,
	}); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.AccessTokenTTL,
		RefreshToken: refresh,
	}, nil
}

// validateClient checks the client credentials in constant time.
func (s *Service) validateClient(clientID, clientSecret string) error {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(s.cfg.Client.ID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(s.cfg.Client.Secret)) == 1
	if !idOK || !secretOK {
		return fmt.Errorf("%w: credential mismatch", ErrInvalidClient)
	}
	return nil
}

// redirectAllowed checks the redirect URI against the client allow list.
func (s *Service) redirectAllowed(uri string) bool {
	for _, allowed := range s.cfg.Client.RedirectURIs {
		if uri == allowed {
			return true
		}
	}
	return false
}

// grantAllowed checks a grant type against the client allow list.
func (s *Service) grantAllowed(grant string) bool {
	for _, allowed := range s.cfg.Client.Grants {
		if grant == allowed {
			return true
		}
	}
	return false
}

// verifyIdentity validates the HMAC-signed identity JWT and extracts the
// user ID from its subject claim.
func (s *Service) verifyIdentity(identityToken string) (string, error) {
	token, err := jwt.Parse(identityToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.IdentitySecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidIdentity)
	}

	return subject, nil
}
