package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenRepository defines persistence for token and code records.
type TokenRepository interface {
	// Create inserts a new token record.
	Create(ctx context.Context, token *Token) error

	// GetByHash retrieves a token by kind and SHA-256 hash.
	// Returns ErrTokenInvalid if no such record exists.
	GetByHash(ctx context.Context, kind TokenKind, tokenHash string) (*Token, error)

	// Delete removes a token record. Deleting an absent record is not an
	// error; revocation is idempotent.
	Delete(ctx context.Context, kind TokenKind, tokenHash string) error

	// DeleteExpired removes all records past their expiry, returning the
	// number deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create inserts a new token record.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *Token) error {
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (kind, token_hash, expires_at, client_id, user_id, redirect_uri, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(token.Kind), token.TokenHash,
		token.ExpiresAt.UTC().Format(time.RFC3339),
		token.ClientID, token.UserID,
		nullString(token.RedirectURI),
		token.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating %s record: %w", token.Kind, err)
	}

	return nil
}

// GetByHash retrieves a token by kind and SHA-256 hash.
func (r *SQLiteTokenRepository) GetByHash(ctx context.Context, kind TokenKind, tokenHash string) (*Token, error) {
	var t Token
	var tokenKind string
	var redirectURI sql.NullString
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT kind, token_hash, expires_at, client_id, user_id, redirect_uri, created_at
		 FROM oauth_tokens WHERE kind = ? AND token_hash = ?`,
		string(kind), tokenHash,
	).Scan(&tokenKind, &t.TokenHash, &expiresAt, &t.ClientID, &t.UserID, &redirectURI, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting %s record: %w", kind, err)
	}

	t.Kind = TokenKind(tokenKind)
	if redirectURI.Valid {
		t.RedirectURI = redirectURI.String
	}
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}

// Delete removes a token record.
func (r *SQLiteTokenRepository) Delete(ctx context.Context, kind TokenKind, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM oauth_tokens WHERE kind = ? AND token_hash = ?",
		string(kind), tokenHash)
	if err != nil {
		return fmt.Errorf("deleting %s record: %w", kind, err)
	}
	return nil
}

// DeleteExpired removes records past their expiry, freeing storage.
// Returns the number of deleted rows.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM oauth_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired records: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// nullString returns a sql.NullString for optional strings.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
