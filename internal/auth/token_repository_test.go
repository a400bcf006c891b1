package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hiroag/irhub-core/internal/infrastructure/database"
	_ "github.com/hiroag/irhub-core/migrations"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db.DB
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("secret-token")
	h2 := HashToken("secret-token")
	h3 := HashToken("other-token")

	if h1 != h2 {
		t.Error("hashing is not deterministic")
	}
	if h1 == h3 {
		t.Error("different tokens produced the same hash")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex characters", len(h1))
	}
	if h1 == "secret-token" {
		t.Error("raw token leaked through hashing")
	}
}

func TestTokenRepository_CreateAndGet(t *testing.T) {
	repo := NewTokenRepository(openTestDB(t))
	ctx := context.Background()

	token := &Token{
		Kind:        KindAuthCode,
		TokenHash:   HashToken("code-1"),
		ExpiresAt:   time.Now().Add(10 * time.Minute),
		ClientID:    "assistant",
		UserID:      "alice",
		RedirectURI: "https://oauth.example.com/callback",
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.GetByHash(ctx, KindAuthCode, HashToken("code-1"))
	if err != nil {
		t.Fatalf("GetByHash() error: %v", err)
	}
	if got.UserID != "alice" || got.ClientID != "assistant" {
		t.Errorf("record = %+v, want alice/assistant", got)
	}
	if got.RedirectURI != "https://oauth.example.com/callback" {
		t.Errorf("redirect_uri = %q, want the bound URI", got.RedirectURI)
	}
	if got.Expired() {
		t.Error("fresh record reports expired")
	}
}

// The same hash under different kinds must be independent records.
func TestTokenRepository_KindNamespacing(t *testing.T) {
	repo := NewTokenRepository(openTestDB(t))
	ctx := context.Background()

	hash := HashToken("shared-value")
	for _, kind := range []TokenKind{KindAccessToken, KindRefreshToken} {
		if err := repo.Create(ctx, &Token{
			Kind:      kind,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(time.Hour),
			ClientID:  "assistant",
			UserID:    "alice",
		}); err != nil {
			t.Fatalf("Create(%s) error: %v", kind, err)
		}
	}

	if err := repo.Delete(ctx, KindAccessToken, hash); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := repo.GetByHash(ctx, KindAccessToken, hash); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("deleted kind lookup error = %v, want ErrTokenInvalid", err)
	}
	if _, err := repo.GetByHash(ctx, KindRefreshToken, hash); err != nil {
		t.Errorf("sibling kind was deleted too: %v", err)
	}
}

func TestTokenRepository_GetUnknown(t *testing.T) {
	repo := NewTokenRepository(openTestDB(t))

	_, err := repo.GetByHash(context.Background(), KindAccessToken, HashToken("nope"))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GetByHash() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenRepository_DeleteIdempotent(t *testing.T) {
	repo := NewTokenRepository(openTestDB(t))

	if err := repo.Delete(context.Background(), KindAccessToken, HashToken("absent")); err != nil {
		t.Errorf("Delete() of absent record error: %v", err)
	}
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	repo := NewTokenRepository(openTestDB(t))
	ctx := context.Background()

	records := []*Token{
		{Kind: KindAccessToken, TokenHash: HashToken("live"), ExpiresAt: time.Now().Add(time.Hour), ClientID: "c", UserID: "u"},
		{Kind: KindAccessToken, TokenHash: HashToken("dead-1"), ExpiresAt: time.Now().Add(-time.Hour), ClientID: "c", UserID: "u"},
		{Kind: KindAuthCode, TokenHash: HashToken("dead-2"), ExpiresAt: time.Now().Add(-time.Minute), ClientID: "c", UserID: "u"},
	}
	for _, rec := range records {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if _, err := repo.GetByHash(ctx, KindAccessToken, HashToken("live")); err != nil {
		t.Errorf("live record was deleted: %v", err)
	}
}
