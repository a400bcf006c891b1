package state

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

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

func TestGet_UnknownAlias(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))

	state, err := store.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(state) != 0 {
		t.Errorf("state = %v, want empty map", state)
	}
}

func TestMerge_CreatesRow(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Merge(ctx, "tv-living", map[string]any{"on": true}); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	state, err := store.Get(ctx, "tv-living")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if state["on"] != true {
		t.Errorf("state = %v, want on:true", state)
	}
}

// A brightness write must not erase the on/off flag from an earlier write.
func TestMerge_PreservesExistingKeys(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Merge(ctx, "light-1", map[string]any{"on": true}); err != nil {
		t.Fatalf("first Merge() error: %v", err)
	}
	if err := store.Merge(ctx, "light-1", map[string]any{"brightness": 80}); err != nil {
		t.Fatalf("second Merge() error: %v", err)
	}

	state, err := store.Get(ctx, "light-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if state["on"] != true {
		t.Errorf("on = %v, want true (merge must not replace)", state["on"])
	}
	if got, ok := state["brightness"].(float64); !ok || got != 80 {
		t.Errorf("brightness = %v, want 80", state["brightness"])
	}
}

func TestMerge_OverwritesChangedKeys(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Merge(ctx, "light-1", map[string]any{"brightness": 30}); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if err := store.Merge(ctx, "light-1", map[string]any{"brightness": 80}); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	state, err := store.Get(ctx, "light-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got, ok := state["brightness"].(float64); !ok || got != 80 {
		t.Errorf("brightness = %v, want 80", state["brightness"])
	}
}

func TestMerge_EmptyParamsNoOp(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Merge(ctx, "light-1", nil); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	state, err := store.Get(ctx, "light-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(state) != 0 {
		t.Errorf("state = %v, want empty (no row created)", state)
	}
}

func TestStates_IndependentPerAlias(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Merge(ctx, "a", map[string]any{"on": true}); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if err := store.Merge(ctx, "b", map[string]any{"on": false}); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	stateA, _ := store.Get(ctx, "a")
	stateB, _ := store.Get(ctx, "b")
	if stateA["on"] != true || stateB["on"] != false {
		t.Errorf("states leaked across aliases: a=%v b=%v", stateA, stateB)
	}
}
