package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store defines persistence for per-alias device state.
type Store interface {
	// Get retrieves the last-known state for an alias.
	// An alias with no recorded state returns an empty map, not an error.
	Get(ctx context.Context, aliasID string) (map[string]any, error)

	// Merge applies the given parameters on top of the existing state,
	// preserving keys not present in params.
	Merge(ctx context.Context, aliasID string, params map[string]any) error
}

// SQLiteStore implements Store using SQLite.
//
// Merges are performed inside the database with json_patch, so concurrent
// writers (already serialized per alias by the pipeline) never lose keys
// to read-modify-write races.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed state store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves the last-known state for an alias.
func (s *SQLiteStore) Get(ctx context.Context, aliasID string) (map[string]any, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM device_states WHERE alias_id = ?`, aliasID,
	).Scan(&stateJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("querying state for alias %s: %w", aliasID, err)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("unmarshalling state for alias %s: %w", aliasID, err)
	}
	if state == nil {
		state = map[string]any{}
	}

	return state, nil
}

// Merge applies the given parameters on top of the existing state.
//
// The row is created on first write. json_patch(target, patch) applies
// patch keys to target, preserving existing keys not present in patch.
func (s *SQLiteStore) Merge(ctx context.Context, aliasID string, params map[string]any) error {
	if len(params) == 0 {
		return nil
	}

	patchJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshalling state patch: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO device_states (alias_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(alias_id) DO UPDATE SET
			state = json_patch(COALESCE(state, '{}'), excluded.state),
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, aliasID, string(patchJSON), now); err != nil {
		return fmt.Errorf("merging state for alias %s: %w", aliasID, err)
	}

	return nil
}
