package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository defines read access to the registry collections.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetDevice retrieves a canonical device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetDevice(ctx context.Context, id string) (*Device, error)

	// GetRemote retrieves a remote by ID.
	// Returns ErrRemoteNotFound if the remote does not exist.
	GetRemote(ctx context.Context, id string) (*Remote, error)

	// GetAlias retrieves an alias by ID from the given owner-kind collection.
	// Returns ErrAliasNotFound if no alias with that ID exists in it.
	GetAlias(ctx context.Context, kind OwnerKind, id string) (*Alias, error)

	// ListAliases retrieves all aliases owned by one group or user.
	ListAliases(ctx context.Context, kind OwnerKind, ownerID string) ([]Alias, error)

	// ListGroupsForUser retrieves the IDs of all groups the user belongs to.
	ListGroupsForUser(ctx context.Context, userID string) ([]string, error)

	// GetCode retrieves the hex-encoded IR waveform a remote stores for a
	// (command, value key) pair. Returns ErrCodeNotFound if absent.
	GetCode(ctx context.Context, remoteID, command, valueKey string) (string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetDevice retrieves a canonical device by ID.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, type, manufacturer, model, name, will_report_state, traits, attributes
		FROM devices
		WHERE id = ?`

	var d Device
	var manufacturer, model, name, attributesJSON sql.NullString
	var willReportState int
	var traitsJSON string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.Type,
		&manufacturer,
		&model,
		&name,
		&willReportState,
		&traitsJSON,
		&attributesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}

	d.Manufacturer = manufacturer.String
	d.Model = model.String
	d.Name = name.String
	d.WillReportState = willReportState != 0

	if err := json.Unmarshal([]byte(traitsJSON), &d.Traits); err != nil {
		return nil, fmt.Errorf("unmarshalling traits: %w", err)
	}
	if attributesJSON.Valid && attributesJSON.String != "" {
		if err := json.Unmarshal([]byte(attributesJSON.String), &d.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshalling attributes: %w", err)
		}
	}

	return &d, nil
}

// GetRemote retrieves a remote by ID.
func (r *SQLiteRepository) GetRemote(ctx context.Context, id string) (*Remote, error) {
	query := `SELECT id, type, mac_addr FROM remotes WHERE id = ?`

	var rem Remote
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rem.ID, &rem.Type, &rem.MACAddr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRemoteNotFound
		}
		return nil, fmt.Errorf("querying remote by id: %w", err)
	}

	return &rem, nil
}

// GetAlias retrieves an alias by ID from the given owner-kind collection.
func (r *SQLiteRepository) GetAlias(ctx context.Context, kind OwnerKind, id string) (*Alias, error) {
	table, ownerColumn, err := aliasTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, %s, device_id, device_ref, remote_id, remote_ref, name
		FROM %s
		WHERE id = ?`, ownerColumn, table)

	alias, err := scanAlias(r.db.QueryRowContext(ctx, query, id), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAliasNotFound
		}
		return nil, fmt.Errorf("querying %s alias by id: %w", kind, err)
	}
	return alias, nil
}

// ListAliases retrieves all aliases owned by one group or user.
func (r *SQLiteRepository) ListAliases(ctx context.Context, kind OwnerKind, ownerID string) ([]Alias, error) {
	table, ownerColumn, err := aliasTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, %s, device_id, device_ref, remote_id, remote_ref, name
		FROM %s
		WHERE %s = ?
		ORDER BY id`, ownerColumn, table, ownerColumn)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying %s aliases: %w", kind, err)
	}
	defer rows.Close()

	var aliases []Alias
	for rows.Next() {
		alias, err := scanAlias(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}
		aliases = append(aliases, *alias)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aliases: %w", err)
	}

	return aliases, nil
}

// ListGroupsForUser retrieves the IDs of all groups the user belongs to.
func (r *SQLiteRepository) ListGroupsForUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying group memberships: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning group id: %w", err)
		}
		groups = append(groups, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group memberships: %w", err)
	}

	return groups, nil
}

// GetCode retrieves the hex waveform for a (remote, command, value key) triple.
func (r *SQLiteRepository) GetCode(ctx context.Context, remoteID, command, valueKey string) (string, error) {
	query := `
		SELECT code FROM remote_codes
		WHERE remote_id = ? AND command = ? AND value_key = ?`

	var code string
	err := r.db.QueryRowContext(ctx, query, remoteID, command, valueKey).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("querying remote code: %w", err)
	}

	return code, nil
}

// aliasTable maps an owner kind to its table and owner column.
func aliasTable(kind OwnerKind) (table, ownerColumn string, err error) {
	switch kind {
	case OwnerGroup:
		return "group_devices", "group_id", nil
	case OwnerUser:
		return "user_devices", "user_id", nil
	default:
		return "", "", fmt.Errorf("registry: unknown owner kind %q", kind)
	}
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAlias scans one alias row, converting nullable id/ref columns into
// the tagged Ref form.
func scanAlias(scanner rowScanner, kind OwnerKind) (*Alias, error) {
	var a Alias
	var deviceID, deviceRef, remoteID, remoteRef sql.NullString

	err := scanner.Scan(
		&a.ID,
		&a.OwnerID,
		&deviceID,
		&deviceRef,
		&remoteID,
		&remoteRef,
		&a.Name,
	)
	if err != nil {
		return nil, err
	}

	a.Owner = kind
	a.Device = Ref{ID: deviceID.String, Path: deviceRef.String}
	a.Remote = Ref{ID: remoteID.String, Path: remoteRef.String}

	return &a, nil
}
