// Package edgedevice mirrors IoT Edge devices from the device registry.
package edgedevice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	"github.com/nerrad567/iot-portal/internal/twin"
)

var (
	// ErrNotFound is returned when an edge device ID does not exist.
	ErrNotFound = fmt.Errorf("edge device: %w", database.ErrNotFound)

	// ErrExists is returned when inserting an edge device whose ID is taken.
	ErrExists = errors.New("edge device: already exists")
)

// EdgeDevice is the local mirror of an IoT Edge twin.
type EdgeDevice struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	DeviceModelID   string    `json:"device_model_id,omitempty"`
	Version         int64     `json:"version"`
	ConnectionState string    `json:"connection_state,omitempty"`
	Scope           string    `json:"scope,omitempty"`
	IsEnabled       bool      `json:"is_enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// GetID implements the sync entity contract.
func (e *EdgeDevice) GetID() string { return e.ID }

// GetVersion implements the sync entity contract.
func (e *EdgeDevice) GetVersion() int64 { return e.Version }

// FromTwin maps a registry twin to an edge device.
func FromTwin(tw *twin.Twin) *EdgeDevice {
	e := &EdgeDevice{
		ID:              tw.DeviceID,
		Name:            tw.Tag(twin.TagDeviceName),
		DeviceModelID:   tw.Tag(twin.TagModelID),
		Version:         tw.Version,
		ConnectionState: tw.ConnectionState,
		Scope:           tw.DeviceScope,
		IsEnabled:       tw.IsEnabled(),
	}
	if e.Name == "" {
		e.Name = tw.DeviceID
	}
	return e
}

// Repository defines edge device persistence operations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*EdgeDevice, error)
	List(ctx context.Context) ([]EdgeDevice, error)
	Insert(ctx context.Context, e *EdgeDevice) error
	Update(ctx context.Context, e *EdgeDevice) error
}

// SQLiteRepository implements Repository.
type SQLiteRepository struct {
	db database.Querier
}

// NewSQLiteRepository creates an edge device repository.
func NewSQLiteRepository(db database.Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = "id, name, device_model_id, version, connection_state, scope, is_enabled, created_at, updated_at"

// GetByID returns ErrNotFound if the edge device does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*EdgeDevice, error) {
	e, err := scan(r.db.QueryRowContext(ctx, "SELECT "+columns+" FROM edge_devices WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying edge device: %w", err)
	}
	return e, nil
}

// List returns all edge devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]EdgeDevice, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+columns+" FROM edge_devices ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("querying edge devices: %w", err)
	}
	defer rows.Close()

	var out []EdgeDevice
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning edge device: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edge devices: %w", err)
	}
	return out, nil
}

// Insert adds a new edge device. Returns ErrExists if the ID is taken.
func (r *SQLiteRepository) Insert(ctx context.Context, e *EdgeDevice) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO edge_devices ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Name,
		database.NullString(e.DeviceModelID),
		e.Version,
		database.NullString(e.ConnectionState),
		database.NullString(e.Scope),
		database.BoolToInt(e.IsEnabled),
		database.FormatTime(e.CreatedAt),
		database.FormatTime(e.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting edge device: %w", err)
	}
	return nil
}

// Update overwrites the synced fields. Returns ErrNotFound if absent.
func (r *SQLiteRepository) Update(ctx context.Context, e *EdgeDevice) error {
	e.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE edge_devices SET
			name = ?, device_model_id = ?, version = ?, connection_state = ?, scope = ?,
			is_enabled = ?, updated_at = ?
		WHERE id = ?`,
		e.Name,
		database.NullString(e.DeviceModelID),
		e.Version,
		database.NullString(e.ConnectionState),
		database.NullString(e.Scope),
		database.BoolToInt(e.IsEnabled),
		database.FormatTime(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating edge device: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scan(s database.RowScanner) (*EdgeDevice, error) {
	var (
		e                     EdgeDevice
		modelID, state, scope sql.NullString
		enabled               int
		createdAt, updatedAt  string
	)
	if err := s.Scan(&e.ID, &e.Name, &modelID, &e.Version, &state, &scope,
		&enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.DeviceModelID = modelID.String
	e.ConnectionState = state.String
	e.Scope = scope.String
	e.IsEnabled = enabled != 0
	e.CreatedAt = database.ParseTime(createdAt)
	e.UpdatedAt = database.ParseTime(updatedAt)
	return &e, nil
}
