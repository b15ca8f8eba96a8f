// Package concentrator mirrors LoRaWAN concentrators (gateways) from the
// device registry.
package concentrator

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
	// ErrNotFound is returned when a concentrator ID does not exist.
	ErrNotFound = fmt.Errorf("concentrator: %w", database.ErrNotFound)

	// ErrExists is returned when inserting a concentrator whose ID is taken.
	ErrExists = errors.New("concentrator: already exists")
)

// Twin property names read by FromTwin.
const (
	propClientThumbprint    = "clientThumbprint"
	propAlreadyLoggedInOnce = "AlreadyLoggedInOnce"
)

// Concentrator is the local mirror of a LoRa Concentrator twin.
type Concentrator struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	LoraRegion          string    `json:"lora_region,omitempty"`
	DeviceType          string    `json:"device_type,omitempty"`
	ClientThumbprint    string    `json:"client_thumbprint,omitempty"`
	IsConnected         bool      `json:"is_connected"`
	IsEnabled           bool      `json:"is_enabled"`
	AlreadyLoggedInOnce bool      `json:"already_logged_in_once"`
	Version             int64     `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// GetID implements the sync entity contract.
func (c *Concentrator) GetID() string { return c.ID }

// GetVersion implements the sync entity contract.
func (c *Concentrator) GetVersion() int64 { return c.Version }

// FromTwin maps a registry twin to a concentrator.
func FromTwin(tw *twin.Twin) *Concentrator {
	c := &Concentrator{
		ID:                  tw.DeviceID,
		Name:                tw.Tag(twin.TagDeviceName),
		LoraRegion:          tw.Tag(twin.TagLoraRegion),
		DeviceType:          tw.Tag(twin.TagDeviceType),
		ClientThumbprint:    tw.Desired(propClientThumbprint),
		IsConnected:         tw.IsConnected(),
		IsEnabled:           tw.IsEnabled(),
		AlreadyLoggedInOnce: tw.ReportedBool(propAlreadyLoggedInOnce),
		Version:             tw.Version,
	}
	if c.Name == "" {
		c.Name = tw.DeviceID
	}
	return c
}

// Repository defines concentrator persistence operations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Concentrator, error)
	List(ctx context.Context) ([]Concentrator, error)
	Insert(ctx context.Context, c *Concentrator) error
	Update(ctx context.Context, c *Concentrator) error
}

// SQLiteRepository implements Repository.
type SQLiteRepository struct {
	db database.Querier
}

// NewSQLiteRepository creates a concentrator repository.
func NewSQLiteRepository(db database.Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `id, name, lora_region, device_type, client_thumbprint, is_connected,
	is_enabled, already_logged_in_once, version, created_at, updated_at`

// GetByID returns ErrNotFound if the concentrator does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Concentrator, error) {
	c, err := scan(r.db.QueryRowContext(ctx, "SELECT "+columns+" FROM concentrators WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying concentrator: %w", err)
	}
	return c, nil
}

// List returns all concentrators ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Concentrator, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+columns+" FROM concentrators ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("querying concentrators: %w", err)
	}
	defer rows.Close()

	var out []Concentrator
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning concentrator: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating concentrators: %w", err)
	}
	return out, nil
}

// Insert adds a new concentrator. Returns ErrExists if the ID is taken.
func (r *SQLiteRepository) Insert(ctx context.Context, c *Concentrator) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO concentrators ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.Name,
		database.NullString(c.LoraRegion),
		database.NullString(c.DeviceType),
		database.NullString(c.ClientThumbprint),
		database.BoolToInt(c.IsConnected),
		database.BoolToInt(c.IsEnabled),
		database.BoolToInt(c.AlreadyLoggedInOnce),
		c.Version,
		database.FormatTime(c.CreatedAt),
		database.FormatTime(c.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting concentrator: %w", err)
	}
	return nil
}

// Update overwrites the synced fields. Returns ErrNotFound if absent.
func (r *SQLiteRepository) Update(ctx context.Context, c *Concentrator) error {
	c.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE concentrators SET
			name = ?, lora_region = ?, device_type = ?, client_thumbprint = ?, is_connected = ?,
			is_enabled = ?, already_logged_in_once = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		c.Name,
		database.NullString(c.LoraRegion),
		database.NullString(c.DeviceType),
		database.NullString(c.ClientThumbprint),
		database.BoolToInt(c.IsConnected),
		database.BoolToInt(c.IsEnabled),
		database.BoolToInt(c.AlreadyLoggedInOnce),
		c.Version,
		database.FormatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating concentrator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scan(s database.RowScanner) (*Concentrator, error) {
	var (
		c                              Concentrator
		region, deviceType, thumbprint sql.NullString
		connected, enabled, loggedIn   int
		createdAt, updatedAt           string
	)
	if err := s.Scan(&c.ID, &c.Name, &region, &deviceType, &thumbprint,
		&connected, &enabled, &loggedIn, &c.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.LoraRegion = region.String
	c.DeviceType = deviceType.String
	c.ClientThumbprint = thumbprint.String
	c.IsConnected = connected != 0
	c.IsEnabled = enabled != 0
	c.AlreadyLoggedInOnce = loggedIn != 0
	c.CreatedAt = database.ParseTime(createdAt)
	c.UpdatedAt = database.ParseTime(updatedAt)
	return &c, nil
}
