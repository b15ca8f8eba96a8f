package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
)

// Repository defines device persistence operations.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	List(ctx context.Context) ([]Device, error)

	// Insert returns ErrDeviceExists if the ID is taken.
	Insert(ctx context.Context, d *Device) error

	// Update returns ErrDeviceNotFound if the device does not exist.
	// CreatedAt is never modified.
	Update(ctx context.Context, d *Device) error
}

// SQLiteRepository implements Repository on any database.Querier, so it can
// run against the pool or inside a sync Session.
type SQLiteRepository struct {
	db database.Querier
}

// NewSQLiteRepository creates a device repository.
func NewSQLiteRepository(db database.Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, device_model_id, version, is_connected, is_enabled,
	status_updated_time, last_active_time, tags, supports_lorawan, lorawan,
	created_at, updated_at`

// GetByID retrieves a device by its identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Insert adds a new device row.
func (r *SQLiteRepository) Insert(ctx context.Context, d *Device) error {
	tagsJSON, lorawanJSON, err := marshalDeviceJSON(d)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.Name,
		database.NullString(d.DeviceModelID),
		d.Version,
		database.BoolToInt(d.IsConnected),
		database.BoolToInt(d.IsEnabled),
		database.NullTime(d.StatusUpdatedTime),
		database.NullTime(d.LastActiveTime),
		database.NullBytes(tagsJSON),
		database.BoolToInt(d.SupportsLoRaWAN),
		database.NullBytes(lorawanJSON),
		database.FormatTime(d.CreatedAt),
		database.FormatTime(d.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update overwrites every synced field of an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	tagsJSON, lorawanJSON, err := marshalDeviceJSON(d)
	if err != nil {
		return err
	}

	d.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, device_model_id = ?, version = ?, is_connected = ?, is_enabled = ?,
			status_updated_time = ?, last_active_time = ?, tags = ?, supports_lorawan = ?,
			lorawan = ?, updated_at = ?
		WHERE id = ?`,
		d.Name,
		database.NullString(d.DeviceModelID),
		d.Version,
		database.BoolToInt(d.IsConnected),
		database.BoolToInt(d.IsEnabled),
		database.NullTime(d.StatusUpdatedTime),
		database.NullTime(d.LastActiveTime),
		database.NullBytes(tagsJSON),
		database.BoolToInt(d.SupportsLoRaWAN),
		database.NullBytes(lorawanJSON),
		database.FormatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireAffected(res, ErrDeviceNotFound)
}

func marshalDeviceJSON(d *Device) (tags, lorawan []byte, err error) {
	if len(d.Tags) > 0 {
		if tags, err = json.Marshal(d.Tags); err != nil {
			return nil, nil, fmt.Errorf("marshalling tags: %w", err)
		}
	}
	if d.LoRaWAN != nil {
		if lorawan, err = json.Marshal(d.LoRaWAN); err != nil {
			return nil, nil, fmt.Errorf("marshalling lorawan settings: %w", err)
		}
	}
	return tags, lorawan, nil
}

func scanDevice(scanner database.RowScanner) (*Device, error) {
	var (
		d                         Device
		modelID, tags, lorawan    sql.NullString
		statusUpdated, lastActive sql.NullString
		connected, enabled, lora  int
		createdAt, updatedAt      string
	)

	err := scanner.Scan(
		&d.ID, &d.Name, &modelID, &d.Version, &connected, &enabled,
		&statusUpdated, &lastActive, &tags, &lora, &lorawan,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.DeviceModelID = modelID.String
	d.IsConnected = connected != 0
	d.IsEnabled = enabled != 0
	d.SupportsLoRaWAN = lora != 0
	d.StatusUpdatedTime = database.ParseNullTime(statusUpdated)
	d.LastActiveTime = database.ParseNullTime(lastActive)
	d.CreatedAt = database.ParseTime(createdAt)
	d.UpdatedAt = database.ParseTime(updatedAt)

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &d.Tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags: %w", err)
		}
	}
	if lorawan.Valid && lorawan.String != "" {
		var lw LoRaWANSettings
		if err := json.Unmarshal([]byte(lorawan.String), &lw); err != nil {
			return nil, fmt.Errorf("unmarshalling lorawan settings: %w", err)
		}
		d.LoRaWAN = &lw
	}

	return &d, nil
}

// requireAffected maps a zero-row UPDATE or DELETE to notFound.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
