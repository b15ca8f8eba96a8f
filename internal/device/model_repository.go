package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
)

// maxModelNameLength bounds Model.Name.
const maxModelNameLength = 200

// ModelRepository defines device model persistence operations.
type ModelRepository interface {
	GetByID(ctx context.Context, id string) (*Model, error)
	List(ctx context.Context) ([]Model, error)
	Create(ctx context.Context, m *Model) error
	Update(ctx context.Context, m *Model) error
	SetImageURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

// SQLiteModelRepository implements ModelRepository.
type SQLiteModelRepository struct {
	db database.Querier
}

// NewSQLiteModelRepository creates a device model repository.
func NewSQLiteModelRepository(db database.Querier) *SQLiteModelRepository {
	return &SQLiteModelRepository{db: db}
}

const modelColumns = "id, name, description, supports_lorawan, image_url, created_at, updated_at"

// ValidateModel checks the user-editable fields of a model.
func ValidateModel(m *Model) error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidModel)
	}
	if len(name) > maxModelNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidModel, maxModelNameLength)
	}
	return nil
}

// GetByID retrieves a model. Returns ErrModelNotFound if absent.
func (r *SQLiteModelRepository) GetByID(ctx context.Context, id string) (*Model, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+modelColumns+" FROM device_models WHERE id = ?", id)
	m, err := scanModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("querying device model: %w", err)
	}
	return m, nil
}

// List retrieves all models ordered by name.
func (r *SQLiteModelRepository) List(ctx context.Context) ([]Model, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+modelColumns+" FROM device_models ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("querying device models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device model: %w", err)
		}
		models = append(models, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device models: %w", err)
	}
	return models, nil
}

// Create inserts a model. Returns ErrModelExists if the ID is taken.
func (r *SQLiteModelRepository) Create(ctx context.Context, m *Model) error {
	if err := ValidateModel(m); err != nil {
		return err
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO device_models ("+modelColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		m.ID,
		strings.TrimSpace(m.Name),
		database.NullString(m.Description),
		database.BoolToInt(m.SupportsLoRaWAN),
		database.NullString(m.ImageURL),
		database.FormatTime(m.CreatedAt),
		database.FormatTime(m.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return ErrModelExists
		}
		return fmt.Errorf("inserting device model: %w", err)
	}
	return nil
}

// Update modifies the editable fields of a model. ImageURL is managed
// separately through SetImageURL.
func (r *SQLiteModelRepository) Update(ctx context.Context, m *Model) error {
	if err := ValidateModel(m); err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE device_models SET name = ?, description = ?, supports_lorawan = ?, updated_at = ?
		WHERE id = ?`,
		strings.TrimSpace(m.Name),
		database.NullString(m.Description),
		database.BoolToInt(m.SupportsLoRaWAN),
		database.FormatTime(m.UpdatedAt),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device model: %w", err)
	}
	return requireAffected(res, ErrModelNotFound)
}

// SetImageURL records where the model image is served from.
func (r *SQLiteModelRepository) SetImageURL(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE device_models SET image_url = ?, updated_at = ? WHERE id = ?",
		database.NullString(url), database.FormatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating device model image: %w", err)
	}
	return requireAffected(res, ErrModelNotFound)
}

// Delete removes a model. Devices referencing it keep their model ID.
func (r *SQLiteModelRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM device_models WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device model: %w", err)
	}
	return requireAffected(res, ErrModelNotFound)
}

func scanModel(scanner database.RowScanner) (*Model, error) {
	var (
		m                    Model
		description, image   sql.NullString
		lora                 int
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&m.ID, &m.Name, &description, &lora, &image, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.Description = description.String
	m.ImageURL = image.String
	m.SupportsLoRaWAN = lora != 0
	m.CreatedAt = database.ParseTime(createdAt)
	m.UpdatedAt = database.ParseTime(updatedAt)
	return &m, nil
}
