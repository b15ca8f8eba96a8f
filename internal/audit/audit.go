// Package audit records operator-initiated changes: device model edits,
// model image changes and manual sync requests.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
)

// Actions.
const (
	ActionCreate           = "create"
	ActionUpdate           = "update"
	ActionDelete           = "delete"
	ActionImageChange      = "image_change"
	ActionImageDelete      = "image_delete"
	ActionCacheControlSync = "cache_control_sync"
	ActionSyncTrigger      = "sync_trigger"
)

// Entity types.
const (
	EntityDeviceModel = "device_model"
	EntityModelImages = "model_images"
	EntitySyncJob     = "sync_job"
)

// Sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one audit trail row.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string

	// Limit defaults to 50 and is capped at 200.
	Limit  int
	Offset int
}

func (f *Filter) clamp() {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLimit
	case f.Limit > maxLimit:
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	for _, c := range []struct{ col, val string }{
		{"action", f.Action},
		{"entity_type", f.EntityType},
		{"entity_id", f.EntityID},
	} {
		if c.val != "" {
			conds = append(conds, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Page is one window of List results, newest first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) (*Page, error)
}

// SQLiteRepository implements Repository.
type SQLiteRepository struct {
	db database.Querier
}

// NewSQLiteRepository creates an audit repository.
func NewSQLiteRepository(db database.Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e, filling in ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Action == "" || e.EntityType == "" || e.Source == "" {
		return fmt.Errorf("audit: action, entity type and source are required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = b
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, source, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType,
		database.NullString(e.EntityID),
		e.Source,
		database.NullBytes(details),
		database.FormatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	f.clamp()
	where, args := f.where()

	page := &Page{Entries: []Entry{}, Limit: f.Limit, Offset: f.Offset}
	//nolint:gosec // where holds only fixed column names and placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	//nolint:gosec // as above
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, action, entity_type, entity_id, source, details, created_at FROM audit_logs"+
			where+" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		page.Entries = append(page.Entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return page, nil
}

func scanEntry(scanner database.RowScanner) (*Entry, error) {
	var (
		e                 Entry
		entityID, details sql.NullString
		createdAt         string
	)
	if err := scanner.Scan(&e.ID, &e.Action, &e.EntityType, &entityID, &e.Source, &details, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}
	e.EntityID = entityID.String
	e.CreatedAt = database.ParseTime(createdAt)
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshalling audit details: %w", err)
		}
	}
	return &e, nil
}

// Logger is the logging interface used by Log.
type Logger interface {
	Warn(msg string, args ...any)
}

// Log writes e and only logs a failure. Auditing never fails the operation
// being audited. A nil repo is a no-op.
func Log(ctx context.Context, repo Repository, logger Logger, e Entry) {
	if repo == nil {
		return
	}
	if err := repo.Create(ctx, &e); err != nil && logger != nil {
		logger.Warn("writing audit entry failed",
			"action", e.Action, "entity_type", e.EntityType, "entity_id", e.EntityID, "error", err)
	}
}
