package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is wrapped by every repository's not-found sentinel, so callers
// that handle several entity kinds can test for it once.
var ErrNotFound = errors.New("not found")

// TimeFormat is the layout used for all timestamp columns.
const TimeFormat = time.RFC3339

// NullString stores "" as NULL.
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// NullTime stores a nil time as NULL and anything else as RFC3339 UTC.
func NullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(TimeFormat), Valid: true}
}

// NullBytes stores a nil slice as NULL.
func NullBytes(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// FormatTime renders a non-null timestamp column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a timestamp column. Invalid values yield the zero time.
func ParseTime(s string) time.Time {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseNullTime parses a nullable timestamp column.
func ParseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(TimeFormat, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// BoolToInt converts a boolean to 0/1 for SQLite storage.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsUniqueConstraintError reports whether err is a primary key or unique
// constraint violation.
func IsUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// RowScanner is satisfied by both *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}
