// Package dbtest opens throwaway SQLite databases with the portal schema applied.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	_ "github.com/nerrad567/iot-portal/migrations" // registers the embedded schema
)

// Open returns a migrated database in t.TempDir(), closed on cleanup.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "portal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
