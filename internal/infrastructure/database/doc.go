// Package database provides SQLite connectivity for the IoT portal.
//
// This package manages:
//   - the connection pool (single writer, WAL mode, busy timeout)
//   - embedded schema migrations with up/down scripts
//   - Session, the unit of work sync jobs use to batch all writes of one run
//     into a single commit
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and live in the top-level migrations package.
package database
