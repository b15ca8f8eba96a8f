package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const (
	pingTimeout = 5 * time.Second

	// defaultWALConns applies when Config.MaxConnections is unset.
	defaultWALConns = 4

	dirMode  os.FileMode = 0o750
	fileMode os.FileMode = 0o600
)

// Querier is what repositories need from *sql.DB or *sql.Tx, so the same
// repository runs on the pool or inside a Session.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config selects the SQLite file and its pragmas.
type Config struct {
	// Path of the database file; missing parent directories are created.
	Path string

	// WALMode lets readers on other pooled connections proceed while a
	// sync Session holds the write transaction.
	WALMode bool

	// BusyTimeout is how long, in seconds, a writer waits for the write
	// lock held by another connection.
	BusyTimeout int

	// MaxConnections sizes the pool in WAL mode. Without WAL the pool is a
	// single connection.
	MaxConnections int
}

// poolSize returns the number of pooled connections for cfg.
func (cfg Config) poolSize() int {
	if !cfg.WALMode {
		return 1
	}
	if cfg.MaxConnections < 2 {
		return defaultWALConns
	}
	return cfg.MaxConnections
}

// dsn renders cfg as a go-sqlite3 connection string.
func (cfg Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*int(time.Second/time.Millisecond)))
	q.Set("_foreign_keys", "on")
	// BEGIN IMMEDIATE takes the write lock up front, so concurrent writers
	// queue on busy_timeout instead of failing on a lock upgrade.
	q.Set("_txlock", "immediate")
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// DB is the portal's SQLite handle.
type DB struct {
	*sql.DB
	path string

	// writeSlot admits one Session at a time so concurrent sync jobs queue
	// in-process rather than on busy_timeout.
	writeSlot chan struct{}
}

// Open creates or opens the database and pings it. In WAL mode the pool
// holds several connections: a sync Session pins one for its whole run
// while API reads use the others. SQLite still admits one writer at a time.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.poolSize())
	sqlDB.SetMaxIdleConns(cfg.poolSize())
	sqlDB.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("pinging database %s: %w", cfg.Path, err)
	}

	_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck // created lazily by the driver
	return &DB{DB: sqlDB, path: cfg.Path, writeSlot: make(chan struct{}, 1)}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the pool. Safe on a DB that was never opened.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck round-trips a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// BeginTx starts an immediate transaction on one pooled connection.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}
