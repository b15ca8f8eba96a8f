package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionClosed is returned when a Session is used after SaveChanges or Close.
var ErrSessionClosed = errors.New("database: session closed")

// Session is a unit of work bound to one transaction.
//
// A sync job opens a Session, routes every lookup and write through
// Querier(), and calls SaveChanges exactly once at the end. Close rolls
// back anything not saved, so it is safe to defer unconditionally:
//
//	sess, err := db.NewSession(ctx)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//	// ... repository calls with sess.Querier() ...
//	return sess.SaveChanges(ctx)
type Session struct {
	mu      sync.Mutex
	tx      *sql.Tx
	done    bool
	release func()
}

// NewSession waits for any other open Session to finish, then begins a
// transaction. Reads on the pool are not blocked by an open Session.
func (db *DB) NewSession(ctx context.Context) (*Session, error) {
	select {
	case db.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for write session: %w", ctx.Err())
	}
	release := func() { <-db.writeSlot }

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		release()
		return nil, err
	}
	return &Session{tx: tx, release: release}, nil
}

// Querier returns the transaction as a Querier for repositories.
func (s *Session) Querier() Querier {
	return s.tx
}

// SaveChanges commits all changes made through the session.
func (s *Session) SaveChanges(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return ErrSessionClosed
	}
	s.done = true
	defer s.release()

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// Close rolls back the transaction unless SaveChanges already committed it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil
	}
	s.done = true
	defer s.release()

	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back session: %w", err)
	}
	return nil
}
