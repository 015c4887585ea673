package nicks

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects placeholder syntax for SQLStore.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLStore keeps known nicks in the known_nicks table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database whose schema is already migrated.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) insertStmt() string {
	if s.dialect == DialectSQLite {
		return `INSERT INTO known_nicks(nick) VALUES (?) ON CONFLICT(nick) DO NOTHING`
	}
	return `INSERT INTO known_nicks(nick) VALUES ($1) ON CONFLICT(nick) DO NOTHING`
}

// Load returns every stored key.
func (s *SQLStore) Load(ctx context.Context) (Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT nick FROM known_nicks`)
	if err != nil {
		return nil, fmt.Errorf("query known nicks: %w", err)
	}
	defer rows.Close()
	set := NewSet()
	for rows.Next() {
		var nick string
		if err := rows.Scan(&nick); err != nil {
			return nil, fmt.Errorf("scan known nick: %w", err)
		}
		set.Add(nick)
	}
	return set, rows.Err()
}

// Save inserts keys that are not stored yet, in one transaction.
func (s *SQLStore) Save(ctx context.Context, keys Set) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insertStmt())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, k := range keys.Sorted() {
		if _, err := stmt.ExecContext(ctx, k); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
