// Package sqlite implements history.Medium on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"genstudio/internal/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS history_entries (
	partition  TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	value      BLOB    NOT NULL,
	PRIMARY KEY (partition, key)
);

CREATE INDEX IF NOT EXISTS idx_history_entries_created ON history_entries(partition, created_at);
`

// Medium stores every partition in one SQLite table.
type Medium struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database file at path. The parent directory is
// created when missing.
func New(path string) (*Medium, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	return &Medium{db: db, path: path}, nil
}

// Path returns the database location.
func (m *Medium) Path() string {
	return m.path
}

func (m *Medium) Open(ctx context.Context, partition string) error {
	if _, err := m.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (m *Medium) Upsert(ctx context.Context, partition string, e history.Entry) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM history_entries WHERE partition = ? AND key = ?`,
		partition, e.Key,
	).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("sqlite: lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history_entries (partition, key, created_at, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (partition, key) DO UPDATE SET created_at = excluded.created_at, value = excluded.value
	`, partition, e.Key, e.CreatedAt.UnixNano(), e.Value); err != nil {
		return false, fmt.Errorf("sqlite: upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: commit: %w", err)
	}
	return exists == 0, nil
}

func (m *Medium) Delete(ctx context.Context, partition, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM history_entries WHERE partition = ? AND key = ?`, partition, key)
	return err
}

func (m *Medium) Scan(ctx context.Context, partition string) ([]history.Entry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT key, created_at, value FROM history_entries WHERE partition = ?`, partition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e     history.Entry
			nanos int64
		)
		if err := rows.Scan(&e.Key, &nanos, &e.Value); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, nanos).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Medium) Clear(ctx context.Context, partition string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM history_entries WHERE partition = ?`, partition)
	return err
}

func (m *Medium) Close() error {
	return m.db.Close()
}

var _ history.Medium = (*Medium)(nil)
