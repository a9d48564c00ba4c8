// Package postgres implements history.Medium on PostgreSQL through the
// marker-audited SQL runner.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"genstudio/internal/history"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// Medium stores every partition in the history_entries table.
type Medium struct {
	sql     infra.SQLExecutor
	closeFn func()

	migrateMu sync.Mutex
	migrated  bool
}

// New wraps an executor. closeFn, when non-nil, is called by Close and is
// usually the pool's Close method.
func New(sql infra.SQLExecutor, closeFn func()) *Medium {
	return &Medium{sql: sql, closeFn: closeFn}
}

// Open creates the table on first use. A failed migration is retried by the
// next Open.
func (m *Medium) Open(ctx context.Context, partition string) error {
	m.migrateMu.Lock()
	defer m.migrateMu.Unlock()
	if m.migrated {
		return nil
	}
	if _, err := m.sql.Exec(ctx, sqlinline.QCreateHistoryEntries); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	m.migrated = true
	return nil
}

func (m *Medium) Upsert(ctx context.Context, partition string, e history.Entry) (bool, error) {
	if !json.Valid(e.Value) {
		return false, fmt.Errorf("postgres: entry %s is not valid json", e.Key)
	}
	var inserted bool
	row := m.sql.QueryRow(ctx, sqlinline.QUpsertHistoryEntry, partition, e.Key, e.CreatedAt, e.Value)
	if err := row.Scan(&inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

func (m *Medium) Delete(ctx context.Context, partition, key string) error {
	_, err := m.sql.Exec(ctx, sqlinline.QDeleteHistoryEntry, partition, key)
	return err
}

func (m *Medium) Scan(ctx context.Context, partition string) ([]history.Entry, error) {
	rows, err := m.sql.Query(ctx, sqlinline.QScanHistoryEntries, partition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e         history.Entry
			createdAt time.Time
		)
		if err := rows.Scan(&e.Key, &createdAt, &e.Value); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Medium) Clear(ctx context.Context, partition string) error {
	_, err := m.sql.Exec(ctx, sqlinline.QClearHistoryEntries, partition)
	return err
}

func (m *Medium) Close() error {
	if m.closeFn != nil {
		m.closeFn()
	}
	return nil
}

var _ history.Medium = (*Medium)(nil)
