// Package history keeps a bounded, durable set of generation records per
// kind. The durable substrate is abstracted as a Medium so that the same
// eviction logic runs on SQLite, PostgreSQL or an in-process map.
package history

import (
	"context"
	"time"
)

// Entry is a single key/value row in a medium partition.
type Entry struct {
	Key       string
	CreatedAt time.Time
	Value     []byte
}

// Medium is a key/value persistence substrate. Every method is a single
// atomic unit against the backing storage.
type Medium interface {
	// Open creates the partition on first use.
	Open(ctx context.Context, partition string) error
	// Upsert writes the entry and reports whether the key was new.
	Upsert(ctx context.Context, partition string, e Entry) (bool, error)
	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, partition, key string) error
	Scan(ctx context.Context, partition string) ([]Entry, error)
	Clear(ctx context.Context, partition string) error
	Close() error
}
