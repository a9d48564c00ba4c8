package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// DefaultCapacity is the per-kind record limit.
const DefaultCapacity = 100

// Options configures a Store.
type Options struct {
	Partition string
	Capacity  int
	Logger    *infra.Logger
}

// Store is a bounded record set over a Medium partition. Capacity is enforced
// after each insert of a new id, so the partition may briefly hold
// Capacity+1 entries between the write and the eviction pass.
type Store[P domain.Params] struct {
	medium    Medium
	partition string
	capacity  int
	logger    *infra.Logger
	closed    atomic.Bool
}

// Open opens (or creates) the partition and returns a store bound to it.
func Open[P domain.Params](ctx context.Context, medium Medium, opts Options) (*Store[P], error) {
	if medium == nil {
		return nil, fmt.Errorf("%w: medium is required", domain.ErrStorageUnavailable)
	}
	partition := strings.TrimSpace(opts.Partition)
	if partition == "" {
		return nil, errors.New("history: partition is required")
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	if err := medium.Open(ctx, partition); err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStorageUnavailable, partition, err)
	}
	return &Store[P]{
		medium:    medium,
		partition: partition,
		capacity:  capacity,
		logger:    logger,
	}, nil
}

// Capacity returns the configured record limit.
func (s *Store[P]) Capacity() int {
	return s.capacity
}

// Partition returns the medium partition backing the store.
func (s *Store[P]) Partition() string {
	return s.partition
}

// GetAll returns every stored record in no particular order. Entries that no
// longer decode are skipped.
func (s *Store[P]) GetAll(ctx context.Context) ([]domain.Record[P], error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: store closed", domain.ErrStorageUnavailable)
	}
	entries, err := s.medium.Scan(ctx, s.partition)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrStorageUnavailable, s.partition, err)
	}
	records := make([]domain.Record[P], 0, len(entries))
	for _, e := range entries {
		var rec domain.Record[P]
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			s.logger.Warn().
				Err(err).
				Str("partition", s.partition).
				Str("id", e.Key).
				Msg("history: skipping undecodable record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Recent returns all records, newest first.
func (s *Store[P]) Recent(ctx context.Context) ([]domain.Record[P], error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Put upserts rec by id. Inserting a new id may evict the oldest records.
func (s *Store[P]) Put(ctx context.Context, rec domain.Record[P]) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: store closed", domain.ErrStorageUnavailable)
	}
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("history: record id is required")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: encode record: %w", err)
	}
	inserted, err := s.medium.Upsert(ctx, s.partition, Entry{
		Key:       rec.ID,
		CreatedAt: rec.CreatedAt,
		Value:     raw,
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", domain.ErrStorageUnavailable, rec.ID, err)
	}
	if inserted {
		s.evict(ctx)
	}
	return nil
}

// evict trims the partition back to capacity. Failures are logged only; the
// insert that triggered it has already committed.
func (s *Store[P]) evict(ctx context.Context) {
	entries, err := s.medium.Scan(ctx, s.partition)
	if err != nil {
		s.logger.Warn().Err(err).Str("partition", s.partition).Msg("history: eviction scan failed")
		return
	}
	excess := len(entries) - s.capacity
	if excess <= 0 {
		return
	}
	for _, victim := range oldest(entries, excess) {
		if err := s.medium.Delete(ctx, s.partition, victim.Key); err != nil {
			s.logger.Warn().
				Err(err).
				Str("partition", s.partition).
				Str("id", victim.Key).
				Msg("history: eviction delete failed")
			continue
		}
		s.logger.Debug().Str("partition", s.partition).Str("id", victim.Key).Msg("history: evicted record")
	}
}

// oldest returns the n entries with the smallest CreatedAt, ties by key.
func oldest(entries []Entry, n int) []Entry {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Key < sorted[j].Key
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Delete removes the record with the given id if present.
func (s *Store[P]) Delete(ctx context.Context, id string) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: store closed", domain.ErrStorageUnavailable)
	}
	if err := s.medium.Delete(ctx, s.partition, id); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrStorageUnavailable, id, err)
	}
	return nil
}

// Clear removes every record in the partition.
func (s *Store[P]) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: store closed", domain.ErrStorageUnavailable)
	}
	if err := s.medium.Clear(ctx, s.partition); err != nil {
		return fmt.Errorf("%w: clear %s: %v", domain.ErrStorageUnavailable, s.partition, err)
	}
	return nil
}

// Close releases the store handle. The medium itself stays open because
// several stores usually share it; its owner closes it.
func (s *Store[P]) Close() error {
	s.closed.Store(true)
	return nil
}
