package history

import (
	"context"
	"errors"
	"sync"
)

var errMediumClosed = errors.New("history: medium closed")

// MemoryMedium keeps partitions in process memory. It is used by tests and by
// the "memory" driver for throwaway sessions.
type MemoryMedium struct {
	mu         sync.Mutex
	partitions map[string]map[string]Entry
	closed     bool
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{partitions: make(map[string]map[string]Entry)}
}

func (m *MemoryMedium) Open(ctx context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMediumClosed
	}
	if _, ok := m.partitions[partition]; !ok {
		m.partitions[partition] = make(map[string]Entry)
	}
	return nil
}

func (m *MemoryMedium) Upsert(ctx context.Context, partition string, e Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.partition(partition)
	if err != nil {
		return false, err
	}
	_, exists := p[e.Key]
	e.Value = append([]byte(nil), e.Value...)
	p[e.Key] = e
	return !exists, nil
}

func (m *MemoryMedium) Delete(ctx context.Context, partition, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.partition(partition)
	if err != nil {
		return err
	}
	delete(p, key)
	return nil
}

func (m *MemoryMedium) Scan(ctx context.Context, partition string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.partition(partition)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(p))
	for _, e := range p {
		e.Value = append([]byte(nil), e.Value...)
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryMedium) Clear(ctx context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.partition(partition); err != nil {
		return err
	}
	m.partitions[partition] = make(map[string]Entry)
	return nil
}

func (m *MemoryMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryMedium) partition(name string) (map[string]Entry, error) {
	if m.closed {
		return nil, errMediumClosed
	}
	p, ok := m.partitions[name]
	if !ok {
		return nil, errors.New("history: partition not open: " + name)
	}
	return p, nil
}

var _ Medium = (*MemoryMedium)(nil)
