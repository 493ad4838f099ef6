package store

import (
	"context"
	"sync"

	"github.com/rickgao/cgm-ingest/internal/model"
)

// Memory is an in-process Store. Transactions are serialized by a mutex and
// their writes become visible only on commit.
type Memory struct {
	mu      sync.Mutex
	records map[model.Identity]model.GlucoseRecord
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[model.Identity]model.GlucoseRecord)}
}

// RunInTx runs fn while holding the store lock.
func (m *Memory) RunInTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{committed: m.records, staged: make(map[model.Identity]model.GlucoseRecord)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, rec := range tx.staged {
		m.records[id] = rec
	}
	return nil
}

// Get returns the committed record for id.
func (m *Memory) Get(_ context.Context, id model.Identity) (model.GlucoseRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok, nil
}

// Count returns the number of committed records.
func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

type memoryTx struct {
	committed map[model.Identity]model.GlucoseRecord
	staged    map[model.Identity]model.GlucoseRecord
}

func (t *memoryTx) Exists(_ context.Context, id model.Identity) (bool, error) {
	_, ok := t.committed[id]
	return ok, nil
}

func (t *memoryTx) Insert(_ context.Context, rec model.GlucoseRecord) (bool, error) {
	id := rec.Identity()
	if _, ok := t.committed[id]; ok {
		return false, nil
	}
	if _, ok := t.staged[id]; ok {
		return false, nil
	}
	t.staged[id] = rec
	return true, nil
}
