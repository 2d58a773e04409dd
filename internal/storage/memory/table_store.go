package memory

import (
	"context"
	"sync"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
	"etf-flow-lab/internal/storage/csvtable"
)

// TableStore is an in-memory implementation of storage.TableStore.
// It keeps the encoded object, so loads go through the same codec as remote stores.
type TableStore struct {
	mu     sync.RWMutex
	object []byte // nil until the first Save
	saves  int
}

// NewTableStore creates an empty in-memory table store.
func NewTableStore() *TableStore {
	return &TableStore{}
}

// NewTableStoreWithObject creates a store preloaded with a raw object, e.g. a fixture file.
func NewTableStoreWithObject(object []byte) *TableStore {
	b := make([]byte, len(object))
	copy(b, object)
	return &TableStore{object: b}
}

// Load decodes the stored object. Returns ErrNotFound before the first Save.
func (s *TableStore) Load(_ context.Context) (*domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.object == nil {
		return nil, storage.ErrNotFound
	}
	return csvtable.Unmarshal(s.object)
}

// Save encodes t and swaps it in under the lock.
func (s *TableStore) Save(_ context.Context, t *domain.Table) error {
	b, err := csvtable.Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.object = b
	s.saves++
	return nil
}

// Object returns a copy of the stored bytes, or nil.
func (s *TableStore) Object() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.object == nil {
		return nil
	}
	b := make([]byte, len(s.object))
	copy(b, s.object)
	return b
}

// Saves returns how many times Save succeeded.
func (s *TableStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

var _ storage.TableStore = (*TableStore)(nil)
