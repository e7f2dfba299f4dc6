package store

import (
	"context"
	"fmt"
	"sync"

	"PerpIndexer/internal/entity"

	"github.com/google/btree"
)

type memItem struct {
	kind entity.Kind
	id   string
	data []byte
}

func memLess(a, b memItem) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.id < b.id
}

// MemoryStore keeps encoded records in a B-tree ordered by (kind, id).
// Records are stored encoded so callers never share mutable state with
// the store, matching the postgres implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memItem]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: btree.NewG(32, memLess)}
}

func (m *MemoryStore) Load(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	m.mu.RLock()
	item, ok := m.tree.Get(memItem{kind: kind, id: id})
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return entity.Decode(kind, item.data)
}

func (m *MemoryStore) Save(ctx context.Context, e entity.Entity) error {
	data, err := entity.Encode(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.tree.ReplaceOrInsert(memItem{kind: e.Kind(), id: e.EntityID(), data: data})
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, kind entity.Kind, id string) error {
	m.mu.Lock()
	m.tree.Delete(memItem{kind: kind, id: id})
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, kind entity.Kind, afterID string, limit int) ([]entity.Entity, error) {
	var items []memItem

	m.mu.RLock()
	m.tree.AscendGreaterOrEqual(memItem{kind: kind, id: afterID}, func(it memItem) bool {
		if it.kind != kind {
			return false
		}
		if it.id == afterID {
			return true
		}
		if limit > 0 && len(items) >= limit {
			return false
		}
		items = append(items, it)
		return true
	})
	m.mu.RUnlock()

	out := make([]entity.Entity, 0, len(items))
	for _, it := range items {
		e, err := entity.Decode(kind, it.data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Count returns the number of records of kind.
func (m *MemoryStore) Count(kind entity.Kind) int {
	n := 0
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.tree.AscendGreaterOrEqual(memItem{kind: kind}, func(it memItem) bool {
		if it.kind != kind {
			return false
		}
		n++
		return true
	})
	return n
}
