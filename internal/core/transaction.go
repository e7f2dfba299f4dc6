package core

import (
	"container/list"
	"context"
	"errors"
	"fmt"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/store"
)

// TransactionMemoizer ensures exactly one Transaction summary per hash.
// Lookups go through two tiers: an LRU of hashes known to exist, then
// the store.
// Not thread-safe: only accessed from the single-threaded core.
type TransactionMemoizer struct {
	lru     *HashLRU
	store   store.Store
	metrics *observability.Metrics
}

func NewTransactionMemoizer(capacity int, s store.Store, metrics *observability.Metrics) *TransactionMemoizer {
	return &TransactionMemoizer{
		lru:     NewHashLRU(capacity),
		store:   s,
		metrics: metrics,
	}
}

// EnsureTransaction returns the summary id for ref's transaction, creating
// the summary on first reference. Repeated calls for one hash perform at
// most one store write.
func (m *TransactionMemoizer) EnsureTransaction(ctx context.Context, ref event.Ref) (string, error) {
	id := ref.TxHash

	// Tier 1: known hashes
	if m.lru.Contains(id) {
		m.observe("lru")
		return id, nil
	}

	// Tier 2: store
	_, err := m.store.Load(ctx, entity.KindTransaction, id)
	switch {
	case err == nil:
		m.observe("store")
		m.lru.Add(id)
		return id, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("load transaction %s: %w", id, err)
	}

	m.observe("miss")
	tx := &entity.Transaction{
		ID:               id,
		Timestamp:        ref.BlockTimestamp,
		BlockNumber:      ref.BlockNumber,
		TransactionIndex: ref.TxIndex,
		From:             ref.TxFrom,
		To:               ref.TxTo,
	}
	if err := m.store.Save(ctx, tx); err != nil {
		return "", fmt.Errorf("save transaction %s: %w", id, err)
	}
	if m.metrics != nil {
		m.metrics.TransactionsCreated.Inc()
	}
	m.lru.Add(id)
	return id, nil
}

func (m *TransactionMemoizer) observe(tier string) {
	if m.metrics != nil {
		m.metrics.TxMemoHits.WithLabelValues(tier).Inc()
	}
}

// --- LRU Implementation ---

// HashLRU is a bounded set of recently seen transaction hashes.
// Not thread-safe: only accessed from the single-threaded core.
type HashLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

func NewHashLRU(capacity int) *HashLRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &HashLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front)
func (lru *HashLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if exists)
func (lru *HashLRU) Add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(key)
	lru.cache[key] = elem

	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *HashLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		delete(lru.cache, elem.Value.(string))
	}
}

// Size returns current number of entries
func (lru *HashLRU) Size() int {
	return lru.lruList.Len()
}
