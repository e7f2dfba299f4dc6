package core_test

import (
	"context"
	"testing"

	"PerpIndexer/internal/core"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTransaction_CreatesOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	m := core.NewTransactionMemoizer(8, s, metrics)

	r := event.Ref{TxHash: "0xaaa", BlockNumber: 5, BlockTimestamp: 99, TxIndex: 2, TxFrom: "0xfrom"}
	for li := int64(0); li < 4; li++ {
		r.LogIndex = li
		id, err := m.EnsureTransaction(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, "0xaaa", id)
	}

	assert.Equal(t, 1, s.Count(entity.KindTransaction))
	assert.Equal(t, 1.0, ptestutil.ToFloat64(metrics.TransactionsCreated))
	assert.Equal(t, 3.0, ptestutil.ToFloat64(metrics.TxMemoHits.WithLabelValues("lru")))

	tx, err := store.LoadAs[*entity.Transaction](ctx, s, entity.KindTransaction, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tx.TransactionIndex)
	assert.Empty(t, tx.To, "contract creation has no recipient")
}

func TestEnsureTransaction_FallsBackToStoreAfterEviction(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	m := core.NewTransactionMemoizer(1, s, metrics)

	_, err := m.EnsureTransaction(ctx, event.Ref{TxHash: "0xaaa", BlockTimestamp: 1})
	require.NoError(t, err)
	_, err = m.EnsureTransaction(ctx, event.Ref{TxHash: "0xbbb", BlockTimestamp: 2})
	require.NoError(t, err)

	// 0xaaa was evicted; the store tier answers without rewriting
	_, err = m.EnsureTransaction(ctx, event.Ref{TxHash: "0xaaa", BlockTimestamp: 777})
	require.NoError(t, err)

	assert.Equal(t, 2.0, ptestutil.ToFloat64(metrics.TransactionsCreated))
	assert.Equal(t, 1.0, ptestutil.ToFloat64(metrics.TxMemoHits.WithLabelValues("store")))

	tx, err := store.LoadAs[*entity.Transaction](ctx, s, entity.KindTransaction, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tx.Timestamp, "summary is never mutated")
}

// ============================================================================
// HashLRU
// ============================================================================

func TestHashLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	lru := core.NewHashLRU(2)
	lru.Add("a")
	lru.Add("b")
	assert.True(t, lru.Contains("a")) // promotes a
	lru.Add("c")                      // evicts b

	assert.True(t, lru.Contains("a"))
	assert.False(t, lru.Contains("b"))
	assert.True(t, lru.Contains("c"))
	assert.Equal(t, 2, lru.Size())
}
