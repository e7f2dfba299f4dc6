package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTx(id string, block int64) *entity.Transaction {
	return &entity.Transaction{ID: id, BlockNumber: block, Timestamp: 1_700_000_000, From: "0xfrom"}
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Load(context.Background(), entity.KindTransaction, "0xnope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestMemoryStore_SaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Save(ctx, mustTx("0xaa", 1)))

	got, err := store.LoadAs[*entity.Transaction](ctx, s, entity.KindTransaction, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.BlockNumber)

	require.NoError(t, s.Remove(ctx, entity.KindTransaction, "0xaa"))
	ok, err := store.Exists(ctx, s, entity.KindTransaction, "0xaa")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing again is a no-op
	require.NoError(t, s.Remove(ctx, entity.KindTransaction, "0xaa"))
}

func TestMemoryStore_LoadReturnsDetachedCopy(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(ctx, mustTx("0xaa", 1)))

	first, err := store.LoadAs[*entity.Transaction](ctx, s, entity.KindTransaction, "0xaa")
	require.NoError(t, err)
	first.BlockNumber = 999

	second, err := store.LoadAs[*entity.Transaction](ctx, s, entity.KindTransaction, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.BlockNumber, "mutating a loaded record must not change the store")
}

func TestMemoryStore_KindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(ctx, mustTx("same", 1)))
	require.NoError(t, s.Save(ctx, &entity.Position{Key: "same"}))

	require.NoError(t, s.Remove(ctx, entity.KindPosition, "same"))
	ok, err := store.Exists(ctx, s, entity.KindTransaction, "same")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Count(entity.KindPosition))
	assert.Equal(t, 1, s.Count(entity.KindTransaction))
}

func TestMemoryStore_ListPaginates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, &entity.Position{Key: fmt.Sprintf("k%d", i)}))
	}
	require.NoError(t, s.Save(ctx, mustTx("k9", 1)))

	page, err := s.List(ctx, entity.KindPosition, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "k0", page[0].EntityID())
	assert.Equal(t, "k1", page[1].EntityID())

	rest, err := s.List(ctx, entity.KindPosition, "k1", 0)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, "k4", rest[2].EntityID(), "other kinds must not leak into the listing")

	all, err := s.List(ctx, entity.KindPosition, "", -1)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestLoadAs_WrongType(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(ctx, mustTx("0xaa", 1)))

	_, err := store.LoadAs[*entity.Position](ctx, s, entity.KindTransaction, "0xaa")
	assert.Error(t, err)
}

func TestInstrumented_NotFoundIsNotAnError(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	s := store.NewInstrumented(store.NewMemoryStore(), metrics)

	_, err := s.Load(ctx, entity.KindTransaction, "0xnope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("load")))

	require.NoError(t, s.Save(ctx, mustTx("0xaa", 1)))
	_, err = s.Load(ctx, entity.KindTransaction, "0xaa")
	assert.NoError(t, err)
}
