package persistence_test

import (
	"context"
	"math/big"
	"testing"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/persistence"
	"PerpIndexer/internal/store"
	"PerpIndexer/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PostgresStore
// ============================================================================

func TestPostgresStore_SaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	s := persistence.NewPostgresStore(setupTestDB(t))

	_, err := s.Load(ctx, entity.KindPosition, "0xkey")
	require.ErrorIs(t, err, store.ErrNotFound)

	isLong := true
	pos := &entity.Position{
		Key:          "0xkey",
		Size:         entity.NewAmount(new(big.Int).Lsh(big.NewInt(1), 120)),
		Collateral:   entity.NewAmount(big.NewInt(5)),
		AveragePrice: entity.NewAmount(big.NewInt(6)),
		RealisedPnl:  entity.NewAmount(big.NewInt(-7)),
		Account:      "0xaccount",
		IsLong:       &isLong,
	}
	require.NoError(t, s.Save(ctx, pos))

	got, err := store.LoadAs[*entity.Position](ctx, s, entity.KindPosition, "0xkey")
	require.NoError(t, err)
	assert.Equal(t, pos.Size.String(), got.Size.String(), "values beyond 64 bits survive JSONB")
	assert.Equal(t, "-7", got.RealisedPnl.String())
	require.NotNil(t, got.IsLong)
	assert.True(t, *got.IsLong)

	pos.Collateral = entity.NewAmount(big.NewInt(50))
	require.NoError(t, s.Save(ctx, pos), "save overwrites")
	got, err = store.LoadAs[*entity.Position](ctx, s, entity.KindPosition, "0xkey")
	require.NoError(t, err)
	assert.Equal(t, "50", got.Collateral.String())

	require.NoError(t, s.Remove(ctx, entity.KindPosition, "0xkey"))
	require.NoError(t, s.Remove(ctx, entity.KindPosition, "0xkey"), "removing a missing record is a no-op")
	exists, err := store.Exists(ctx, s, entity.KindPosition, "0xkey")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostgresStore_KindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := persistence.NewPostgresStore(setupTestDB(t))

	stake := entity.NewStake(entity.KindStakeElp)
	stake.ID = "0xabc:1"
	stake.Amount = entity.NewAmount(big.NewInt(9))
	require.NoError(t, s.Save(ctx, stake))

	_, err := s.Load(ctx, entity.KindUnstakeElp, "0xabc:1")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Load(ctx, entity.KindStakeElp, "0xabc:1")
	require.NoError(t, err)
	assert.Equal(t, entity.KindStakeElp, got.Kind())
}

func TestPostgresStore_ListPagesByID(t *testing.T) {
	ctx := context.Background()
	s := persistence.NewPostgresStore(setupTestDB(t))

	for _, id := range []string{"0xb:1", "0xa:2", "0xa:10", "0xc:0"} {
		require.NoError(t, s.Save(ctx, &entity.Transaction{ID: id}))
	}

	page, err := s.List(ctx, entity.KindTransaction, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "0xa:10", page[0].EntityID())
	assert.Equal(t, "0xa:2", page[1].EntityID())

	page, err = s.List(ctx, entity.KindTransaction, page[1].EntityID(), 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "0xb:1", page[0].EntityID())
	assert.Equal(t, "0xc:0", page[1].EntityID())
}

func TestPostgresStore_ListNonPositiveLimitReturnsAll(t *testing.T) {
	ctx := context.Background()
	s := persistence.NewPostgresStore(setupTestDB(t))

	for _, id := range []string{"0xb:1", "0xa:2", "0xc:0"} {
		require.NoError(t, s.Save(ctx, &entity.Transaction{ID: id}))
	}

	for _, limit := range []int{0, -1} {
		all, err := s.List(ctx, entity.KindTransaction, "", limit)
		require.NoError(t, err)
		assert.Len(t, all, 3, "limit %d", limit)
	}

	rest, err := s.List(ctx, entity.KindTransaction, "0xa:2", 0)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "0xb:1", rest[0].EntityID())
}

// ============================================================================
// Migrator
// ============================================================================

func TestMigrator_UpIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	migrator := persistence.NewMigrator(db, testutil.MigrationsDir(t), zerolog.Nop())

	applied, err := migrator.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "setup already applied every migration")

	states, err := migrator.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "000001", states[0].Version)
	assert.Equal(t, "000002_event_archive.up.sql", states[1].Filename)
	for _, st := range states {
		assert.True(t, st.Applied, st.Filename)
	}
}

// ============================================================================
// Archive
// ============================================================================

func TestArchive_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	writer := persistence.NewArchiveWriter(db)
	reader := persistence.NewArchiveReader(db)

	_, ok, err := reader.LatestCursor(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rows := []persistence.ArchiveRow{
		{EventID: "0xa:5", EventType: "IncreasePosition", Cursor: event.Cursor{BlockNumber: 10, TxIndex: 1, LogIndex: 5},
			Records: []persistence.RecordRef{{Kind: entity.KindIncreasePosition, ID: "0xa:5"}}},
		{EventID: "0xa:6", EventType: "UpdatePosition", Cursor: event.Cursor{BlockNumber: 10, TxIndex: 1, LogIndex: 6},
			Records: []persistence.RecordRef{{Kind: entity.KindPosition, ID: "0xkey"}}},
		{EventID: "0xb:0", EventType: "ClosePosition", Cursor: event.Cursor{BlockNumber: 11, TxIndex: 0, LogIndex: 0},
			Records: []persistence.RecordRef{{Kind: entity.KindPosition, ID: "0xkey", Removed: true}}},
	}
	require.NoError(t, writer.WriteBatch(ctx, rows))
	require.NoError(t, writer.WriteBatch(ctx, rows[:1]), "re-archiving is skipped")

	latest, ok, err := reader.LatestCursor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, event.Cursor{BlockNumber: 11}, latest)

	after, err := reader.LoadFrom(ctx, event.Cursor{BlockNumber: 10, TxIndex: 1, LogIndex: 5}, 10)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "0xa:6", after[0].EventID)
	assert.True(t, after[1].Records[0].Removed)
}
