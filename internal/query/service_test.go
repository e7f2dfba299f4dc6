package query_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/core"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	fpmath "PerpIndexer/internal/math"
	"PerpIndexer/internal/persistence"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/query"
	"PerpIndexer/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helpers
// ============================================================================

type fixture struct {
	store *store.MemoryStore
	feed  *pricing.StoreFeed
	svc   *query.QueryService
}

func newFixture(t *testing.T, archive query.ArchiveSource) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	tokens := config.MustTokenTable(config.DefaultTokens())
	feed := pricing.NewStoreFeed(s)
	resolver := pricing.NewResolver(tokens, feed, nil)
	return &fixture{store: s, feed: feed, svc: query.NewQueryService(s, resolver, tokens, archive)}
}

func amt(v int64) *entity.Amount { return entity.NewAmount(big.NewInt(v)) }

type fakeArchive struct {
	after event.Cursor
	limit int
}

func (f *fakeArchive) LoadFrom(_ context.Context, after event.Cursor, limit int) ([]persistence.ArchiveRow, error) {
	f.after, f.limit = after, limit
	return []persistence.ArchiveRow{{EventID: "0xa:1", EventType: "Swap", Cursor: event.Cursor{BlockNumber: 2}}}, nil
}

// ============================================================================
// Positions
// ============================================================================

func TestGetPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.GetPosition(ctx, "0xkey")
	require.ErrorIs(t, err, query.ErrNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.store.Save(ctx, &entity.Position{Key: "0xkey", Size: amt(10)}))
	require.NoError(t, f.store.Save(ctx, &entity.Checkpoint{ID: entity.CheckpointID, BlockNumber: 7, TxIndex: 1, LogIndex: 3}))

	resp, err := f.svc.GetPosition(ctx, "0xKEY")
	require.NoError(t, err)
	assert.Equal(t, "10", resp.Position.Size.String())
	assert.False(t, resp.Correlated)
	require.NotNil(t, resp.AsOf)
	assert.Equal(t, event.Cursor{BlockNumber: 7, TxIndex: 1, LogIndex: 3}, *resp.AsOf)
}

func TestListPositions_Pages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	for _, k := range []string{"0xc", "0xa", "0xb"} {
		require.NoError(t, f.store.Save(ctx, &entity.Position{Key: k, Size: amt(1)}))
	}

	page, err := f.svc.ListPositions(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Positions, 2)
	assert.Equal(t, "0xa", page.Positions[0].Key)
	assert.Equal(t, "0xb", page.NextAfter)
	assert.Nil(t, page.AsOf, "no checkpoint before the first event")

	page, err = f.svc.ListPositions(ctx, page.NextAfter, 2)
	require.NoError(t, err)
	require.Len(t, page.Positions, 1)
	assert.Equal(t, "0xc", page.Positions[0].Key)
	assert.Empty(t, page.NextAfter)
}

// ============================================================================
// Actions and transactions
// ============================================================================

func TestGetActionAndTransaction_FromEngine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	engine := core.NewEngine(f.store, 16, nil, nil, nil, zerolog.Nop())

	ref := event.Ref{TxHash: "0xtx", LogIndex: 4, BlockNumber: 9, BlockTimestamp: 1_700_000_000, TxFrom: "0xfrom"}
	require.NoError(t, engine.ProcessEvent(ctx, &event.StakeEddx{Ref: ref, Account: "0xacc", Token: config.EDDX, Amount: big.NewInt(5)}))

	action, err := f.svc.GetAction(ctx, "0xTX:4")
	require.NoError(t, err)
	assert.Equal(t, "StakeEddx", action.Action)
	assert.Equal(t, "0xacc", action.Account)
	assert.JSONEq(t, `{"account":"0xacc","token":"`+config.EDDX+`","amount":"5"}`, string(action.Params))

	tx, err := f.svc.GetTransaction(ctx, "0xtx")
	require.NoError(t, err)
	assert.Equal(t, int64(9), tx.BlockNumber)
	assert.Equal(t, "0xfrom", tx.From)

	_, err = f.svc.GetAction(ctx, "0xtx:5")
	assert.ErrorIs(t, err, query.ErrNotFound)
}

// ============================================================================
// Prices
// ============================================================================

func TestGetPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	resp, err := f.svc.GetPrice(ctx, config.WETH)
	require.NoError(t, err)
	assert.Equal(t, fpmath.Units(3350, fpmath.PriceConfig).String(), resp.Value)
	assert.Equal(t, "3350", resp.USD)
	assert.Equal(t, "WETH", resp.Symbol)

	// 3351.25 from the oracle at 8 decimals
	require.NoError(t, f.feed.Put(ctx, pricing.Snapshot{Source: pricing.SourceOracle, Token: config.WETH, Value: big.NewInt(335125000000), Timestamp: 1}))
	resp, err = f.svc.GetPrice(ctx, config.WETH)
	require.NoError(t, err)
	assert.Equal(t, "3351.25", resp.USD)

	_, err = f.svc.GetPrice(ctx, "0xunknown")
	assert.ErrorIs(t, err, query.ErrNotFound)
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "0", query.FormatUSD(nil))
	assert.Equal(t, "1.5", query.FormatUSD(fpmath.MustAmount("1500000000000000000000000000000")))
	assert.Equal(t, "-0.000000000000000000000000000001", query.FormatUSD(big.NewInt(-1)))
}

// ============================================================================
// Stats
// ============================================================================

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	id := entity.StatID(1699920000, "daily")
	require.NoError(t, f.store.Save(ctx, &entity.VolumeStat{
		ID: id, Period: "daily", Timestamp: 1699920000,
		Swap: entity.NewAmount(fpmath.Units(6700, fpmath.PriceConfig)), Margin: amt(0), Liquidation: amt(0), Mint: amt(0), Burn: amt(0),
	}))

	resp, err := f.svc.GetStats(ctx, "daily", 1700003723)
	require.NoError(t, err)
	assert.Equal(t, int64(1699920000), resp.BucketStart)
	require.NotNil(t, resp.Volume)
	assert.Equal(t, "6700", resp.VolumeUSD["swap"])
	assert.Nil(t, resp.Fees)
	assert.Nil(t, resp.FeesUSD)

	resp, err = f.svc.GetStats(ctx, "hourly", 1700003723)
	require.NoError(t, err)
	assert.Equal(t, int64(1700002800), resp.BucketStart)
	assert.Nil(t, resp.Volume)

	_, err = f.svc.GetStats(ctx, "monthly", 0)
	assert.ErrorIs(t, err, query.ErrInvalidArgument)
	assert.ErrorIs(t, err, fpmath.ErrUnsupportedPeriod)
}

// ============================================================================
// Archive
// ============================================================================

func TestListArchive(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t, nil).svc.ListArchive(ctx, event.Cursor{}, 10)
	assert.True(t, errors.Is(err, query.ErrUnavailable))

	archive := &fakeArchive{}
	page, err := newFixture(t, archive).svc.ListArchive(ctx, event.Cursor{BlockNumber: 1}, 5000)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, 1000, archive.limit, "page size is capped")
	assert.Equal(t, int64(1), archive.after.BlockNumber)
}
