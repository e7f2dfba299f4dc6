package pricing_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"PerpIndexer/internal/config"
	fpmath "PerpIndexer/internal/math"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, tokens []config.Token) (*pricing.Resolver, *pricing.StoreFeed) {
	t.Helper()
	feed := pricing.NewStoreFeed(store.NewMemoryStore())
	return pricing.NewResolver(config.MustTokenTable(tokens), feed, nil), feed
}

func mustPut(t *testing.T, feed pricing.Feed, source pricing.Source, token string, value *big.Int) {
	t.Helper()
	require.NoError(t, feed.Put(context.Background(), pricing.Snapshot{Source: source, Token: token, Value: value, Timestamp: 1}))
}

// ============================================================================
// Test: fallback ordering
// ============================================================================

func TestResolvePrice_OracleRescaledBeforeDefault(t *testing.T) {
	r, feed := newResolver(t, config.DefaultTokens())
	// $3400.5 at 8 decimals
	mustPut(t, feed, pricing.SourceOracle, config.WETH, big.NewInt(340_050_000_000))

	got, err := r.ResolvePrice(context.Background(), config.WETH)
	require.NoError(t, err)

	want := new(big.Int).Mul(big.NewInt(340_050_000_000), fpmath.Pow10(22))
	assert.Equal(t, 0, got.Cmp(want), "got %s, want %s", got, want)
}

func TestResolvePrice_RewardTokenUsesAMMAsIs(t *testing.T) {
	r, feed := newResolver(t, config.DefaultTokens())
	amm := fpmath.MustAmount("31250000000000000000000000000000") // $31.25
	mustPut(t, feed, pricing.SourceAMM, config.EDDX, amm)

	// An oracle snapshot for the reward token must be ignored
	mustPut(t, feed, pricing.SourceOracle, config.EDDX, big.NewInt(1))

	got, err := r.ResolvePrice(context.Background(), config.EDDX)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(amm))
}

func TestResolvePrice_NonRewardIgnoresAMM(t *testing.T) {
	r, feed := newResolver(t, config.DefaultTokens())
	mustPut(t, feed, pricing.SourceAMM, config.BTC, big.NewInt(1))

	got, err := r.ResolvePrice(context.Background(), config.BTC)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(fpmath.Units(45000, fpmath.PriceConfig)))
}

func TestResolvePrice_DefaultsWithoutSnapshots(t *testing.T) {
	r, _ := newResolver(t, config.DefaultTokens())
	ctx := context.Background()

	want := map[string]int64{
		config.WETH: 3350, config.BTC: 45000, config.LINK: 25,
		config.USDC: 1, config.USDT: 1, config.DAI: 1, config.EDDX: 30,
	}
	for token, usd := range want {
		got, err := r.ResolvePrice(ctx, token)
		require.NoError(t, err, token)
		assert.Equal(t, 0, got.Cmp(fpmath.Units(usd, fpmath.PriceConfig)), token)
	}
}

func TestResolvePrice_ZeroDefaultIsFound(t *testing.T) {
	r, _ := newResolver(t, []config.Token{{Address: "0xdead", Decimals: 18, DefaultPrice: big.NewInt(0)}})

	got, err := r.ResolvePrice(context.Background(), "0xdead")
	require.NoError(t, err, "present-with-zero must not be reported as missing")
	assert.Equal(t, 0, got.Sign())
}

func TestResolvePrice_UnsupportedToken(t *testing.T) {
	r, _ := newResolver(t, config.DefaultTokens())

	_, err := r.ResolvePrice(context.Background(), "0x0000000000000000000000000000000000000bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pricing.ErrUnsupportedToken))
}

func TestResolvePrice_OracleForUnlistedToken(t *testing.T) {
	r, feed := newResolver(t, config.DefaultTokens())
	mustPut(t, feed, pricing.SourceOracle, "0xnew", big.NewInt(100_000_000))

	got, err := r.ResolvePrice(context.Background(), "0xNEW")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(fpmath.Units(1, fpmath.PriceConfig)))
}

func TestResolvePrice_LatestSnapshotWins(t *testing.T) {
	r, feed := newResolver(t, config.DefaultTokens())
	mustPut(t, feed, pricing.SourceOracle, config.LINK, big.NewInt(2_000_000_000))
	mustPut(t, feed, pricing.SourceOracle, config.LINK, big.NewInt(2_100_000_000))

	got, err := r.ResolvePrice(context.Background(), config.LINK)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(fpmath.Units(21, fpmath.PriceConfig)))
}

// ============================================================================
// Test: USD conversion
// ============================================================================

func TestUSDValueOf_OneWholeToken(t *testing.T) {
	r, _ := newResolver(t, config.DefaultTokens())

	got, err := r.USDValueOf(context.Background(), config.WETH, fpmath.Pow10(18))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(fpmath.Units(3350, fpmath.PriceConfig)))
}

func TestUSDValueOf_Truncates(t *testing.T) {
	r, _ := newResolver(t, []config.Token{{Address: "0xcheap", Decimals: 18, DefaultPrice: big.NewInt(1)}})

	got, err := r.USDValueOf(context.Background(), "0xcheap", big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Sign(), "1 * 1 / 10^18 truncates to zero")

	got, err = r.USDValueOf(context.Background(), "0xcheap", fpmath.MustAmount("2999999999999999999"))
	require.NoError(t, err)
	assert.Equal(t, "2", got.String())
}

func TestUSDValueOf_RespectsDecimals(t *testing.T) {
	r, _ := newResolver(t, []config.Token{{Address: "0xsix", Decimals: 6, DefaultPrice: fpmath.Units(2, fpmath.PriceConfig)}})

	got, err := r.USDValueOf(context.Background(), "0xsix", big.NewInt(1_500_000)) // 1.5 tokens
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(fpmath.Units(3, fpmath.PriceConfig)))
}

func TestUSDValueOf_MissingDecimals(t *testing.T) {
	r, feed := newResolver(t, config.DefaultTokens())
	// A price alone is not enough without a decimals entry
	mustPut(t, feed, pricing.SourceOracle, "0xnew", big.NewInt(100_000_000))

	_, err := r.USDValueOf(context.Background(), "0xnew", big.NewInt(1))
	assert.ErrorIs(t, err, pricing.ErrUnsupportedToken)
}

// ============================================================================
// Test: feed
// ============================================================================

func TestStoreFeed_RejectsNegative(t *testing.T) {
	feed := pricing.NewStoreFeed(store.NewMemoryStore())
	err := feed.Put(context.Background(), pricing.Snapshot{Source: pricing.SourceOracle, Token: "0x1", Value: big.NewInt(-1)})
	assert.Error(t, err)

	_, err = feed.Latest(context.Background(), pricing.SourceOracle, "0x1")
	assert.ErrorIs(t, err, pricing.ErrNoSnapshot)
}

func TestParseSource(t *testing.T) {
	s, err := pricing.ParseSource("chainlink")
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceOracle, s)

	s, err = pricing.ParseSource("amm")
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceAMM, s)

	_, err = pricing.ParseSource("binance")
	assert.Error(t, err)
}
