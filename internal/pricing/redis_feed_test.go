package pricing_test

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFeed_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6380"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pricing.NewRedisClient(ctx, config.RedisConfig{Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("test redis not available: %v", err)
	}
	defer client.Close()

	prefix := "test-prices-" + time.Now().Format("150405.000000")
	defer client.Del(ctx, prefix+":chainlink", prefix+":amm")

	feed := pricing.NewRedisFeed(client, prefix)

	_, err = feed.Latest(ctx, pricing.SourceOracle, config.WETH)
	assert.ErrorIs(t, err, pricing.ErrNoSnapshot)

	require.NoError(t, feed.Put(ctx, pricing.Snapshot{Source: pricing.SourceOracle, Token: config.WETH, Value: big.NewInt(335_000_000_000)}))
	got, err := feed.Latest(ctx, pricing.SourceOracle, config.WETH)
	require.NoError(t, err)
	assert.Equal(t, int64(335_000_000_000), got.Int64())

	r := pricing.NewResolver(config.MustTokenTable(config.DefaultTokens()), feed, nil)
	price, err := r.ResolvePrice(ctx, config.WETH)
	require.NoError(t, err)
	assert.Equal(t, "3350000000000000000000000000000000", price.String())
}
