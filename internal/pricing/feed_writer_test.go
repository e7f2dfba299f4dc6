package pricing_test

import (
	"context"
	"math/big"
	"testing"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedWriter_OverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	feed := pricing.NewStoreFeed(store.NewMemoryStore())
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	w := pricing.NewFeedWriter(feed, metrics, zerolog.Nop())

	require.NoError(t, w.Apply(ctx, pricing.Snapshot{Source: pricing.SourceOracle, Token: config.WETH, Value: big.NewInt(100), Timestamp: 1}))
	require.NoError(t, w.Apply(ctx, pricing.Snapshot{Source: pricing.SourceOracle, Token: config.WETH, Value: big.NewInt(90), Timestamp: 2}))

	got, err := feed.Latest(ctx, pricing.SourceOracle, config.WETH)
	require.NoError(t, err)
	assert.Equal(t, "90", got.String())
	assert.Equal(t, 2.0, ptestutil.ToFloat64(metrics.PriceFeedUpdates.WithLabelValues("chainlink")))
}

func TestFeedWriter_RejectsEmptyTokenAndNegativeValue(t *testing.T) {
	ctx := context.Background()
	w := pricing.NewFeedWriter(pricing.NewStoreFeed(store.NewMemoryStore()), nil, zerolog.Nop())

	assert.Error(t, w.Apply(ctx, pricing.Snapshot{Source: pricing.SourceAMM, Value: big.NewInt(1)}))
	assert.Error(t, w.Apply(ctx, pricing.Snapshot{Source: pricing.SourceAMM, Token: config.EDDX, Value: big.NewInt(-1)}))
}
