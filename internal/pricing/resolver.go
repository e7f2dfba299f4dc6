package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"PerpIndexer/internal/config"
	fpmath "PerpIndexer/internal/math"
	"PerpIndexer/internal/observability"
)

// ErrUnsupportedToken means the token has no decimals entry, or no price
// in any fallback tier. Valuing it as zero would corrupt analytics, so
// callers treat it as fatal.
var ErrUnsupportedToken = errors.New("unsupported token")

// Resolver returns 30-decimal USD prices through an ordered fallback chain:
//
//  1. non-reward token: oracle snapshot × 10^22
//  2. reward token: AMM snapshot, already 30-decimal
//  3. the token table's default price
type Resolver struct {
	tokens  *config.TokenTable
	feed    Feed
	metrics *observability.Metrics
}

func NewResolver(tokens *config.TokenTable, feed Feed, metrics *observability.Metrics) *Resolver {
	return &Resolver{tokens: tokens, feed: feed, metrics: metrics}
}

// ResolvePrice returns the token's price in 30-decimal USD.
func (r *Resolver) ResolvePrice(ctx context.Context, token string) (*big.Int, error) {
	token = config.NormalizeAddress(token)

	if r.tokens.IsRewardToken(token) {
		v, err := r.feed.Latest(ctx, SourceAMM, token)
		if err == nil {
			r.observe("amm")
			return v, nil
		}
		if !errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
	} else {
		v, err := r.feed.Latest(ctx, SourceOracle, token)
		if err == nil {
			r.observe("oracle")
			return fpmath.Rescale(v, fpmath.OracleConfig, fpmath.PriceConfig), nil
		}
		if !errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
	}

	if v, ok := r.tokens.DefaultPrice(token); ok {
		r.observe("default")
		return v, nil
	}

	r.observe("unsupported")
	return nil, fmt.Errorf("%w: no price for %s", ErrUnsupportedToken, token)
}

// USDValueOf converts a raw token amount to 30-decimal USD:
// amount * price / 10^decimals, truncated toward zero.
func (r *Resolver) USDValueOf(ctx context.Context, token string, amount *big.Int) (*big.Int, error) {
	decimals, ok := r.tokens.Decimals(token)
	if !ok {
		r.observe("unsupported")
		return nil, fmt.Errorf("%w: no decimals for %s", ErrUnsupportedToken, token)
	}
	price, err := r.ResolvePrice(ctx, token)
	if err != nil {
		return nil, err
	}
	return fpmath.MulDiv(amount, price, fpmath.Pow10(decimals)), nil
}

func (r *Resolver) observe(tier string) {
	if r.metrics != nil {
		r.metrics.PriceResolutions.WithLabelValues(tier).Inc()
	}
}
