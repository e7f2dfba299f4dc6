// Package projection maintains period-bucketed aggregates derived from
// the event stream.
package projection

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	fpmath "PerpIndexer/internal/math"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/store"
)

// Valuer converts raw token amounts to 30-decimal USD.
type Valuer interface {
	USDValueOf(ctx context.Context, token string, amount *big.Int) (*big.Int, error)
}

// VolumeField selects the VolumeStat column an event contributes to.
type VolumeField int32

const (
	VolumeSwap VolumeField = iota + 1
	VolumeMargin
	VolumeLiquidation
	VolumeMint
	VolumeBurn
)

func (f VolumeField) String() string {
	switch f {
	case VolumeSwap:
		return "swap"
	case VolumeMargin:
		return "margin"
	case VolumeLiquidation:
		return "liquidation"
	case VolumeMint:
		return "mint"
	case VolumeBurn:
		return "burn"
	default:
		return "unknown"
	}
}

// FeeField selects the FeeStat column.
type FeeField int32

const (
	FeeSwap FeeField = iota + 1
	FeeMargin
)

func (f FeeField) String() string {
	switch f {
	case FeeSwap:
		return "swap"
	case FeeMargin:
		return "margin"
	default:
		return "unknown"
	}
}

// StatsProjector accumulates USD volume and fees into one bucket per
// configured period. It runs inline in the core so totals follow event
// order exactly.
// Not thread-safe: only accessed from the single-threaded core.
type StatsProjector struct {
	store   store.Store
	valuer  Valuer
	periods []fpmath.Period
	metrics *observability.Metrics
}

func NewStatsProjector(s store.Store, valuer Valuer, periods []fpmath.Period, metrics *observability.Metrics) *StatsProjector {
	return &StatsProjector{store: s, valuer: valuer, periods: periods, metrics: metrics}
}

// Apply folds evt into the stats buckets. Events that carry no volume or
// fee are ignored. Valuation failures (ErrUnsupportedToken) are returned
// unchanged so the caller halts.
func (p *StatsProjector) Apply(ctx context.Context, evt event.Event) error {
	ts := evt.Reference().BlockTimestamp

	switch e := evt.(type) {
	case *event.Swap:
		usd, err := p.valuer.USDValueOf(ctx, e.TokenIn, e.AmountIn)
		if err != nil {
			return fmt.Errorf("swap volume: %w", err)
		}
		return p.AddVolume(ctx, ts, VolumeSwap, usd)

	case *event.IncreasePosition:
		return p.AddVolume(ctx, ts, VolumeMargin, e.SizeDelta)

	case *event.DecreasePosition:
		return p.AddVolume(ctx, ts, VolumeMargin, e.SizeDelta)

	case *event.LiquidatePosition:
		return p.AddVolume(ctx, ts, VolumeLiquidation, e.Size)

	case *event.AddLiquidity:
		usd, err := p.valuer.USDValueOf(ctx, e.Token, e.Amount)
		if err != nil {
			return fmt.Errorf("mint volume: %w", err)
		}
		return p.AddVolume(ctx, ts, VolumeMint, usd)

	case *event.RemoveLiquidity:
		usd, err := p.valuer.USDValueOf(ctx, e.Token, e.AmountOut)
		if err != nil {
			return fmt.Errorf("burn volume: %w", err)
		}
		return p.AddVolume(ctx, ts, VolumeBurn, usd)

	case *event.CollectMarginFees:
		return p.AddFee(ctx, ts, FeeMargin, e.FeeUsd)

	case *event.CollectSwapFees:
		return p.AddFee(ctx, ts, FeeSwap, e.FeeUsd)
	}
	return nil
}

// AddVolume adds usd to field in every period bucket containing ts.
func (p *StatsProjector) AddVolume(ctx context.Context, ts int64, field VolumeField, usd *big.Int) error {
	for _, period := range p.periods {
		bucket, err := period.Bucket(ts)
		if err != nil {
			return err
		}
		id := entity.StatID(bucket, period.String())

		stat, err := store.LoadAs[*entity.VolumeStat](ctx, p.store, entity.KindVolumeStat, id)
		if errors.Is(err, store.ErrNotFound) {
			stat = newVolumeStat(id, period, bucket)
		} else if err != nil {
			return fmt.Errorf("load volume stat %s: %w", id, err)
		}

		switch field {
		case VolumeSwap:
			stat.Swap.Add(usd)
		case VolumeMargin:
			stat.Margin.Add(usd)
		case VolumeLiquidation:
			stat.Liquidation.Add(usd)
		case VolumeMint:
			stat.Mint.Add(usd)
		case VolumeBurn:
			stat.Burn.Add(usd)
		default:
			panic(fmt.Sprintf("FATAL: unknown volume field %d", field))
		}

		if err := p.store.Save(ctx, stat); err != nil {
			return fmt.Errorf("save volume stat %s: %w", id, err)
		}
		p.observe("volume", period)
	}
	return nil
}

// AddFee adds usd to field in every period bucket containing ts.
func (p *StatsProjector) AddFee(ctx context.Context, ts int64, field FeeField, usd *big.Int) error {
	for _, period := range p.periods {
		bucket, err := period.Bucket(ts)
		if err != nil {
			return err
		}
		id := entity.StatID(bucket, period.String())

		stat, err := store.LoadAs[*entity.FeeStat](ctx, p.store, entity.KindFeeStat, id)
		if errors.Is(err, store.ErrNotFound) {
			stat = newFeeStat(id, period, bucket)
		} else if err != nil {
			return fmt.Errorf("load fee stat %s: %w", id, err)
		}

		switch field {
		case FeeSwap:
			stat.Swap.Add(usd)
		case FeeMargin:
			stat.Margin.Add(usd)
		default:
			panic(fmt.Sprintf("FATAL: unknown fee field %d", field))
		}

		if err := p.store.Save(ctx, stat); err != nil {
			return fmt.Errorf("save fee stat %s: %w", id, err)
		}
		p.observe("fee", period)
	}
	return nil
}

func (p *StatsProjector) observe(stat string, period fpmath.Period) {
	if p.metrics != nil {
		p.metrics.StatsUpdates.WithLabelValues(stat, period.String()).Inc()
	}
}

func zero() *entity.Amount { return entity.NewAmount(new(big.Int)) }

func newVolumeStat(id string, period fpmath.Period, bucket int64) *entity.VolumeStat {
	return &entity.VolumeStat{
		ID:          id,
		Period:      period.String(),
		Timestamp:   bucket,
		Swap:        zero(),
		Margin:      zero(),
		Liquidation: zero(),
		Mint:        zero(),
		Burn:        zero(),
	}
}

func newFeeStat(id string, period fpmath.Period, bucket int64) *entity.FeeStat {
	return &entity.FeeStat{
		ID:        id,
		Period:    period.String(),
		Timestamp: bucket,
		Swap:      zero(),
		Margin:    zero(),
	}
}
