package core

import (
	"context"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/journal"
	"PerpIndexer/internal/state"
)

func (e *Engine) handleIncreasePosition(ctx context.Context, ev *event.IncreasePosition, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.IncreasePosition{
		ID:              IdentityOf(ev.Ref),
		Key:             ev.Key,
		Account:         ev.Account,
		CollateralToken: ev.CollateralToken,
		IndexToken:      ev.IndexToken,
		CollateralDelta: entity.NewAmount(ev.CollateralDelta),
		SizeDelta:       entity.NewAmount(ev.SizeDelta),
		IsLong:          ev.IsLong,
		Price:           entity.NewAmount(ev.Price),
		Fee:             entity.NewAmount(ev.Fee),
		Origin:          origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("key", ev.Key).
		Str("account", ev.Account).
		Str("collateralToken", ev.CollateralToken).
		Str("indexToken", ev.IndexToken).
		Int("collateralDelta", ev.CollateralDelta).
		Int("sizeDelta", ev.SizeDelta).
		Bool("isLong", ev.IsLong).
		Int("price", ev.Price).
		Int("fee", ev.Fee)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagIncreasePosition, params, out)
}

func (e *Engine) handleDecreasePosition(ctx context.Context, ev *event.DecreasePosition, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.DecreasePosition{
		ID:              IdentityOf(ev.Ref),
		Key:             ev.Key,
		Account:         ev.Account,
		CollateralToken: ev.CollateralToken,
		IndexToken:      ev.IndexToken,
		CollateralDelta: entity.NewAmount(ev.CollateralDelta),
		SizeDelta:       entity.NewAmount(ev.SizeDelta),
		IsLong:          ev.IsLong,
		Price:           entity.NewAmount(ev.Price),
		Fee:             entity.NewAmount(ev.Fee),
		Origin:          origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("key", ev.Key).
		Str("account", ev.Account).
		Str("collateralToken", ev.CollateralToken).
		Str("indexToken", ev.IndexToken).
		Int("collateralDelta", ev.CollateralDelta).
		Int("sizeDelta", ev.SizeDelta).
		Bool("isLong", ev.IsLong).
		Int("price", ev.Price).
		Int("fee", ev.Fee)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagDecreasePosition, params, out)
}

// handleLiquidatePosition stores the record, appends the side-specific
// action and removes the ledger row. The row is removed by position key,
// the same as for ClosePosition.
func (e *Engine) handleLiquidatePosition(ctx context.Context, ev *event.LiquidatePosition, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.LiquidatePosition{
		ID:              IdentityOf(ev.Ref),
		Key:             ev.Key,
		Account:         ev.Account,
		CollateralToken: ev.CollateralToken,
		IndexToken:      ev.IndexToken,
		IsLong:          ev.IsLong,
		Size:            entity.NewAmount(ev.Size),
		Collateral:      entity.NewAmount(ev.Collateral),
		ReserveAmount:   entity.NewAmount(ev.ReserveAmount),
		RealisedPnl:     entity.NewAmount(ev.RealisedPnl),
		MarkPrice:       entity.NewAmount(ev.MarkPrice),
		Origin:          origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("key", ev.Key).
		Str("collateralToken", ev.CollateralToken).
		Str("indexToken", ev.IndexToken).
		Bool("isLong", ev.IsLong).
		Int("size", ev.Size).
		Int("collateral", ev.Collateral).
		Int("reserveAmount", ev.ReserveAmount).
		Int("markPrice", ev.MarkPrice)
	if err := e.record(ctx, ev.Ref, ev.Account, journal.LiquidationTag(ev.IsLong), params, out); err != nil {
		return err
	}

	return e.removePosition(ctx, ev.Key, out)
}

// handleUpdatePosition upserts the ledger row. A row created without a
// sibling IncreasePosition keeps its identity fields unset. Replays skip
// the ledger.
func (e *Engine) handleUpdatePosition(ctx context.Context, ev *event.UpdatePosition, origin entity.Origin, out *CoreOutput) error {
	if out.Replay {
		return nil
	}
	transition, row, err := e.ledger.ApplyUpdate(ctx, ev, origin, SiblingBefore(ev.Ref))
	if err != nil {
		return err
	}
	e.observeTransition(transition)

	if transition == state.TransitionCreated && !row.Correlated() {
		if e.metrics != nil {
			e.metrics.CorrelationMisses.Inc()
		}
		e.logger.Debug().
			Str("event_id", IdentityOf(ev.Ref)).
			Str("event_type", ev.EventType().String()).
			Str("key", ev.Key).
			Str("sibling", SiblingBefore(ev.Ref)).
			Msg("position opened without sibling increase")
	}
	out.add(row)
	return nil
}

func (e *Engine) handleClosePosition(ctx context.Context, ev *event.ClosePosition, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.ClosePosition{
		ID:               IdentityOf(ev.Ref),
		Key:              ev.Key,
		Size:             entity.NewAmount(ev.Size),
		Collateral:       entity.NewAmount(ev.Collateral),
		AveragePrice:     entity.NewAmount(ev.AveragePrice),
		EntryFundingRate: entity.NewAmount(ev.EntryFundingRate),
		ReserveAmount:    entity.NewAmount(ev.ReserveAmount),
		RealisedPnl:      entity.NewAmount(ev.RealisedPnl),
		Origin:           origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}
	return e.removePosition(ctx, ev.Key, out)
}

func (e *Engine) removePosition(ctx context.Context, key string, out *CoreOutput) error {
	if out.Replay {
		return nil
	}
	transition, err := e.ledger.Remove(ctx, key)
	if err != nil {
		return err
	}
	e.observeTransition(transition)
	if transition == state.TransitionRemoved {
		out.Removed = append(out.Removed, RemovedKey{Kind: entity.KindPosition, ID: key})
	}
	return nil
}

func (e *Engine) handleCreateIncreasePosition(ctx context.Context, ev *event.CreateIncreasePosition, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.CreateIncreasePosition{
		ID:              IdentityOf(ev.Ref),
		Account:         ev.Account,
		CollateralToken: ev.CollateralToken(),
		IndexToken:      ev.IndexToken,
		SizeDelta:       entity.NewAmount(ev.SizeDelta),
		AmountIn:        entity.NewAmount(ev.AmountIn),
		IsLong:          ev.IsLong,
		AcceptablePrice: entity.NewAmount(ev.AcceptablePrice),
		ExecutionFee:    entity.NewAmount(ev.ExecutionFee),
		Origin:          origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("account", ev.Account).
		Str("collateralToken", rec.CollateralToken).
		Str("indexToken", ev.IndexToken).
		Int("sizeDelta", ev.SizeDelta).
		Int("amountIn", ev.AmountIn).
		Bool("isLong", ev.IsLong).
		Int("acceptablePrice", ev.AcceptablePrice).
		Int("executionFee", ev.ExecutionFee)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagCreateIncreasePosition, params, out)
}

func (e *Engine) handleCreateDecreasePosition(ctx context.Context, ev *event.CreateDecreasePosition, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.CreateDecreasePosition{
		ID:              IdentityOf(ev.Ref),
		Account:         ev.Account,
		CollateralToken: ev.CollateralToken(),
		IndexToken:      ev.IndexToken,
		SizeDelta:       entity.NewAmount(ev.SizeDelta),
		IsLong:          ev.IsLong,
		AcceptablePrice: entity.NewAmount(ev.AcceptablePrice),
		ExecutionFee:    entity.NewAmount(ev.ExecutionFee),
		Origin:          origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("account", ev.Account).
		Str("collateralToken", rec.CollateralToken).
		Str("indexToken", ev.IndexToken).
		Int("sizeDelta", ev.SizeDelta).
		Bool("isLong", ev.IsLong).
		Int("acceptablePrice", ev.AcceptablePrice).
		Int("executionFee", ev.ExecutionFee)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagCreateDecreasePosition, params, out)
}
