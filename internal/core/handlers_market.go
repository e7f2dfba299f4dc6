package core

import (
	"context"
	"math/big"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/journal"
)

func (e *Engine) handleSwap(ctx context.Context, ev *event.Swap, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.Swap{
		ID:                 IdentityOf(ev.Ref),
		Account:            ev.Account,
		TokenIn:            ev.TokenIn,
		TokenOut:           ev.TokenOut,
		AmountIn:           entity.NewAmount(ev.AmountIn),
		AmountOut:          entity.NewAmount(ev.AmountOut),
		AmountOutAfterFees: entity.NewAmount(ev.AmountOutAfterFees),
		FeeBasisPoints:     entity.NewAmount(ev.FeeBasisPoints),
		Origin:             origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("account", ev.Account).
		Str("tokenIn", ev.TokenIn).
		Str("tokenOut", ev.TokenOut).
		Int("amountIn", ev.AmountIn).
		Int("amountOut", ev.AmountOut).
		Int("amountOutAfterFees", ev.AmountOutAfterFees).
		Int("feeBasisPoints", ev.FeeBasisPoints)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagSwap, params, out)
}

// handleCollectFees stores a fee record. Fees produce no order action.
func (e *Engine) handleCollectFees(ctx context.Context, kind entity.Kind, ref event.Ref, token string, feeUsd, feeTokens *big.Int, origin entity.Origin, out *CoreOutput) error {
	rec := entity.NewCollectFees(kind)
	rec.ID = IdentityOf(ref)
	rec.Token = token
	rec.FeeUsd = entity.NewAmount(feeUsd)
	rec.FeeTokens = entity.NewAmount(feeTokens)
	rec.Origin = origin
	return e.save(ctx, rec, out)
}

func (e *Engine) handleAddLiquidity(ctx context.Context, ev *event.AddLiquidity, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.AddLiquidity{
		ID:         IdentityOf(ev.Ref),
		Account:    ev.Account,
		Token:      ev.Token,
		Amount:     entity.NewAmount(ev.Amount),
		AumInUsdg:  entity.NewAmount(ev.AumInUsdg),
		ElpSupply:  entity.NewAmount(ev.ElpSupply),
		UsdgAmount: entity.NewAmount(ev.UsdgAmount),
		MintAmount: entity.NewAmount(ev.MintAmount),
		Origin:     origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("account", ev.Account).
		Str("token", ev.Token).
		Int("amount", ev.Amount).
		Int("aumInUsdg", ev.AumInUsdg).
		Int("elpSupply", ev.ElpSupply).
		Int("usdgAmount", ev.UsdgAmount).
		Int("mintAmount", ev.MintAmount)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagBuyUSDG, params, out)
}

func (e *Engine) handleRemoveLiquidity(ctx context.Context, ev *event.RemoveLiquidity, origin entity.Origin, out *CoreOutput) error {
	rec := &entity.RemoveLiquidity{
		ID:         IdentityOf(ev.Ref),
		Account:    ev.Account,
		Token:      ev.Token,
		ElpAmount:  entity.NewAmount(ev.ElpAmount),
		AumInUsdg:  entity.NewAmount(ev.AumInUsdg),
		ElpSupply:  entity.NewAmount(ev.ElpSupply),
		UsdgAmount: entity.NewAmount(ev.UsdgAmount),
		AmountOut:  entity.NewAmount(ev.AmountOut),
		Origin:     origin,
	}
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().
		Str("account", ev.Account).
		Str("token", ev.Token).
		Int("elpAmount", ev.ElpAmount).
		Int("aumInUsdg", ev.AumInUsdg).
		Int("elpSupply", ev.ElpSupply).
		Int("usdgAmount", ev.UsdgAmount).
		Int("amountOut", ev.AmountOut)
	return e.record(ctx, ev.Ref, ev.Account, journal.TagSellUSDG, params, out)
}

// handleStake covers the four RewardRouter events. token is empty for ELP.
func (e *Engine) handleStake(ctx context.Context, kind entity.Kind, tag journal.Tag, ref event.Ref, account, token string, amount *big.Int, origin entity.Origin, out *CoreOutput) error {
	rec := entity.NewStake(kind)
	rec.ID = IdentityOf(ref)
	rec.Account = account
	rec.Token = token
	rec.Amount = entity.NewAmount(amount)
	rec.Origin = origin
	if err := e.save(ctx, rec, out); err != nil {
		return err
	}

	params := journal.NewParams().Str("account", account)
	if token != "" {
		params.Str("token", token)
	}
	params.Int("amount", amount)
	return e.record(ctx, ref, account, tag, params, out)
}
