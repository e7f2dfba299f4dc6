package event

import "math/big"

// Swap is a Vault token swap.
type Swap struct {
	Ref
	Account            string
	TokenIn            string
	TokenOut           string
	AmountIn           *big.Int
	AmountOut          *big.Int
	AmountOutAfterFees *big.Int
	FeeBasisPoints     *big.Int
}

func (e *Swap) EventType() EventType { return EventTypeSwap }

// CollectMarginFees reports margin fees taken in Token.
type CollectMarginFees struct {
	Ref
	Token     string
	FeeUsd    *big.Int
	FeeTokens *big.Int
}

func (e *CollectMarginFees) EventType() EventType { return EventTypeCollectMarginFees }

// CollectSwapFees reports swap fees taken in Token.
type CollectSwapFees struct {
	Ref
	Token     string
	FeeUsd    *big.Int
	FeeTokens *big.Int
}

func (e *CollectSwapFees) EventType() EventType { return EventTypeCollectSwapFees }
