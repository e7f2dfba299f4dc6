package event

import "math/big"

// IncreasePosition is emitted by the Vault when a position is opened or
// grown. Monetary fields are 30-decimal USD.
type IncreasePosition struct {
	Ref
	Key             string
	Account         string
	CollateralToken string
	IndexToken      string
	CollateralDelta *big.Int
	SizeDelta       *big.Int
	IsLong          bool
	Price           *big.Int
	Fee             *big.Int
}

func (e *IncreasePosition) EventType() EventType { return EventTypeIncreasePosition }

// DecreasePosition mirrors IncreasePosition for reductions.
type DecreasePosition struct {
	Ref
	Key             string
	Account         string
	CollateralToken string
	IndexToken      string
	CollateralDelta *big.Int
	SizeDelta       *big.Int
	IsLong          bool
	Price           *big.Int
	Fee             *big.Int
}

func (e *DecreasePosition) EventType() EventType { return EventTypeDecreasePosition }

// LiquidatePosition is terminal for the position identified by Key.
type LiquidatePosition struct {
	Ref
	Key             string
	Account         string
	CollateralToken string
	IndexToken      string
	IsLong          bool
	Size            *big.Int
	Collateral      *big.Int
	ReserveAmount   *big.Int
	RealisedPnl     *big.Int
	MarkPrice       *big.Int
}

func (e *LiquidatePosition) EventType() EventType { return EventTypeLiquidatePosition }

// UpdatePosition is the generic snapshot the Vault emits after any
// mutation. It carries no account/token/side identity.
type UpdatePosition struct {
	Ref
	Key              string
	Size             *big.Int
	Collateral       *big.Int
	AveragePrice     *big.Int
	EntryFundingRate *big.Int
	ReserveAmount    *big.Int
	RealisedPnl      *big.Int
	MarkPrice        *big.Int
}

func (e *UpdatePosition) EventType() EventType { return EventTypeUpdatePosition }

// ClosePosition is terminal for the position identified by Key.
type ClosePosition struct {
	Ref
	Key              string
	Size             *big.Int
	Collateral       *big.Int
	AveragePrice     *big.Int
	EntryFundingRate *big.Int
	ReserveAmount    *big.Int
	RealisedPnl      *big.Int
}

func (e *ClosePosition) EventType() EventType { return EventTypeClosePosition }
