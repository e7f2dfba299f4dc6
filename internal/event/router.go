package event

import "math/big"

// CreateIncreasePosition is a PositionRouter request. Path is the swap
// route; its last element is the collateral token.
type CreateIncreasePosition struct {
	Ref
	Account         string
	Path            []string
	IndexToken      string
	AmountIn        *big.Int
	MinOut          *big.Int
	SizeDelta       *big.Int
	IsLong          bool
	AcceptablePrice *big.Int
	ExecutionFee    *big.Int
}

func (e *CreateIncreasePosition) EventType() EventType { return EventTypeCreateIncreasePosition }

// CollateralToken returns the last path element, or "" for an empty path.
func (e *CreateIncreasePosition) CollateralToken() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[len(e.Path)-1]
}

// CreateDecreasePosition is a PositionRouter request. Path starts at the
// collateral token being withdrawn.
type CreateDecreasePosition struct {
	Ref
	Account         string
	Path            []string
	IndexToken      string
	CollateralDelta *big.Int
	SizeDelta       *big.Int
	IsLong          bool
	Receiver        string
	AcceptablePrice *big.Int
	MinOut          *big.Int
	ExecutionFee    *big.Int
}

func (e *CreateDecreasePosition) EventType() EventType { return EventTypeCreateDecreasePosition }

// CollateralToken returns the first path element, or "" for an empty path.
func (e *CreateDecreasePosition) CollateralToken() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[0]
}
