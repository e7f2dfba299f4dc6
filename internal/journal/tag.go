package journal

import "fmt"

// Tag is the closed vocabulary of order action names.
type Tag int32

const (
	TagUnknown Tag = iota
	TagCreateIncreasePosition
	TagCreateDecreasePosition
	TagIncreasePosition
	TagDecreasePosition
	TagLiquidatePositionLong
	TagLiquidatePositionShort
	TagSwap
	TagBuyUSDG
	TagSellUSDG
	TagStakeEddx
	TagUnstakeEddx
	TagStakeElp
	TagUnstakeElp
)

func (t Tag) String() string {
	switch t {
	case TagCreateIncreasePosition:
		return "CreateIncreasePosition"
	case TagCreateDecreasePosition:
		return "CreateDecreasePosition"
	case TagIncreasePosition:
		return "IncreasePosition"
	case TagDecreasePosition:
		return "DecreasePosition"
	case TagLiquidatePositionLong:
		return "LiquidatePosition-Long"
	case TagLiquidatePositionShort:
		return "LiquidatePosition-Short"
	case TagSwap:
		return "Swap"
	case TagBuyUSDG:
		return "BuyUSDG"
	case TagSellUSDG:
		return "SellUSDG"
	case TagStakeEddx:
		return "StakeEddx"
	case TagUnstakeEddx:
		return "UnstakeEddx"
	case TagStakeElp:
		return "StakeElp"
	case TagUnstakeElp:
		return "UnstakeElp"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is a member of the vocabulary.
func (t Tag) Valid() bool {
	return t > TagUnknown && t <= TagUnstakeElp
}

// ParseTag maps a stored action name back to its Tag.
func ParseTag(s string) (Tag, error) {
	for t := TagCreateIncreasePosition; t <= TagUnstakeElp; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return TagUnknown, fmt.Errorf("unknown action tag %q", s)
}

// LiquidationTag picks the side-specific liquidation tag.
func LiquidationTag(isLong bool) Tag {
	if isLong {
		return TagLiquidatePositionLong
	}
	return TagLiquidatePositionShort
}
