package event

import "fmt"

// EventType discriminator for protocol event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota

	// Vault
	EventTypeIncreasePosition
	EventTypeDecreasePosition
	EventTypeLiquidatePosition
	EventTypeUpdatePosition
	EventTypeClosePosition
	EventTypeSwap
	EventTypeCollectMarginFees
	EventTypeCollectSwapFees

	// PositionRouter
	EventTypeCreateIncreasePosition
	EventTypeCreateDecreasePosition

	// ElpManager
	EventTypeAddLiquidity
	EventTypeRemoveLiquidity

	// RewardRouter
	EventTypeStakeEddx
	EventTypeUnstakeEddx
	EventTypeStakeElp
	EventTypeUnstakeElp
)

var eventTypeNames = map[EventType]string{
	EventTypeIncreasePosition:       "IncreasePosition",
	EventTypeDecreasePosition:       "DecreasePosition",
	EventTypeLiquidatePosition:      "LiquidatePosition",
	EventTypeUpdatePosition:         "UpdatePosition",
	EventTypeClosePosition:          "ClosePosition",
	EventTypeSwap:                   "Swap",
	EventTypeCollectMarginFees:      "CollectMarginFees",
	EventTypeCollectSwapFees:        "CollectSwapFees",
	EventTypeCreateIncreasePosition: "CreateIncreasePosition",
	EventTypeCreateDecreasePosition: "CreateDecreasePosition",
	EventTypeAddLiquidity:           "AddLiquidity",
	EventTypeRemoveLiquidity:        "RemoveLiquidity",
	EventTypeStakeEddx:              "StakeEddx",
	EventTypeUnstakeEddx:            "UnstakeEddx",
	EventTypeStakeElp:               "StakeElp",
	EventTypeUnstakeElp:             "UnstakeElp",
}

func (et EventType) String() string {
	if name, ok := eventTypeNames[et]; ok {
		return name
	}
	return "Unknown"
}

// ParseEventType maps a wire name (as used in NATS subjects) to an EventType.
func ParseEventType(name string) (EventType, error) {
	for et, n := range eventTypeNames {
		if n == name {
			return et, nil
		}
	}
	return EventTypeUnknown, fmt.Errorf("unknown event type: %s", name)
}

// Ref is the envelope every protocol log carries. It is supplied by the
// upstream source and never modified.
type Ref struct {
	TxHash         string
	LogIndex       int64 // must be non-negative
	BlockNumber    int64
	BlockTimestamp int64 // unix seconds
	TxIndex        int64
	TxFrom         string
	TxTo           string // "" for contract creation
}

// Reference returns the envelope. Event structs embed Ref to satisfy Event.
func (r Ref) Reference() Ref { return r }

// Cursor returns the position of this log in the chain-wide total order.
func (r Ref) Cursor() Cursor {
	return Cursor{BlockNumber: r.BlockNumber, TxIndex: r.TxIndex, LogIndex: r.LogIndex}
}

// Event is the interface all protocol event payloads implement.
type Event interface {
	// Reference returns the log envelope
	Reference() Ref

	// EventType returns the discriminator
	EventType() EventType
}

// Cursor orders logs by (blockNumber, txIndex, logIndex).
type Cursor struct {
	BlockNumber int64 `json:"blockNumber"`
	TxIndex     int64 `json:"transactionIndex"`
	LogIndex    int64 `json:"logIndex"`
}

// Compare returns -1, 0 or +1 as c sorts before, equal to or after o.
func (c Cursor) Compare(o Cursor) int {
	switch {
	case c.BlockNumber != o.BlockNumber:
		return cmpInt64(c.BlockNumber, o.BlockNumber)
	case c.TxIndex != o.TxIndex:
		return cmpInt64(c.TxIndex, o.TxIndex)
	default:
		return cmpInt64(c.LogIndex, o.LogIndex)
	}
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d/%d/%d", c.BlockNumber, c.TxIndex, c.LogIndex)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
