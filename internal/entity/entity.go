// Package entity defines the derived records the indexer stores, keyed by
// (Kind, ID).
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// Kind names a stored record type.
type Kind string

const (
	KindTransaction            Kind = "Transaction"
	KindPosition               Kind = "UpdatePosition"
	KindIncreasePosition       Kind = "IncreasePosition"
	KindDecreasePosition       Kind = "DecreasePosition"
	KindLiquidatePosition      Kind = "LiquidatePosition"
	KindClosePosition          Kind = "ClosePosition"
	KindCreateIncreasePosition Kind = "CreateIncreasePosition"
	KindCreateDecreasePosition Kind = "CreateDecreasePosition"
	KindSwap                   Kind = "Swap"
	KindCollectMarginFees      Kind = "CollectMarginFees"
	KindCollectSwapFees        Kind = "CollectSwapFees"
	KindAddLiquidity           Kind = "AddLiquidity"
	KindRemoveLiquidity        Kind = "RemoveLiquidity"
	KindStakeEddx              Kind = "StakeEddx"
	KindUnstakeEddx            Kind = "UnstakeEddx"
	KindStakeElp               Kind = "StakeElp"
	KindUnstakeElp             Kind = "UnstakeElp"
	KindOrderAction            Kind = "OrderAction"
	KindChainlinkPrice         Kind = "ChainlinkPrice"
	KindUniswapPrice           Kind = "UniswapPrice"
	KindVolumeStat             Kind = "VolumeStat"
	KindFeeStat                Kind = "FeeStat"
	KindCheckpoint             Kind = "Checkpoint"
)

// Entity is a storable record.
type Entity interface {
	Kind() Kind
	EntityID() string
}

// New returns an empty record of kind, ready to be decoded into.
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindTransaction:
		return &Transaction{}, nil
	case KindPosition:
		return &Position{}, nil
	case KindIncreasePosition:
		return &IncreasePosition{}, nil
	case KindDecreasePosition:
		return &DecreasePosition{}, nil
	case KindLiquidatePosition:
		return &LiquidatePosition{}, nil
	case KindClosePosition:
		return &ClosePosition{}, nil
	case KindCreateIncreasePosition:
		return &CreateIncreasePosition{}, nil
	case KindCreateDecreasePosition:
		return &CreateDecreasePosition{}, nil
	case KindSwap:
		return &Swap{}, nil
	case KindCollectMarginFees:
		return &CollectFees{kind: KindCollectMarginFees}, nil
	case KindCollectSwapFees:
		return &CollectFees{kind: KindCollectSwapFees}, nil
	case KindAddLiquidity:
		return &AddLiquidity{}, nil
	case KindRemoveLiquidity:
		return &RemoveLiquidity{}, nil
	case KindStakeEddx, KindUnstakeEddx, KindStakeElp, KindUnstakeElp:
		return &Stake{kind: kind}, nil
	case KindOrderAction:
		return &OrderAction{}, nil
	case KindChainlinkPrice:
		return &PriceSnapshot{kind: KindChainlinkPrice}, nil
	case KindUniswapPrice:
		return &PriceSnapshot{kind: KindUniswapPrice}, nil
	case KindVolumeStat:
		return &VolumeStat{}, nil
	case KindFeeStat:
		return &FeeStat{}, nil
	case KindCheckpoint:
		return &Checkpoint{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}
}

// Encode serializes a record for storage or publishing.
func Encode(e Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", e.Kind(), e.EntityID(), err)
	}
	return data, nil
}

// Decode restores a record of kind from its encoded form.
func Decode(kind Kind, data []byte) (Entity, error) {
	e, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return e, nil
}

// Origin ties a per-event record to the log that produced it.
type Origin struct {
	Transaction string `json:"transaction"`
	LogIndex    int64  `json:"logIndex"`
	Timestamp   int64  `json:"timestamp"`
}

// Amount is an unbounded integer serialized as a base-10 JSON string so
// consumers never round it through a float.
type Amount struct {
	v big.Int
}

// NewAmount copies v. A nil v yields nil.
func NewAmount(v *big.Int) *Amount {
	if v == nil {
		return nil
	}
	a := &Amount{}
	a.v.Set(v)
	return a
}

// Big returns a copy of the value, or nil for a nil Amount.
func (a *Amount) Big() *big.Int {
	if a == nil {
		return nil
	}
	return new(big.Int).Set(&a.v)
}

func (a *Amount) String() string {
	if a == nil {
		return "<nil>"
	}
	return a.v.String()
}

// Add accumulates d into a. A nil d is a no-op.
func (a *Amount) Add(d *big.Int) {
	if d != nil {
		a.v.Add(&a.v, d)
	}
}

func (a *Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.String())
}

// UnmarshalJSON accepts both quoted and bare integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if _, ok := a.v.SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid amount %q", data)
	}
	return nil
}
