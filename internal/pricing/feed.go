package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/store"
)

// ErrNoSnapshot means the feed has never published a price for the token.
var ErrNoSnapshot = errors.New("no price snapshot")

// Source identifies an external price feed.
type Source int32

const (
	SourceOracle Source = iota + 1 // Chainlink aggregator, 8 decimals
	SourceAMM                      // Uniswap pool TWAP, 30 decimals
)

func (s Source) String() string {
	switch s {
	case SourceOracle:
		return "chainlink"
	case SourceAMM:
		return "amm"
	default:
		return fmt.Sprintf("Source(%d)", int32(s))
	}
}

// ParseSource maps a subject suffix to a Source.
func ParseSource(s string) (Source, error) {
	switch s {
	case "chainlink":
		return SourceOracle, nil
	case "amm":
		return SourceAMM, nil
	default:
		return 0, fmt.Errorf("unknown price source %q", s)
	}
}

func (s Source) kind() (entity.Kind, error) {
	switch s {
	case SourceOracle:
		return entity.KindChainlinkPrice, nil
	case SourceAMM:
		return entity.KindUniswapPrice, nil
	default:
		return "", fmt.Errorf("unknown price source %s", s)
	}
}

// Snapshot is one price observation. It replaces the previous value for
// (Source, Token) wholesale.
type Snapshot struct {
	Source    Source
	Token     string
	Value     *big.Int
	Timestamp int64
}

// Feed reads and writes the latest snapshot per token. The core only
// reads; the feed writer owned by the ingestion side writes.
type Feed interface {
	Latest(ctx context.Context, source Source, token string) (*big.Int, error)
	Put(ctx context.Context, snap Snapshot) error
}

// StoreFeed keeps snapshots as ChainlinkPrice / UniswapPrice records in
// the entity store.
type StoreFeed struct {
	store store.Store
}

var _ Feed = (*StoreFeed)(nil)

func NewStoreFeed(s store.Store) *StoreFeed {
	return &StoreFeed{store: s}
}

func (f *StoreFeed) Latest(ctx context.Context, source Source, token string) (*big.Int, error) {
	kind, err := source.kind()
	if err != nil {
		return nil, err
	}
	snap, err := store.LoadAs[*entity.PriceSnapshot](ctx, f.store, kind, config.NormalizeAddress(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load %s price %s: %w", source, token, err)
	}
	if snap.Value == nil {
		return nil, ErrNoSnapshot
	}
	return snap.Value.Big(), nil
}

func (f *StoreFeed) Put(ctx context.Context, snap Snapshot) error {
	kind, err := snap.Source.kind()
	if err != nil {
		return err
	}
	if snap.Value == nil || snap.Value.Sign() < 0 {
		return fmt.Errorf("%s price %s: invalid value %v", snap.Source, snap.Token, snap.Value)
	}
	rec := entity.NewPriceSnapshot(kind, config.NormalizeAddress(snap.Token))
	rec.Value = entity.NewAmount(snap.Value)
	rec.Timestamp = snap.Timestamp
	return f.store.Save(ctx, rec)
}
