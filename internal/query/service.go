package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	fpmath "PerpIndexer/internal/math"
	"PerpIndexer/internal/persistence"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/store"
)

var (
	// ErrNotFound is returned for absent records. It wraps store.ErrNotFound.
	ErrNotFound = fmt.Errorf("query: %w", store.ErrNotFound)
	// ErrInvalidArgument marks a malformed request parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable means the backing source is not configured, e.g. the
	// event archive on the memory backend.
	ErrUnavailable = errors.New("unavailable")
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// PriceSource resolves a token to a 30-decimal USD price.
// pricing.Resolver implements it.
type PriceSource interface {
	ResolvePrice(ctx context.Context, token string) (*big.Int, error)
}

// ArchiveSource reads archived events. persistence.ArchiveReader
// implements it.
type ArchiveSource interface {
	LoadFrom(ctx context.Context, after event.Cursor, limit int) ([]persistence.ArchiveRow, error)
}

// QueryService provides read-only access to the derived records. It reads
// the same store the engine writes; responses carry the checkpoint cursor
// as their freshness watermark.
type QueryService struct {
	store   store.Store
	prices  PriceSource
	tokens  *config.TokenTable
	archive ArchiveSource
}

// NewQueryService builds the service. archive may be nil.
func NewQueryService(s store.Store, prices PriceSource, tokens *config.TokenTable, archive ArchiveSource) *QueryService {
	return &QueryService{store: s, prices: prices, tokens: tokens, archive: archive}
}

// GetPosition returns the open ledger row for a position key.
func (qs *QueryService) GetPosition(ctx context.Context, key string) (*PositionResponse, error) {
	pos, err := load[*entity.Position](ctx, qs.store, entity.KindPosition, config.NormalizeAddress(key))
	if err != nil {
		return nil, err
	}
	asOf, err := qs.watermark(ctx)
	if err != nil {
		return nil, err
	}
	return &PositionResponse{Position: pos, Correlated: pos.Correlated(), AsOf: asOf}, nil
}

// ListPositions pages through open positions ordered by key.
func (qs *QueryService) ListPositions(ctx context.Context, after string, limit int) (*PositionPage, error) {
	limit = clampLimit(limit)
	recs, err := qs.store.List(ctx, entity.KindPosition, config.NormalizeAddress(after), limit)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	asOf, err := qs.watermark(ctx)
	if err != nil {
		return nil, err
	}

	page := &PositionPage{Positions: make([]*entity.Position, 0, len(recs)), AsOf: asOf}
	for _, r := range recs {
		pos, ok := r.(*entity.Position)
		if !ok {
			return nil, fmt.Errorf("list positions: unexpected type %T", r)
		}
		page.Positions = append(page.Positions, pos)
	}
	if len(recs) == limit {
		page.NextAfter = recs[len(recs)-1].EntityID()
	}
	return page, nil
}

// GetAction returns one audit record by its record identity.
func (qs *QueryService) GetAction(ctx context.Context, id string) (*ActionResponse, error) {
	a, err := load[*entity.OrderAction](ctx, qs.store, entity.KindOrderAction, config.NormalizeAddress(id))
	if err != nil {
		return nil, err
	}
	return &ActionResponse{
		ID:          a.ID,
		Account:     a.Account,
		Action:      a.Action,
		BlockNumber: a.BlockNumber,
		Timestamp:   a.Timestamp,
		Transaction: a.Transaction,
		Params:      json.RawMessage(a.Params),
	}, nil
}

// GetTransaction returns the summary for a transaction hash.
func (qs *QueryService) GetTransaction(ctx context.Context, hash string) (*entity.Transaction, error) {
	return load[*entity.Transaction](ctx, qs.store, entity.KindTransaction, config.NormalizeAddress(hash))
}

// GetPrice resolves the current price of token through the same fallback
// chain the stats projection uses.
func (qs *QueryService) GetPrice(ctx context.Context, token string) (*PriceResponse, error) {
	token = config.NormalizeAddress(token)
	price, err := qs.prices.ResolvePrice(ctx, token)
	if errors.Is(err, pricing.ErrUnsupportedToken) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &PriceResponse{
		Token:  token,
		Symbol: qs.tokens.Symbol(token),
		Value:  price.String(),
		USD:    FormatUSD(price),
	}, nil
}

// GetStats returns the volume and fee stats of the period bucket that
// contains timestamp.
func (qs *QueryService) GetStats(ctx context.Context, periodLabel string, timestamp int64) (*StatsResponse, error) {
	period, err := fpmath.ParsePeriod(periodLabel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if timestamp < 0 {
		return nil, fmt.Errorf("%w: negative timestamp", ErrInvalidArgument)
	}
	bucket, err := period.Bucket(timestamp)
	if err != nil {
		return nil, err
	}
	id := entity.StatID(bucket, period.String())

	vol, err := load[*entity.VolumeStat](ctx, qs.store, entity.KindVolumeStat, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	fees, err := load[*entity.FeeStat](ctx, qs.store, entity.KindFeeStat, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return &StatsResponse{
		Period:      period.String(),
		BucketStart: bucket,
		Volume:      vol,
		Fees:        fees,
		VolumeUSD:   volumeUSD(vol),
		FeesUSD:     feesUSD(fees),
	}, nil
}

// ListArchive returns archived events strictly after the cursor.
func (qs *QueryService) ListArchive(ctx context.Context, after event.Cursor, limit int) (*ArchivePage, error) {
	if qs.archive == nil {
		return nil, fmt.Errorf("%w: event archive is disabled", ErrUnavailable)
	}
	rows, err := qs.archive.LoadFrom(ctx, after, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []persistence.ArchiveRow{}
	}
	return &ArchivePage{Events: rows}, nil
}

// --- helpers ---

// watermark returns the last processed cursor, or nil before the first event.
func (qs *QueryService) watermark(ctx context.Context) (*event.Cursor, error) {
	cp, err := load[*entity.Checkpoint](ctx, qs.store, entity.KindCheckpoint, entity.CheckpointID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	return &event.Cursor{BlockNumber: cp.BlockNumber, TxIndex: cp.TxIndex, LogIndex: cp.LogIndex}, nil
}

func load[T entity.Entity](ctx context.Context, s store.Store, kind entity.Kind, id string) (T, error) {
	v, err := store.LoadAs[T](ctx, s, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return v, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
