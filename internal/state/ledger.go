package state

import (
	"context"
	"errors"
	"fmt"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/store"
)

// PositionLedger keeps one current-state row per open position key.
// Rows are created or refreshed by UpdatePosition and deleted by
// ClosePosition / LiquidatePosition. It holds no history of its own.
// Not thread-safe: only accessed from the single-threaded core.
type PositionLedger struct {
	store store.Store
}

func NewPositionLedger(s store.Store) *PositionLedger {
	return &PositionLedger{store: s}
}

// State returns the current state of key.
func (l *PositionLedger) State(ctx context.Context, key string) (PositionState, error) {
	ok, err := store.Exists(ctx, l.store, entity.KindPosition, key)
	if err != nil {
		return PositionStateAbsent, fmt.Errorf("ledger state %s: %w", key, err)
	}
	if ok {
		return PositionStateOpen, nil
	}
	return PositionStateAbsent, nil
}

// Get returns the row for key or store.ErrNotFound.
func (l *PositionLedger) Get(ctx context.Context, key string) (*entity.Position, error) {
	return store.LoadAs[*entity.Position](ctx, l.store, entity.KindPosition, key)
}

// ApplyUpdate upserts the row for evt.Key.
//
// absent → open: numeric fields come from evt. Account, tokens and side are
// copied from the IncreasePosition stored under siblingID; if there is no
// such record they stay unset.
//
// open → open: only numeric fields are overwritten. Identity fields and
// the creation origin are preserved.
func (l *PositionLedger) ApplyUpdate(ctx context.Context, evt *event.UpdatePosition, origin entity.Origin, siblingID string) (Transition, *entity.Position, error) {
	row, err := l.Get(ctx, evt.Key)
	switch {
	case err == nil:
		mustTransition(evt.Key, PositionStateOpen, TransitionRefreshed)
		setNumeric(row, evt)
		if err := l.store.Save(ctx, row); err != nil {
			return 0, nil, fmt.Errorf("refresh position %s: %w", evt.Key, err)
		}
		return TransitionRefreshed, row, nil

	case !errors.Is(err, store.ErrNotFound):
		return 0, nil, fmt.Errorf("load position %s: %w", evt.Key, err)
	}

	mustTransition(evt.Key, PositionStateAbsent, TransitionCreated)
	row = &entity.Position{Key: evt.Key, Origin: origin}
	setNumeric(row, evt)

	if err := l.correlate(ctx, row, siblingID); err != nil {
		return 0, nil, err
	}

	if err := l.store.Save(ctx, row); err != nil {
		return 0, nil, fmt.Errorf("create position %s: %w", evt.Key, err)
	}
	return TransitionCreated, row, nil
}

// correlate copies identity fields from the sibling increase record. A
// missing sibling is expected and leaves the fields unset.
func (l *PositionLedger) correlate(ctx context.Context, row *entity.Position, siblingID string) error {
	inc, err := store.LoadAs[*entity.IncreasePosition](ctx, l.store, entity.KindIncreasePosition, siblingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sibling %s: %w", siblingID, err)
	}

	isLong := inc.IsLong
	row.Account = inc.Account
	row.CollateralToken = inc.CollateralToken
	row.IndexToken = inc.IndexToken
	row.IsLong = &isLong
	return nil
}

// Remove deletes the row for key unconditionally. A missing key is a no-op.
func (l *PositionLedger) Remove(ctx context.Context, key string) (Transition, error) {
	current, err := l.State(ctx, key)
	if err != nil {
		return 0, err
	}
	transition := TransitionNoop
	if current == PositionStateOpen {
		transition = TransitionRemoved
	}
	mustTransition(key, current, transition)

	if err := l.store.Remove(ctx, entity.KindPosition, key); err != nil {
		return 0, fmt.Errorf("remove position %s: %w", key, err)
	}
	return transition, nil
}

// mustTransition halts on a ledger move the state machine does not allow.
// A violation means the ledger code itself is broken.
func mustTransition(key string, observed PositionState, t Transition) {
	if !t.ValidFrom(observed) {
		panic(fmt.Sprintf("FATAL: position %s: %s not allowed from %s", key, t, observed))
	}
}

func setNumeric(row *entity.Position, evt *event.UpdatePosition) {
	row.Size = entity.NewAmount(evt.Size)
	row.Collateral = entity.NewAmount(evt.Collateral)
	row.AveragePrice = entity.NewAmount(evt.AveragePrice)
	row.EntryFundingRate = entity.NewAmount(evt.EntryFundingRate)
	row.ReserveAmount = entity.NewAmount(evt.ReserveAmount)
	row.RealisedPnl = entity.NewAmount(evt.RealisedPnl)
	row.MarkPrice = entity.NewAmount(evt.MarkPrice)
}
