package journal

import (
	"context"
	"fmt"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/store"
)

// Action is one economically meaningful event to append to the log.
type Action struct {
	ID          string // record identity of the triggering log
	Account     string
	Tag         Tag
	BlockNumber int64
	Timestamp   int64
	TxHash      string
	Params      *Params
}

// Recorder appends OrderAction records. It never updates or deletes one.
type Recorder struct {
	store     store.Store
	validator *Validator
	metrics   *observability.Metrics
}

func NewRecorder(s store.Store, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		store:     s,
		validator: NewValidator(),
		metrics:   metrics,
	}
}

// Record builds, validates and stores the action.
func (r *Recorder) Record(ctx context.Context, a Action) (*entity.OrderAction, error) {
	params := a.Params
	if params == nil {
		params = NewParams()
	}

	rec := &entity.OrderAction{
		ID:          a.ID,
		Account:     a.Account,
		Action:      a.Tag.String(),
		BlockNumber: a.BlockNumber,
		Timestamp:   a.Timestamp,
		Transaction: a.TxHash,
		Params:      params.String(),
	}

	if err := r.validator.Validate(rec); err != nil {
		return nil, err
	}

	if err := r.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("record %s %s: %w", rec.Action, rec.ID, err)
	}

	if r.metrics != nil {
		r.metrics.ActionsRecorded.WithLabelValues(rec.Action).Inc()
	}
	return rec, nil
}
