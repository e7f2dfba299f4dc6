package store

import (
	"context"
	"errors"
	"time"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/observability"
)

// Instrumented records latency and error metrics around another Store.
// ErrNotFound is an expected outcome and is not counted as an error.
type Instrumented struct {
	next    Store
	metrics *observability.Metrics
}

var _ Store = (*Instrumented)(nil)

func NewInstrumented(next Store, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}

func (s *Instrumented) Load(ctx context.Context, kind entity.Kind, id string) (entity.Entity, error) {
	start := time.Now()
	e, err := s.next.Load(ctx, kind, id)
	s.observe("load", start, err)
	return e, err
}

func (s *Instrumented) Save(ctx context.Context, e entity.Entity) error {
	start := time.Now()
	err := s.next.Save(ctx, e)
	s.observe("save", start, err)
	return err
}

func (s *Instrumented) Remove(ctx context.Context, kind entity.Kind, id string) error {
	start := time.Now()
	err := s.next.Remove(ctx, kind, id)
	s.observe("remove", start, err)
	return err
}

func (s *Instrumented) List(ctx context.Context, kind entity.Kind, afterID string, limit int) ([]entity.Entity, error) {
	start := time.Now()
	out, err := s.next.List(ctx, kind, afterID, limit)
	s.observe("list", start, err)
	return out, err
}
