package pricing

import (
	"context"
	"fmt"

	"PerpIndexer/internal/observability"

	"github.com/rs/zerolog"
)

// FeedWriter applies external price snapshots to a Feed. It is the only
// writer of price data; the resolver never writes.
type FeedWriter struct {
	feed    Feed
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewFeedWriter(feed Feed, metrics *observability.Metrics, logger zerolog.Logger) *FeedWriter {
	return &FeedWriter{feed: feed, metrics: metrics, logger: logger}
}

// Apply overwrites the latest value for (snap.Source, snap.Token).
func (w *FeedWriter) Apply(ctx context.Context, snap Snapshot) error {
	if snap.Token == "" {
		return fmt.Errorf("%s snapshot without token", snap.Source)
	}
	if err := w.feed.Put(ctx, snap); err != nil {
		return fmt.Errorf("apply %s snapshot for %s: %w", snap.Source, snap.Token, err)
	}
	if w.metrics != nil {
		w.metrics.PriceFeedUpdates.WithLabelValues(snap.Source.String()).Inc()
	}
	w.logger.Debug().
		Str("source", snap.Source.String()).
		Str("token", snap.Token).
		Str("value", snap.Value.String()).
		Int64("timestamp", snap.Timestamp).
		Msg("price snapshot applied")
	return nil
}
