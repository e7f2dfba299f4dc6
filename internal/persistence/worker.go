package persistence

import (
	"context"
	"time"

	"PerpIndexer/internal/core"
	"PerpIndexer/internal/observability"

	"github.com/rs/zerolog"
)

// BatchWriter persists a batch of archive rows. ArchiveWriter implements it.
type BatchWriter interface {
	WriteBatch(ctx context.Context, rows []ArchiveRow) error
}

// ArchiveWorker drains engine outputs, batch-writes them to the archive
// and forwards each output to the next stage (the outbound publisher).
// It runs independently from the engine: the engine's send is
// non-blocking, so a slow archive costs dropped publications, never
// ingestion progress.
type ArchiveWorker struct {
	writer       BatchWriter
	inputChan    <-chan core.CoreOutput
	forward      chan<- core.CoreOutput
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// NewArchiveWorker builds a worker. forward may be nil when nothing
// consumes outputs downstream.
func NewArchiveWorker(
	writer BatchWriter,
	inputChan <-chan core.CoreOutput,
	forward chan<- core.CoreOutput,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ArchiveWorker {
	return &ArchiveWorker{
		writer:       writer,
		inputChan:    inputChan,
		forward:      forward,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run batches incoming outputs and flushes either when the batch is full
// or the flush timeout expires. Blocks until ctx is cancelled or the
// input channel closes.
func (aw *ArchiveWorker) Run(ctx context.Context) error {
	if aw.forward != nil {
		defer close(aw.forward)
	}

	batch := make([]ArchiveRow, 0, aw.batchSize)

	timer := time.NewTimer(aw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(batch) > 0 {
				if err := aw.flush(context.Background(), batch); err != nil {
					aw.logger.Error().Err(err).Int("events", len(batch)).Msg("final archive flush failed")
				}
			}
			return ctx.Err()

		case out, ok := <-aw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := aw.flush(context.Background(), batch); err != nil {
						aw.logger.Error().Err(err).Int("events", len(batch)).Msg("final archive flush failed")
					}
				}
				return nil
			}

			batch = append(batch, ArchiveRowFrom(out))
			if aw.forward != nil {
				select {
				case aw.forward <- out:
				case <-ctx.Done():
				}
			}

			if len(batch) >= aw.batchSize {
				if err := aw.flushWithRetry(ctx, batch); err != nil {
					aw.logger.Error().Err(err).Msg("archive flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(aw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := aw.flushWithRetry(ctx, batch); err != nil {
					aw.logger.Error().Err(err).Msg("archive timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(aw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write
// succeeds or ctx is cancelled, then attempts one last flush.
func (aw *ArchiveWorker) flushWithRetry(ctx context.Context, rows []ArchiveRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			aw.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(rows)).
				Msg("archive retry")
			select {
			case <-ctx.Done():
				return aw.flush(context.Background(), rows)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := aw.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				aw.logger.Info().Int("retries", attempt).Msg("archive flush succeeded")
			}
			return nil
		}
		if aw.metrics != nil {
			aw.metrics.ArchiveErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (aw *ArchiveWorker) flush(ctx context.Context, rows []ArchiveRow) error {
	start := time.Now()

	if err := aw.writer.WriteBatch(ctx, rows); err != nil {
		if aw.metrics != nil {
			aw.metrics.ArchiveErrors.WithLabelValues("write").Inc()
		}
		return err
	}

	if aw.metrics != nil {
		aw.metrics.ArchiveBatchDur.Observe(time.Since(start).Seconds())
		aw.metrics.ArchiveBatchSize.Observe(float64(len(rows)))
		aw.metrics.ArchiveEventsWritten.Add(float64(len(rows)))
		aw.metrics.ArchiveLastBlock.Set(float64(rows[len(rows)-1].Cursor.BlockNumber))
	}
	return nil
}
