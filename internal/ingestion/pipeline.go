package ingestion

import (
	"context"
	"errors"
	"fmt"

	"PerpIndexer/internal/event"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/pricing"

	"github.com/rs/zerolog"
)

// Processor applies typed events in order and replays committed ones.
// core.Engine implements it.
type Processor interface {
	ProcessEvent(ctx context.Context, evt event.Event) error
	ReplayEvent(ctx context.Context, evt event.Event) error
}

// Submission is a manually injected event and the channel its outcome is
// reported on. Submissions are replays of already committed logs.
type Submission struct {
	Event  event.Event
	Result chan<- error
}

// RunEventLoop is the single goroutine that feeds the engine. It drains
// NATS messages and manual submissions, so the engine never sees two
// events concurrently.
//
// Malformed messages are acked and dropped. A processing error is fatal:
// the message is nakked and the loop returns the error. Manual
// submissions are replayed and their error goes back to the submitter
// only; the loop keeps running.
func RunEventLoop(
	ctx context.Context,
	rawChan <-chan RawEvent,
	manualChan <-chan Submission,
	proc Processor,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-rawChan:
			if !ok {
				return nil
			}
			if err := handleRaw(ctx, raw, proc, metrics, logger); err != nil {
				return err
			}

		case sub, ok := <-manualChan:
			if !ok {
				manualChan = nil
				continue
			}
			err := proc.ReplayEvent(ctx, sub.Event)
			if err != nil {
				logger.Warn().Err(err).Str("event_type", sub.Event.EventType().String()).Msg("manual replay rejected")
			}
			if sub.Result != nil {
				sub.Result <- err
			}
		}
	}
}

func handleRaw(ctx context.Context, raw RawEvent, proc Processor, metrics *observability.Metrics, logger zerolog.Logger) error {
	eventType, err := EventTypeForSubject(raw.Subject)
	if err != nil {
		logger.Warn().Err(err).Str("subject", raw.Subject).Msg("unknown NATS subject")
		raw.Ack() // Ack invalid events to avoid redelivery loop
		return nil
	}

	evt, err := ParseRawEvent(raw, eventType)
	if err != nil {
		if metrics != nil {
			metrics.ParseErrors.WithLabelValues(eventType.String()).Inc()
		}
		logger.Warn().Err(err).Str("subject", raw.Subject).Msg("parse event failed")
		raw.Ack()
		return nil
	}

	if err := proc.ProcessEvent(ctx, evt); err != nil {
		raw.Nak()
		return fmt.Errorf("process %s: %w", raw.Subject, err)
	}
	raw.Ack()
	return nil
}

// RunPriceLoop applies price feed messages. Feed errors are transient:
// the message is nakked for redelivery and the loop continues.
func RunPriceLoop(
	ctx context.Context,
	rawChan <-chan RawEvent,
	writer *pricing.FeedWriter,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-rawChan:
			if !ok {
				return nil
			}

			snap, err := parsePriceMessage(raw)
			if err != nil {
				if metrics != nil {
					metrics.ParseErrors.WithLabelValues("PriceSnapshot").Inc()
				}
				logger.Warn().Err(err).Str("subject", raw.Subject).Msg("parse price failed")
				raw.Ack()
				continue
			}

			if err := writer.Apply(ctx, snap); err != nil {
				logger.Error().Err(err).Str("subject", raw.Subject).Msg("apply price failed")
				raw.Nak()
				continue
			}
			raw.Ack()
		}
	}
}

func parsePriceMessage(raw RawEvent) (pricing.Snapshot, error) {
	source, err := SourceForSubject(raw.Subject)
	if err != nil {
		return pricing.Snapshot{}, err
	}
	return ParsePriceSnapshot(raw.Data, source)
}

// IsMalformed reports whether err marks a payload that will never parse.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
