package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PerpIndexer/internal/core"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/observability"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const OutputStream = "INDEXER_OUTPUT"

// outputNamespace scopes the deterministic message ids.
var outputNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("perpindexer/output"))

// OutboundPublisher publishes derived records to NATS for downstream consumers.
// Subjects follow the pattern: indexer.output.{kind}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.CoreOutput
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// OutputMessage is the JSON body of one published record.
type OutputMessage struct {
	EventID string          `json:"eventId"`
	Kind    entity.Kind     `json:"kind"`
	ID      string          `json:"id"`
	Removed bool            `json:"removed,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.CoreOutput, metrics *observability.Metrics, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			msgs, err := OutputMessages(out)
			if err != nil {
				op.logger.Error().Err(err).Str("event_id", out.EventID).Msg("encode output")
				continue
			}
			for _, msg := range msgs {
				if err := op.publish(ctx, msg); err != nil {
					// Non-fatal: downstream consumers can query the store directly
					if op.metrics != nil {
						op.metrics.PublishErrors.Inc()
					}
					op.logger.Warn().Err(err).
						Str("event_id", msg.EventID).
						Str("kind", string(msg.Kind)).
						Msg("outbound publish failed")
				}
			}
		}
	}
}

// OutputMessages flattens one engine output into per-record messages.
func OutputMessages(out core.CoreOutput) ([]OutputMessage, error) {
	msgs := make([]OutputMessage, 0, len(out.Records)+len(out.Removed))
	for _, rec := range out.Records {
		data, err := entity.Encode(rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, OutputMessage{EventID: out.EventID, Kind: rec.Kind(), ID: rec.EntityID(), Data: data})
	}
	for _, rm := range out.Removed {
		msgs = append(msgs, OutputMessage{EventID: out.EventID, Kind: rm.Kind, ID: rm.ID, Removed: true})
	}
	return msgs, nil
}

// MessageID is stable across redeliveries so JetStream deduplicates
// republished records.
func MessageID(msg OutputMessage) string {
	name := fmt.Sprintf("%s/%s/%s/%t", msg.EventID, msg.Kind, msg.ID, msg.Removed)
	return uuid.NewSHA1(outputNamespace, []byte(name)).String()
}

// OutputSubject returns indexer.output.{kind}.
func OutputSubject(kind entity.Kind) string {
	return "indexer.output." + string(kind)
}

func (op *OutboundPublisher) publish(ctx context.Context, msg OutputMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = op.js.Publish(ctx, OutputSubject(msg.Kind), data, jetstream.WithMsgID(MessageID(msg)))
	return err
}

// EnsureOutboundStream creates the outbound records stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       OutputStream,
		Subjects:   []string{"indexer.output.>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 2 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	logger.Info().Str("stream", OutputStream).Msg("ensured outbound stream")
	return nil
}
