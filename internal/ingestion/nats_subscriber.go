package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PerpIndexer/internal/event"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/pricing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	ProtocolStream = "PROTOCOL_EVENTS"
	PriceStream    = "PRICE_FEED"
)

// NATSSubscriber subscribes to NATS JetStream subjects and forwards each
// message to a sink channel. Messages are acked by the consumer of the
// sink once fully processed.
type NATSSubscriber struct {
	js        jetstream.JetStream
	logger    zerolog.Logger
	metrics   *observability.Metrics
	consumers []jetstream.ConsumeContext
}

// RawEvent is the parsed-but-untyped event from NATS, ready for the shell
// to validate and convert into a typed event.Event before sending to the engine.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// Ack and Nak tolerate RawEvents built without callbacks (manual ingest, tests).
func (r RawEvent) Ack() {
	if r.AckFunc != nil {
		r.AckFunc()
	}
}

func (r RawEvent) Nak() {
	if r.NakFunc != nil {
		r.NakFunc()
	}
}

// SubjectConfig binds one durable consumer to a subject filter.
type SubjectConfig struct {
	Subject       string
	ConsumerName  string
	StreamName    string
	MaxAckPending int
	MaxDeliver    int // -1 redelivers until acked
}

// ProtocolSubjects returns the consumer for contract events. All four
// contracts share one stream and one consumer so the engine sees logs in
// the order upstream published them. Delivery is unbounded: a log the
// server gave up on would leave a permanent gap behind the checkpoint.
func ProtocolSubjects(durable string) SubjectConfig {
	return SubjectConfig{
		Subject:       "protocol.>",
		ConsumerName:  durable,
		StreamName:    ProtocolStream,
		MaxAckPending: 1024,
		MaxDeliver:    -1,
	}
}

// PriceSubjects returns the consumer for the price feed writer. A snapshot
// that keeps failing is dropped after a few attempts; the next one
// supersedes it.
func PriceSubjects(durable string) SubjectConfig {
	return SubjectConfig{
		Subject:       "prices.>",
		ConsumerName:  durable + "-prices",
		StreamName:    PriceStream,
		MaxAckPending: 256,
		MaxDeliver:    5,
	}
}

// contractEvents lists which event types each contract subject may carry.
var contractEvents = map[string][]event.EventType{
	"vault": {
		event.EventTypeIncreasePosition, event.EventTypeDecreasePosition,
		event.EventTypeLiquidatePosition, event.EventTypeUpdatePosition,
		event.EventTypeClosePosition, event.EventTypeSwap,
		event.EventTypeCollectMarginFees, event.EventTypeCollectSwapFees,
	},
	"router": {event.EventTypeCreateIncreasePosition, event.EventTypeCreateDecreasePosition},
	"elp":    {event.EventTypeAddLiquidity, event.EventTypeRemoveLiquidity},
	"reward": {
		event.EventTypeStakeEddx, event.EventTypeUnstakeEddx,
		event.EventTypeStakeElp, event.EventTypeUnstakeElp,
	},
}

// EventTypeForSubject resolves protocol.<contract>.<EventName>.
func EventTypeForSubject(subject string) (event.EventType, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 3 || parts[0] != "protocol" {
		return event.EventTypeUnknown, fmt.Errorf("%w: unexpected subject %q", ErrMalformed, subject)
	}
	et, err := event.ParseEventType(parts[2])
	if err != nil {
		return event.EventTypeUnknown, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, allowed := range contractEvents[parts[1]] {
		if allowed == et {
			return et, nil
		}
	}
	return event.EventTypeUnknown, fmt.Errorf("%w: %s is not emitted by %s", ErrMalformed, et, parts[1])
}

// SourceForSubject resolves prices.<source>.
func SourceForSubject(subject string) (pricing.Source, error) {
	name, ok := strings.CutPrefix(subject, "prices.")
	if !ok {
		return 0, fmt.Errorf("%w: unexpected subject %q", ErrMalformed, subject)
	}
	src, err := pricing.ParseSource(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return src, nil
}

func NewNATSSubscriber(js jetstream.JetStream, metrics *observability.Metrics, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		logger:  logger,
		metrics: metrics,
	}
}

// Subscribe creates a JetStream consumer for cfg and forwards messages to sink.
// Consumers use explicit ACK and ack_wait=30s; max_deliver comes from cfg.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, cfg SubjectConfig, sink chan<- RawEvent) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		if ns.metrics != nil {
			ns.metrics.IngestMessages.WithLabelValues(msg.Subject()).Inc()
		}
		raw := RawEvent{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			AckFunc:   func() { _ = msg.Ack() },
			NakFunc:   func() { _ = msg.Nak() },
		}

		select {
		case sink <- raw:
			// Successfully queued for processing
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
	}

	ns.consumers = append(ns.consumers, consumerContext)
	ns.logger.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      ProtocolStream,
			Subjects:  []string{"protocol.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      PriceStream,
			Subjects:  []string{"prices.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.logger.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, health *observability.HealthChecker, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if health != nil {
				health.SetNATSReady(false)
			}
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if health != nil {
				health.SetNATSReady(true)
			}
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
