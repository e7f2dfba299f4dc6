package ingestion

import (
	"context"
	"fmt"

	"PerpIndexer/internal/event"
)

// IngestService provides admin/manual event injection.
// Manual ingest replays individual logs the engine has already committed.
// Logs past the checkpoint are rejected; new logs arrive through NATS.
type IngestService struct {
	submitChan chan<- Submission
}

func NewIngestService(submitChan chan<- Submission) *IngestService {
	return &IngestService{submitChan: submitChan}
}

// Inject parses a raw log of the named type and waits until the engine
// has replayed it. The payload uses the same wire format as NATS.
func (s *IngestService) Inject(ctx context.Context, typeName string, data []byte) (event.Event, error) {
	eventType, err := event.ParseEventType(typeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	evt, err := ParseRawEvent(RawEvent{Subject: "manual." + typeName, Data: data}, eventType)
	if err != nil {
		return nil, err
	}

	result := make(chan error, 1)
	select {
	case s.submitChan <- Submission{Event: evt, Result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
		return evt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
