package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/journal"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/projection"
	"PerpIndexer/internal/state"
	"PerpIndexer/internal/store"

	"github.com/rs/zerolog"
)

var (
	// ErrHalted is returned for every event after a fatal fault.
	ErrHalted = errors.New("engine halted after fatal fault")

	// ErrInvalidEvent marks an envelope the core cannot process.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrAheadOfCheckpoint rejects a replay whose cursor has not been
	// committed yet. Such events must arrive through the ordered stream.
	ErrAheadOfCheckpoint = errors.New("replay cursor ahead of checkpoint")
)

// Engine is the single-threaded event processor. Each event is fully
// applied (records, ledger, action log, stats, checkpoint) before the
// next one is admitted.
// Not thread-safe: only accessed from the single-threaded engine loop.
type Engine struct {
	store     store.Store
	txs       *TransactionMemoizer
	sequence  *SequenceValidator
	ledger    *state.PositionLedger
	recorder  *journal.Recorder
	stats     *projection.StatsProjector
	metrics   *observability.Metrics
	logger    zerolog.Logger
	halted    error
	outChan   chan<- CoreOutput
	processed int64
}

// RemovedKey names a record deleted while processing an event.
type RemovedKey struct {
	Kind entity.Kind
	ID   string
}

// CoreOutput lists what one event wrote, for downstream publication.
type CoreOutput struct {
	EventID   string
	EventType event.EventType
	Cursor    event.Cursor
	Records   []entity.Entity
	Removed   []RemovedKey

	// Replay marks output of ReplayEvent. The ledger is not touched.
	Replay bool
}

func (o *CoreOutput) add(e entity.Entity) { o.Records = append(o.Records, e) }

// NewEngine wires the core components over s. stats may be nil to disable
// the projection; outChan may be nil to disable output publication.
func NewEngine(
	s store.Store,
	txMemoCapacity int,
	stats *projection.StatsProjector,
	outChan chan<- CoreOutput,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		store:    s,
		txs:      NewTransactionMemoizer(txMemoCapacity, s, metrics),
		sequence: NewSequenceValidator(),
		ledger:   state.NewPositionLedger(s),
		recorder: journal.NewRecorder(s, metrics),
		stats:    stats,
		metrics:  metrics,
		logger:   logger,
		outChan:  outChan,
	}
}

// RestoreCheckpoint seeds the sequence validator from the stored
// checkpoint. It reports whether one was found.
func (e *Engine) RestoreCheckpoint(ctx context.Context) (bool, error) {
	cp, err := store.LoadAs[*entity.Checkpoint](ctx, e.store, entity.KindCheckpoint, entity.CheckpointID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	}

	cursor := event.Cursor{BlockNumber: cp.BlockNumber, TxIndex: cp.TxIndex, LogIndex: cp.LogIndex}
	e.sequence.Restore(cursor)
	e.logger.Info().
		Str("cursor", cursor.String()).
		Str("event_id", cp.EventID).
		Msg("restored checkpoint")
	return true, nil
}

// ProcessEvent is the main processing pipeline. A returned error is fatal:
// the engine refuses all further events.
func (e *Engine) ProcessEvent(ctx context.Context, evt event.Event) error {
	if e.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, e.halted)
	}

	start := time.Now()
	ref := evt.Reference()
	eventType := evt.EventType().String()
	eventID := IdentityOf(ref)
	log := e.logger.With().Str("event_id", eventID).Str("event_type", eventType).Logger()

	if ref.TxHash == "" || ref.LogIndex < 0 {
		return e.fail(log, eventType, "invalid", fmt.Errorf("%w: %s", ErrInvalidEvent, eventID))
	}

	// Step 1: ordering
	cursor := ref.Cursor()
	verdict, err := e.sequence.Validate(cursor)
	if err != nil {
		return e.fail(log, eventType, "out_of_order", err)
	}
	if verdict == VerdictReplay {
		if e.metrics != nil {
			e.metrics.CoreEventsSkipped.WithLabelValues(eventType).Inc()
		}
		log.Debug().Str("cursor", cursor.String()).Msg("skipping redelivered event")
		return nil
	}

	// Step 2: stats valuation, before any record of this event is written
	if e.stats != nil {
		if err := e.stats.Apply(ctx, evt); err != nil {
			return e.fail(log, eventType, "stats", err)
		}
	}

	// Step 3: transaction summary
	txID, err := e.txs.EnsureTransaction(ctx, ref)
	if err != nil {
		return e.fail(log, eventType, "transaction", err)
	}

	// Step 4-6: records, ledger, action log
	out := CoreOutput{EventID: eventID, EventType: evt.EventType(), Cursor: cursor}
	origin := entity.Origin{Transaction: txID, LogIndex: ref.LogIndex, Timestamp: ref.BlockTimestamp}
	if err := e.dispatch(ctx, evt, origin, &out); err != nil {
		return e.fail(log, eventType, "handler", err)
	}

	// Step 7: checkpoint
	cp := &entity.Checkpoint{
		ID:          entity.CheckpointID,
		BlockNumber: cursor.BlockNumber,
		TxIndex:     cursor.TxIndex,
		LogIndex:    cursor.LogIndex,
		EventID:     eventID,
	}
	if err := e.store.Save(ctx, cp); err != nil {
		return e.fail(log, eventType, "checkpoint", fmt.Errorf("save checkpoint: %w", err))
	}
	if err := e.sequence.Advance(cursor); err != nil {
		return e.fail(log, eventType, "out_of_order", err)
	}
	e.processed++

	// Step 8: publish. Non-blocking; the store stays the source of truth.
	if e.outChan != nil {
		select {
		case e.outChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		e.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		e.metrics.CoreLastBlock.Set(float64(cursor.BlockNumber))
	}
	log.Debug().Int("records", len(out.Records)).Int("removed", len(out.Removed)).Msg("event applied")
	return nil
}

// ReplayEvent re-applies an event the engine has already committed. Only
// cursors at or before the checkpoint are accepted; anything later is
// rejected with ErrAheadOfCheckpoint and left to the ordered stream.
// Per-event records, the transaction summary and the action log are
// rewritten under their identities. Stats and the position ledger are
// left alone, and the checkpoint does not move. A rejected replay never
// halts the engine.
func (e *Engine) ReplayEvent(ctx context.Context, evt event.Event) error {
	if e.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, e.halted)
	}

	ref := evt.Reference()
	eventType := evt.EventType().String()
	eventID := IdentityOf(ref)
	log := e.logger.With().Str("event_id", eventID).Str("event_type", eventType).Logger()

	if ref.TxHash == "" || ref.LogIndex < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, eventID)
	}

	cursor := ref.Cursor()
	last, ok := e.sequence.Last()
	if !ok {
		return fmt.Errorf("%w: %s, no checkpoint", ErrAheadOfCheckpoint, cursor)
	}
	if cursor.Compare(last) > 0 {
		return fmt.Errorf("%w: %s after %s", ErrAheadOfCheckpoint, cursor, last)
	}

	txID, err := e.txs.EnsureTransaction(ctx, ref)
	if err != nil {
		return fmt.Errorf("replay %s: %w", eventID, err)
	}

	out := CoreOutput{EventID: eventID, EventType: evt.EventType(), Cursor: cursor, Replay: true}
	origin := entity.Origin{Transaction: txID, LogIndex: ref.LogIndex, Timestamp: ref.BlockTimestamp}
	if err := e.dispatch(ctx, evt, origin, &out); err != nil {
		return fmt.Errorf("replay %s: %w", eventID, err)
	}

	if e.outChan != nil {
		select {
		case e.outChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	log.Info().
		Str("cursor", cursor.String()).
		Str("checkpoint", last.String()).
		Int("records", len(out.Records)).
		Msg("event replayed")
	return nil
}

func (e *Engine) dispatch(ctx context.Context, evt event.Event, origin entity.Origin, out *CoreOutput) error {
	switch ev := evt.(type) {
	case *event.IncreasePosition:
		return e.handleIncreasePosition(ctx, ev, origin, out)
	case *event.DecreasePosition:
		return e.handleDecreasePosition(ctx, ev, origin, out)
	case *event.LiquidatePosition:
		return e.handleLiquidatePosition(ctx, ev, origin, out)
	case *event.UpdatePosition:
		return e.handleUpdatePosition(ctx, ev, origin, out)
	case *event.ClosePosition:
		return e.handleClosePosition(ctx, ev, origin, out)
	case *event.CreateIncreasePosition:
		return e.handleCreateIncreasePosition(ctx, ev, origin, out)
	case *event.CreateDecreasePosition:
		return e.handleCreateDecreasePosition(ctx, ev, origin, out)
	case *event.Swap:
		return e.handleSwap(ctx, ev, origin, out)
	case *event.CollectMarginFees:
		return e.handleCollectFees(ctx, entity.KindCollectMarginFees, ev.Ref, ev.Token, ev.FeeUsd, ev.FeeTokens, origin, out)
	case *event.CollectSwapFees:
		return e.handleCollectFees(ctx, entity.KindCollectSwapFees, ev.Ref, ev.Token, ev.FeeUsd, ev.FeeTokens, origin, out)
	case *event.AddLiquidity:
		return e.handleAddLiquidity(ctx, ev, origin, out)
	case *event.RemoveLiquidity:
		return e.handleRemoveLiquidity(ctx, ev, origin, out)
	case *event.StakeEddx:
		return e.handleStake(ctx, entity.KindStakeEddx, journal.TagStakeEddx, ev.Ref, ev.Account, ev.Token, ev.Amount, origin, out)
	case *event.UnstakeEddx:
		return e.handleStake(ctx, entity.KindUnstakeEddx, journal.TagUnstakeEddx, ev.Ref, ev.Account, ev.Token, ev.Amount, origin, out)
	case *event.StakeElp:
		return e.handleStake(ctx, entity.KindStakeElp, journal.TagStakeElp, ev.Ref, ev.Account, "", ev.Amount, origin, out)
	case *event.UnstakeElp:
		return e.handleStake(ctx, entity.KindUnstakeElp, journal.TagUnstakeElp, ev.Ref, ev.Account, "", ev.Amount, origin, out)
	default:
		return fmt.Errorf("%w: unhandled event type %T", ErrInvalidEvent, evt)
	}
}

// save stores a record and lists it in the output.
func (e *Engine) save(ctx context.Context, rec entity.Entity, out *CoreOutput) error {
	if err := e.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save %s %s: %w", rec.Kind(), rec.EntityID(), err)
	}
	out.add(rec)
	return nil
}

// record appends an order action for the event at ref.
func (e *Engine) record(ctx context.Context, ref event.Ref, account string, tag journal.Tag, params *journal.Params, out *CoreOutput) error {
	rec, err := e.recorder.Record(ctx, journal.Action{
		ID:          IdentityOf(ref),
		Account:     account,
		Tag:         tag,
		BlockNumber: ref.BlockNumber,
		Timestamp:   ref.BlockTimestamp,
		TxHash:      ref.TxHash,
		Params:      params,
	})
	if err != nil {
		return err
	}
	out.add(rec)
	return nil
}

func (e *Engine) observeTransition(t state.Transition) {
	if e.metrics != nil {
		e.metrics.LedgerTransitions.WithLabelValues(t.String()).Inc()
	}
}

// fail classifies and logs a fatal fault, then halts the engine.
func (e *Engine) fail(log zerolog.Logger, eventType, stage string, err error) error {
	reason := stage
	switch {
	case errors.Is(err, pricing.ErrUnsupportedToken):
		reason = "unsupported_token"
	case errors.Is(err, ErrOutOfOrder):
		reason = "out_of_order"
	}

	if e.metrics != nil {
		e.metrics.CoreEventsFailed.WithLabelValues(eventType, reason).Inc()
	}
	log.Error().Err(err).Str("stage", stage).Str("reason", reason).Msg("fatal fault, halting")

	e.halted = err
	return err
}

// Halted returns the fault that halted the engine, or nil.
func (e *Engine) Halted() error { return e.halted }

// LastCursor returns the last committed cursor.
func (e *Engine) LastCursor() (event.Cursor, bool) { return e.sequence.Last() }

// Processed returns the number of events applied since startup.
func (e *Engine) Processed() int64 { return e.processed }

// Ledger exposes the position ledger for read-only queries in tests.
func (e *Engine) Ledger() *state.PositionLedger { return e.ledger }
