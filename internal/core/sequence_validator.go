package core

import (
	"errors"
	"fmt"

	"PerpIndexer/internal/event"
)

// ErrOutOfOrder is a fatal ordering violation: Advance was asked to commit
// a cursor at or before the last committed one.
var ErrOutOfOrder = errors.New("event out of order")

// Verdict is the outcome of validating an event's cursor.
type Verdict int

const (
	VerdictApply  Verdict = iota // next in order, process it
	VerdictReplay                // already committed, skip and ack
)

// SequenceValidator enforces the (blockNumber, txIndex, logIndex) total
// order the upstream source guarantees.
// Not thread-safe: only accessed from the single-threaded core.
type SequenceValidator struct {
	last    event.Cursor
	hasLast bool

	replays int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{}
}

// Restore seeds the validator from a persisted checkpoint.
func (sv *SequenceValidator) Restore(c event.Cursor) {
	sv.last = c
	sv.hasLast = true
}

// Validate classifies an incoming cursor. A cursor strictly after the last
// committed one is applied. A cursor at or before it is a redelivery from
// the at-least-once transport and is skipped. The caller commits with
// Advance once the event is fully processed.
func (sv *SequenceValidator) Validate(c event.Cursor) (Verdict, error) {
	if !sv.hasLast {
		return VerdictApply, nil
	}
	if c.Compare(sv.last) > 0 {
		return VerdictApply, nil
	}
	sv.replays++
	return VerdictReplay, nil
}

// Advance commits c as the last processed cursor. Moving backwards is an
// invariant violation.
func (sv *SequenceValidator) Advance(c event.Cursor) error {
	if sv.hasLast && c.Compare(sv.last) <= 0 {
		return fmt.Errorf("%w: cursor %s not after %s", ErrOutOfOrder, c, sv.last)
	}
	sv.last = c
	sv.hasLast = true
	return nil
}

// Last returns the last committed cursor and whether one exists.
func (sv *SequenceValidator) Last() (event.Cursor, bool) {
	return sv.last, sv.hasLast
}

// Replays returns the number of skipped redeliveries.
func (sv *SequenceValidator) Replays() int64 {
	return sv.replays
}
