package state

// PositionState is the ledger state of one position key.
type PositionState int32

const (
	PositionStateAbsent PositionState = iota
	PositionStateOpen
)

func (s PositionState) String() string {
	switch s {
	case PositionStateAbsent:
		return "Absent"
	case PositionStateOpen:
		return "Open"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions. Every pair is reachable:
// updates open or refresh a row, terminal events remove it, and removing
// an absent key is a no-op.
func (s PositionState) CanTransitionTo(next PositionState) bool {
	validTransitions := map[PositionState][]PositionState{
		PositionStateAbsent: {
			PositionStateOpen,
			PositionStateAbsent,
		},
		PositionStateOpen: {
			PositionStateOpen,
			PositionStateAbsent,
		},
	}

	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition names what a ledger operation did.
type Transition int32

const (
	TransitionCreated   Transition = iota + 1 // absent → open
	TransitionRefreshed                       // open → open
	TransitionRemoved                         // open → absent
	TransitionNoop                            // absent → absent
)

func (t Transition) String() string {
	switch t {
	case TransitionCreated:
		return "created"
	case TransitionRefreshed:
		return "refreshed"
	case TransitionRemoved:
		return "removed"
	case TransitionNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// From and To return the states a transition moves between.
func (t Transition) From() PositionState {
	if t == TransitionRefreshed || t == TransitionRemoved {
		return PositionStateOpen
	}
	return PositionStateAbsent
}

func (t Transition) To() PositionState {
	if t == TransitionCreated || t == TransitionRefreshed {
		return PositionStateOpen
	}
	return PositionStateAbsent
}

// ValidFrom reports whether t may follow a row observed in state s.
func (t Transition) ValidFrom(s PositionState) bool {
	return t.From() == s && s.CanTransitionTo(t.To())
}
