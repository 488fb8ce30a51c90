package domain

// HoldState tracks the client's view of a hold through its lifecycle.
type HoldState string

const (
	HoldNone      HoldState = "NO_HOLD"
	HoldHeld      HoldState = "HELD"
	HoldConfirmed HoldState = "CONFIRMED"
	HoldReleased  HoldState = "RELEASED"
	HoldCancelled HoldState = "CANCELLED"
)

var holdTransitions = map[HoldState][]HoldState{
	HoldNone:      {HoldHeld},
	HoldHeld:      {HoldConfirmed, HoldReleased},
	HoldConfirmed: {HoldCancelled},
}

func (s HoldState) CanTransition(to HoldState) bool {
	for _, next := range holdTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns the next state or ErrInvalidTransition.
func (s HoldState) Transition(to HoldState) (HoldState, error) {
	if !s.CanTransition(to) {
		return s, invalidTransition(string(s), string(to))
	}
	return to, nil
}

// Terminal reports whether a new hold is needed to continue booking.
func (s HoldState) Terminal() bool {
	return s == HoldReleased || s == HoldCancelled
}
