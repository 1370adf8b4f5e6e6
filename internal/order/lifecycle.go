package order

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists, for each status, the statuses an operator may move to.
// COMPLETED is terminal; removal is the only way out of it.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCompleted},
	StatusPreparing: {StatusCompleted, StatusPending},
	StatusCompleted: nil,
}

// CanTransition reports whether an order in status from may be moved to status to.
// Setting the current status again is always allowed and is a no-op.
func CanTransition(from, to Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition wrapped with context when the move is not allowed.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NextStatuses returns the status actions available to an operator for an order in status s.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsActive reports whether the order still needs the barista's attention.
func (o Order) IsActive() bool {
	return o.Status != StatusCompleted
}
