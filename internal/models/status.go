package models

// Status is an order's position in the fulfillment state machine.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusDispatched Status = "DISPATCHED"
	StatusAccepted   Status = "ACCEPTED"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"

	// StatusPickedUp is accepted at the boundary and normalized to
	// SHIPPED before any transition check.
	StatusPickedUp Status = "PICKED_UP"
)

// validNext defines every legal transition. DELIVERED is terminal.
// CANCELLED is a release, not a terminal state: the cancellation
// handler returns the order to PENDING in the same transaction.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusDispatched: true, StatusCancelled: true},
	StatusDispatched: {StatusAccepted: true, StatusShipped: true, StatusCancelled: true},
	StatusAccepted:   {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {StatusPending: true},
}

// CanTransition reports whether from -> to is a defined edge.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no transition is defined out of s.
func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}

// NormalizeStatus maps boundary aliases onto canonical states.
func NormalizeStatus(s Status) Status {
	if s == StatusPickedUp {
		return StatusShipped
	}
	return s
}
