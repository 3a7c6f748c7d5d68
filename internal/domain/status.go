package domain

// Status is the lifecycle state of an Order. An order starts life as a CART
// and moves monotonically along the transition graph; DELIVERED and CANCELLED
// are terminal.
type Status string

const (
	StatusCart           Status = "CART"
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusProcessing     Status = "PROCESSING"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// transitions is the full set of allowed status edges. Anything not listed
// here is rejected with InvalidTransitionError — transitions are never
// silently dropped.
var transitions = map[Status][]Status{
	StatusCart:           {StatusPendingPayment},
	StatusPendingPayment: {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusDelivered, StatusCancelled},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether the edge from→to exists in the status graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the edge from→to and returns the new status, or an
// InvalidTransitionError leaving the caller's state untouched.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// Actor identifies the principal behind a status change.
type Actor string

const (
	ActorCustomer Actor = "CUSTOMER"
	ActorGateway  Actor = "PAYMENT_GATEWAY"
	ActorAdmin    Actor = "ADMIN"
)
