package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra payload.
var (
	// ErrOrderNotMutable is returned when a mutation is attempted against an
	// order that is no longer in CART status.
	ErrOrderNotMutable = errors.New("order is not mutable")

	// ErrSessionExpired is raised by the auth gateway when the refresh
	// exchange itself fails. It propagates to a global sign-out and is never
	// retried.
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError is detectable locally, before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a requested status edge that does not exist
// in the transition graph. The order's status is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// IntegrationError means a collaborator violated its contract — e.g. a 2xx
// payment initiation response without a payment_url. Never recoverable by
// retrying the same call.
type IntegrationError struct {
	Op     string
	Detail string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s: collaborator contract violation: %s", e.Op, e.Detail)
}

// NetworkError wraps a transport failure (including timeouts, which are
// treated identically). Callers roll local state back and surface a retry
// affordance.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PartialFailure is the expected outcome of a bulk operation in which some
// ids could not be processed. It is never collapsed into total failure or
// total success — callers must reconcile the id lists.
type PartialFailure struct {
	UpdatedCount int
	FailedIDs    []int64
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("bulk operation updated %d orders, failed ids: %v", e.UpdatedCount, e.FailedIDs)
}
