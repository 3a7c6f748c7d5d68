// Package audit defines the local order status audit trail.
//
// Every status transition the client observes or initiates is appended here,
// one immutable row per transition. The trail serves two purposes: the
// customer-facing status timeline survives offline, and each row carries the
// trace_id of the span that observed it so a surprising transition can be
// correlated with the full distributed trace.
package audit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse/storefront-go/internal/domain"
)

// Entry is a single observed status transition of one order.
type Entry struct {
	// OrderID joins the row with the order it belongs to.
	OrderID int64

	// OldStatus is the status before the transition; empty on first sight.
	OldStatus domain.Status

	// NewStatus is the status after the transition.
	NewStatus domain.Status

	// Actor is the principal behind the change as reported by the backend.
	Actor domain.Actor

	// Note is the optional free-text annotation on the transition.
	Note string

	// TraceID and SpanID identify the OTel span active when the transition
	// was recorded, empty when there was none.
	TraceID string
	SpanID  string

	// RecordedAt is the wall-clock time the row was written.
	RecordedAt time.Time
}

// Trail is the port for persisting and reading audit entries. Rows are
// append-only; History returns them oldest-first.
type Trail interface {
	Append(ctx context.Context, e *Entry) error
	History(ctx context.Context, orderID int64) ([]Entry, error)
}

// NewEntry builds an entry stamped with the trace identifiers of the span
// active in ctx, if any.
func NewEntry(ctx context.Context, orderID int64, from, to domain.Status, actor domain.Actor, note string) *Entry {
	e := &Entry{
		OrderID:    orderID,
		OldStatus:  from,
		NewStatus:  to,
		Actor:      actor,
		Note:       note,
		RecordedAt: time.Now().UTC(),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
