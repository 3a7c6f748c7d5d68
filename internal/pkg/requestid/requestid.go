// Package requestid propagates per-call correlation headers on outgoing HTTP
// requests: every call carries an x-request-id, and mutating calls carry an
// x-idempotency-key so the backend can deduplicate retries.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	HeaderRequestID      = "x-request-id"
	HeaderIdempotencyKey = "x-idempotency-key"
)

// ctxKey is unexported so no other package can collide with our context keys.
type ctxKey string

const (
	ctxKeyRequestID      ctxKey = "request_id"
	ctxKeyIdempotencyKey ctxKey = "idempotency_key"
)

// WithRequestID returns a context carrying the given request id, minting one
// when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// WithIdempotencyKey returns a context carrying a fresh idempotency key for
// one mutation attempt.
func WithIdempotencyKey(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyIdempotencyKey, uuid.NewString())
}

// FromContext returns the request id in ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// IdempotencyKeyFromContext returns the idempotency key in ctx, or "".
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(ctxKeyIdempotencyKey).(string)
	return key
}

// Transport decorates a base RoundTripper with correlation headers taken
// from the request context. A request id is minted when the context carries
// none, so every outgoing call is traceable.
type Transport struct {
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	clone := req.Clone(req.Context())
	id := FromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	clone.Header.Set(HeaderRequestID, id)
	if key := IdempotencyKeyFromContext(req.Context()); key != "" {
		clone.Header.Set(HeaderIdempotencyKey, key)
	}
	return base.RoundTrip(clone)
}
