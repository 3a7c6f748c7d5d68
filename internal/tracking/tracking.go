// Package tracking is the read side of the order lifecycle: cached order
// views, the customer-facing status timeline, the durable audit trail and
// reordering from past orders.
package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/pkg/cache"
	"github.com/bakehouse/storefront-go/internal/tracking/audit"
)

// Backend is the slice of the collaborator API tracking needs.
type Backend interface {
	Order(ctx context.Context, orderID int64) (*domain.Order, error)
	Orders(ctx context.Context) ([]*domain.Order, error)
	Reorder(ctx context.Context, orderID int64) (*domain.Cart, error)
}

// Service serves order views through a read-through cache and keeps the
// audit trail in step with what it observes.
type Service struct {
	backend Backend
	cache   cache.Cache // nil disables caching
	trail   audit.Trail // nil disables the audit trail
	ttl     time.Duration
}

func NewService(b Backend, c cache.Cache, trail audit.Trail, ttl time.Duration) *Service {
	return &Service{backend: b, cache: c, trail: trail, ttl: ttl}
}

// Order returns one order with its history and transactions. Fresh cache
// hits skip the network; fetches refresh the cache and append any newly
// observed transitions to the audit trail. A cache outage degrades to a
// plain fetch, it never fails the read.
func (s *Service) Order(ctx context.Context, orderID int64) (*domain.Order, error) {
	key := s.key(orderID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err != nil {
			slog.WarnContext(ctx, "order cache read failed", slog.Any("error", err))
		} else if raw != "" {
			var o domain.Order
			if err := json.Unmarshal([]byte(raw), &o); err == nil {
				return &o, nil
			}
		}
	}

	order, err := s.backend.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, order)

	if s.cache != nil {
		if payload, err := json.Marshal(order); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil {
				slog.WarnContext(ctx, "order cache write failed", slog.Any("error", err))
			}
		}
	}
	return order, nil
}

// Orders lists the customer's orders, newest first.
func (s *Service) Orders(ctx context.Context) ([]*domain.Order, error) {
	orders, err := s.backend.Orders(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// History returns the order's status timeline, oldest first.
func (s *Service) History(ctx context.Context, orderID int64) ([]domain.StatusLogEntry, error) {
	order, err := s.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := append([]domain.StatusLogEntry(nil), order.StatusLog...)
	sort.SliceStable(log, func(i, j int) bool {
		return log[i].Timestamp.Before(log[j].Timestamp)
	})
	return log, nil
}

// AuditTrail returns the locally recorded transitions for the order, oldest
// first.
func (s *Service) AuditTrail(ctx context.Context, orderID int64) ([]audit.Entry, error) {
	if s.trail == nil {
		return nil, nil
	}
	return s.trail.History(ctx, orderID)
}

// Reorder copies a finished order's lines into the active cart at current
// prices. Only terminal orders can be reordered; an order still moving
// through the lifecycle cannot fork.
func (s *Service) Reorder(ctx context.Context, orderID int64) (*domain.Cart, error) {
	order, err := s.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Terminal() {
		return nil, &domain.ValidationError{Field: "order", Reason: "only delivered or cancelled orders can be reordered"}
	}

	cart, err := s.backend.Reorder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, cart.ID)
	return cart, nil
}

// Invalidate drops the cached view of an order after a mutation.
func (s *Service) Invalidate(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.key(orderID)); err != nil {
		slog.WarnContext(ctx, "order cache invalidation failed",
			slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

// recordTransitions appends to the audit trail every status log entry this
// client has not seen before. Trail failures are logged, never surfaced: the
// read path does not depend on local durability.
func (s *Service) recordTransitions(ctx context.Context, order *domain.Order) {
	if s.trail == nil {
		return
	}
	known, err := s.trail.History(ctx, order.ID)
	if err != nil {
		slog.WarnContext(ctx, "audit trail read failed", slog.Any("error", err))
		return
	}
	for i := len(known); i < len(order.StatusLog); i++ {
		entry := order.StatusLog[i]
		from := domain.Status("")
		if i > 0 {
			from = order.StatusLog[i-1].NewStatus
		}
		e := audit.NewEntry(ctx, order.ID, from, entry.NewStatus, entry.Actor, entry.Note)
		e.RecordedAt = entry.Timestamp.UTC()
		if err := s.trail.Append(ctx, e); err != nil {
			slog.WarnContext(ctx, "audit trail append failed", slog.Any("error", err))
			return
		}
	}
}

func (s *Service) key(orderID int64) string {
	id := strconv.FormatInt(orderID, 10)
	if s.cache != nil {
		return s.cache.Key("order", id)
	}
	return id
}
