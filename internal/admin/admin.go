// Package admin is the bulk operations surface: moving batches of orders
// through the status graph and soft-deleting them. Bulk outcomes are always
// partial by design — per-order failures are reported id by id, never
// collapsed into one error for the whole batch.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/bakehouse/storefront-go/internal/backend"
	"github.com/bakehouse/storefront-go/internal/domain"
)

var (
	// ErrNotConfirmed is returned when the confirmation hook declines a bulk
	// operation. Nothing is sent.
	ErrNotConfirmed = errors.New("admin: bulk operation not confirmed")

	// ErrBulkInFlight rejects a bulk submission while another one is still
	// running, so a double-click cannot fire the same batch twice.
	ErrBulkInFlight = errors.New("admin: another bulk operation is in flight")
)

// Backend is the slice of the collaborator API the admin surface needs.
type Backend interface {
	AdminOrders(ctx context.Context) ([]*domain.Order, error)
	BulkUpdateStatus(ctx context.Context, orderIDs []int64, status domain.Status) (backend.BulkResult, error)
	BulkSoftDelete(ctx context.Context, orderIDs []int64) (backend.BulkResult, error)
}

// Invalidator drops cached order views after a mutation. The tracking
// service satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, orderID int64)
}

// ConfirmFunc is asked before any bulk mutation is sent. A nil hook
// auto-confirms, which only makes sense in tests and scripts.
type ConfirmFunc func(ctx context.Context, action string, orderIDs []int64) (bool, error)

// Service executes admin bulk operations.
type Service struct {
	backend Backend
	views   Invalidator
	confirm ConfirmFunc

	mu       sync.Mutex
	inFlight bool
}

func NewService(b Backend, views Invalidator, confirm ConfirmFunc) *Service {
	return &Service{backend: b, views: views, confirm: confirm}
}

// Result is the reconciled outcome of one bulk operation.
type Result struct {
	UpdatedCount int
	FailedIDs    []int64
}

// BulkUpdateStatus moves the batch to the target status. Ids whose current
// status cannot reach the target are screened out locally and reported as
// failed without ever being sent; the rest go to the collaborator in one
// call. When any id fails the error is a *domain.PartialFailure carrying the
// same counts as the result, so a caller that only checks err still sees the
// split outcome.
func (s *Service) BulkUpdateStatus(ctx context.Context, orderIDs []int64, target domain.Status) (Result, error) {
	if len(orderIDs) == 0 {
		return Result{}, &domain.ValidationError{Field: "order_ids", Reason: "batch is empty"}
	}
	if !target.Valid() || target == domain.StatusCart {
		return Result{}, &domain.ValidationError{Field: "status", Reason: "not a valid target status"}
	}
	release, err := s.begin(ctx, "bulk update status", orderIDs)
	if err != nil {
		return Result{}, err
	}
	defer release()

	current, err := s.currentStatuses(ctx)
	if err != nil {
		return Result{}, err
	}

	var eligible, failed []int64
	for _, id := range orderIDs {
		from, known := current[id]
		if !known || !domain.CanTransition(from, target) {
			failed = append(failed, id)
			continue
		}
		eligible = append(eligible, id)
	}

	res := Result{FailedIDs: failed}
	if len(eligible) > 0 {
		remote, err := s.backend.BulkUpdateStatus(ctx, eligible, target)
		if err != nil {
			return Result{}, err
		}
		res.UpdatedCount = remote.UpdatedCount
		res.FailedIDs = append(res.FailedIDs, remote.FailedIDs...)
		s.invalidate(ctx, eligible)
	}
	sortIDs(res.FailedIDs)

	slog.InfoContext(ctx, "bulk status update finished",
		slog.String("target", string(target)),
		slog.Int("updated", res.UpdatedCount),
		slog.Int("failed", len(res.FailedIDs)))
	return res, s.partialErr(res)
}

// BulkSoftDelete hides the batch from listings. Records survive; soft
// deletion is reversible server-side.
func (s *Service) BulkSoftDelete(ctx context.Context, orderIDs []int64) (Result, error) {
	if len(orderIDs) == 0 {
		return Result{}, &domain.ValidationError{Field: "order_ids", Reason: "batch is empty"}
	}
	release, err := s.begin(ctx, "bulk soft delete", orderIDs)
	if err != nil {
		return Result{}, err
	}
	defer release()

	remote, err := s.backend.BulkSoftDelete(ctx, orderIDs)
	if err != nil {
		return Result{}, err
	}
	res := Result{UpdatedCount: remote.UpdatedCount, FailedIDs: remote.FailedIDs}
	sortIDs(res.FailedIDs)
	s.invalidate(ctx, orderIDs)

	slog.InfoContext(ctx, "bulk soft delete finished",
		slog.Int("deleted", res.UpdatedCount),
		slog.Int("failed", len(res.FailedIDs)))
	return res, s.partialErr(res)
}

// Orders lists all orders for the admin view.
func (s *Service) Orders(ctx context.Context) ([]*domain.Order, error) {
	return s.backend.AdminOrders(ctx)
}

// begin runs the confirmation hook and takes the in-flight slot.
func (s *Service) begin(ctx context.Context, action string, orderIDs []int64) (func(), error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBulkInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}

	if s.confirm != nil {
		ok, err := s.confirm(ctx, action, orderIDs)
		if err != nil {
			release()
			return nil, err
		}
		if !ok {
			release()
			return nil, ErrNotConfirmed
		}
	}
	return release, nil
}

func (s *Service) currentStatuses(ctx context.Context) (map[int64]domain.Status, error) {
	orders, err := s.backend.AdminOrders(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make(map[int64]domain.Status, len(orders))
	for _, o := range orders {
		statuses[o.ID] = o.Status
	}
	return statuses, nil
}

func (s *Service) invalidate(ctx context.Context, orderIDs []int64) {
	if s.views == nil {
		return
	}
	for _, id := range orderIDs {
		s.views.Invalidate(ctx, id)
	}
}

func (s *Service) partialErr(res Result) error {
	if len(res.FailedIDs) == 0 {
		return nil
	}
	return &domain.PartialFailure{UpdatedCount: res.UpdatedCount, FailedIDs: res.FailedIDs}
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
