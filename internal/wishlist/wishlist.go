// Package wishlist keeps the customer's wishlist membership with an
// optimistic toggle: the heart flips immediately and flips back if the
// collaborator rejects the change.
package wishlist

import (
	"context"
	"log/slog"
	"sync"
)

// Backend is the slice of the collaborator API the wishlist needs.
type Backend interface {
	ToggleWishlist(ctx context.Context, productID int64) (bool, error)
}

// Service tracks wishlist membership locally.
type Service struct {
	backend Backend

	mu      sync.Mutex
	members map[int64]bool
}

func NewService(b Backend) *Service {
	return &Service{backend: b, members: make(map[int64]bool)}
}

// Seed replaces the local membership set, e.g. from an initial listing.
func (s *Service) Seed(productIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		s.members[id] = true
	}
}

// Contains reports the local membership state.
func (s *Service) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[productID]
}

// Toggle flips a product's membership optimistically, then reconciles with
// the collaborator's answer. On failure the local state reverts and the
// error surfaces.
func (s *Service) Toggle(ctx context.Context, productID int64) (bool, error) {
	s.mu.Lock()
	prev := s.members[productID]
	s.members[productID] = !prev
	s.mu.Unlock()

	inWishlist, err := s.backend.ToggleWishlist(ctx, productID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "wishlist toggle failed, reverting",
			slog.Int64("product_id", productID), slog.Any("error", err))
		s.members[productID] = prev
		return prev, err
	}
	s.members[productID] = inWishlist
	return inWishlist, nil
}
