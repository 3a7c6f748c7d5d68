package cart

import (
	"context"
	"log/slog"

	"github.com/bakehouse/storefront-go/internal/domain"
)

// command is one optimistic cart mutation. stage validates and applies the
// change to the local cart, returning the compensation that undoes it;
// commit persists the change remotely and returns the authoritative cart.
// If commit fails, the compensation restores the staged state before the
// error surfaces, so the local cart never shows an update the collaborator
// rejected.
type command struct {
	name   string
	stage  func(c *domain.Cart) (compensate func(c *domain.Cart), err error)
	commit func(ctx context.Context) (*domain.Cart, error)
}

// run executes a command under the service's state lock, releasing it for
// the duration of the remote commit.
func (s *Service) run(ctx context.Context, cmd command) (*domain.Cart, error) {
	s.mu.Lock()
	compensate, err := cmd.stage(s.cart)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.cart.Recalculate()
	s.mu.Unlock()

	authoritative, err := cmd.commit(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "cart mutation failed, rolling back",
			slog.String("command", cmd.name), slog.Any("error", err))
		compensate(s.cart)
		s.cart.Recalculate()
		return nil, err
	}
	if authoritative != nil {
		s.cart = authoritative
	}
	return s.view(), nil
}
