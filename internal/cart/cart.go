// Package cart manages the customer's active cart: lazy materialization,
// item mutations with optimistic local state, and price recomputation
// through the pricing engine on every change.
//
// Every mutation follows the same shape: validate locally, stage the change
// on the in-memory cart, commit it to the collaborator, and either adopt the
// collaborator's response or compensate the staged change when the commit
// fails. Mutations touching the same line are serialized through a per-key
// lock table; mutations on different lines proceed concurrently.
package cart

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bakehouse/storefront-go/internal/backend"
	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/pricing"
)

// Backend is the slice of the collaborator API the cart needs.
type Backend interface {
	ActiveCart(ctx context.Context) (*domain.Cart, error)
	Product(ctx context.Context, productID int64) (*backend.Product, error)
	AddCartItem(ctx context.Context, productID, variantID, flavorID int64, quantity int, notes string) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error)
	UpdateItemNote(ctx context.Context, itemID int64, notes string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, itemID int64) (*domain.Cart, error)
}

// Service owns the local view of the active cart.
type Service struct {
	backend Backend
	locks   *lockTable
	now     func() time.Time

	mu   sync.Mutex
	cart *domain.Cart
}

// NewService returns a cart service with no cart materialized yet; the first
// call to Active fetches (and server-side creates) it.
func NewService(b Backend) *Service {
	return &Service{
		backend: b,
		locks:   newLockTable(),
		now:     time.Now,
	}
}

// Active returns the customer's cart, fetching it on first use. The
// collaborator creates an empty cart if the customer has none. A cached
// order that is no longer a CART has been consumed and is refetched.
func (s *Service) Active(ctx context.Context) (*domain.Cart, error) {
	s.mu.Lock()
	if s.cart != nil && s.cart.Status == domain.StatusCart {
		defer s.mu.Unlock()
		return s.view(), nil
	}
	s.cart = nil
	s.mu.Unlock()

	fetched, err := s.backend.ActiveCart(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		s.cart = fetched
	}
	return s.view(), nil
}

// AddItemInput describes one line to add to the cart.
type AddItemInput struct {
	ProductID int64
	VariantID int64
	FlavorID  int64
	Quantity  int
	Notes     string
}

// AddItem validates the selection, prices it through the pricing engine and
// adds it to the cart. Adding a product/variant/flavor combination that is
// already in the cart increases that line's quantity instead of creating a
// duplicate.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*domain.Cart, error) {
	if in.Quantity < 1 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if len(in.Notes) > domain.MaxItemNoteLen {
		return nil, &domain.ValidationError{Field: "notes", Reason: fmt.Sprintf("longer than %d characters", domain.MaxItemNoteLen)}
	}
	if _, err := s.Active(ctx); err != nil {
		return nil, err
	}

	product, err := s.backend.Product(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	var variant *backend.SizeVariant
	if in.VariantID != 0 {
		if variant = product.Variant(in.VariantID); variant == nil {
			return nil, &domain.ValidationError{Field: "size_variant", Reason: "does not belong to the selected product"}
		}
	}
	if in.FlavorID != 0 && !product.HasFlavor(in.FlavorID) {
		return nil, &domain.ValidationError{Field: "flavor", Reason: "not offered for the selected product"}
	}

	priceIn := pricing.Input{
		BasePrice: product.BasePrice,
		Sale:      product.Sale,
		PriceType: product.PriceType,
	}
	if variant != nil {
		priceIn.VariantModifier = variant.PriceModifier
	}
	unitPrice := pricing.EffectiveUnitPrice(priceIn, s.now())

	release := s.locks.acquire("product/" + strconv.FormatInt(in.ProductID, 10))
	defer release()

	return s.run(ctx, command{
		name: "add_item",
		stage: func(c *domain.Cart) (func(c *domain.Cart), error) {
			for i := range c.Items {
				it := &c.Items[i]
				if it.ProductID == in.ProductID && it.VariantID == in.VariantID && it.FlavorID == in.FlavorID {
					prevQty, prevPrice := it.Quantity, it.UnitPrice
					itemID := it.ID
					it.Quantity += in.Quantity
					it.UnitPrice = unitPrice
					return func(c *domain.Cart) {
						if merged := c.Item(itemID); merged != nil {
							merged.Quantity = prevQty
							merged.UnitPrice = prevPrice
						}
					}, nil
				}
			}
			c.Items = append(c.Items, domain.OrderItem{
				ProductID: in.ProductID,
				VariantID: in.VariantID,
				FlavorID:  in.FlavorID,
				Quantity:  in.Quantity,
				Notes:     in.Notes,
				UnitPrice: unitPrice,
			})
			return func(c *domain.Cart) {
				// The staged line has no server id yet; other lines may
				// have moved while the commit was in flight, so find it by
				// selection rather than position.
				for i := len(c.Items) - 1; i >= 0; i-- {
					it := c.Items[i]
					if it.ID == 0 && it.ProductID == in.ProductID && it.VariantID == in.VariantID && it.FlavorID == in.FlavorID {
						c.Items = append(c.Items[:i], c.Items[i+1:]...)
						return
					}
				}
			}, nil
		},
		commit: func(ctx context.Context) (*domain.Cart, error) {
			return s.backend.AddCartItem(ctx, in.ProductID, in.VariantID, in.FlavorID, in.Quantity, in.Notes)
		},
	})
}

// UpdateQuantity sets a line's quantity. Quantities below 1 are rejected
// before any network call; removal is a separate, explicit operation.
func (s *Service) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1; remove the item instead"}
	}
	if _, err := s.Active(ctx); err != nil {
		return nil, err
	}

	release := s.locks.acquire(itemKey(itemID))
	defer release()

	return s.run(ctx, command{
		name: "update_quantity",
		stage: func(c *domain.Cart) (func(c *domain.Cart), error) {
			it := c.Item(itemID)
			if it == nil {
				return nil, &domain.ValidationError{Field: "item", Reason: "not in the cart"}
			}
			prev := it.Quantity
			it.Quantity = quantity
			return func(c *domain.Cart) {
				if it := c.Item(itemID); it != nil {
					it.Quantity = prev
				}
			}, nil
		},
		commit: func(ctx context.Context) (*domain.Cart, error) {
			return s.backend.UpdateItemQuantity(ctx, itemID, quantity)
		},
	})
}

// SetItemNote replaces a line's customization note.
func (s *Service) SetItemNote(ctx context.Context, itemID int64, notes string) (*domain.Cart, error) {
	if len(notes) > domain.MaxItemNoteLen {
		return nil, &domain.ValidationError{Field: "notes", Reason: fmt.Sprintf("longer than %d characters", domain.MaxItemNoteLen)}
	}
	if _, err := s.Active(ctx); err != nil {
		return nil, err
	}

	release := s.locks.acquire(itemKey(itemID))
	defer release()

	return s.run(ctx, command{
		name: "set_item_note",
		stage: func(c *domain.Cart) (func(c *domain.Cart), error) {
			it := c.Item(itemID)
			if it == nil {
				return nil, &domain.ValidationError{Field: "item", Reason: "not in the cart"}
			}
			prev := it.Notes
			it.Notes = notes
			return func(c *domain.Cart) {
				if it := c.Item(itemID); it != nil {
					it.Notes = prev
				}
			}, nil
		},
		commit: func(ctx context.Context) (*domain.Cart, error) {
			return s.backend.UpdateItemNote(ctx, itemID, notes)
		},
	})
}

// RemoveItem deletes a line from the cart. Removing a line that is already
// gone succeeds without touching the network.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) (*domain.Cart, error) {
	if _, err := s.Active(ctx); err != nil {
		return nil, err
	}

	release := s.locks.acquire(itemKey(itemID))
	defer release()

	s.mu.Lock()
	if s.cart.Item(itemID) == nil {
		defer s.mu.Unlock()
		return s.view(), nil
	}
	s.mu.Unlock()

	return s.run(ctx, command{
		name: "remove_item",
		stage: func(c *domain.Cart) (func(c *domain.Cart), error) {
			idx := -1
			for i := range c.Items {
				if c.Items[i].ID == itemID {
					idx = i
					break
				}
			}
			if idx == -1 {
				return func(c *domain.Cart) {}, nil
			}
			removed := c.Items[idx]
			c.Items = append(c.Items[:idx:idx], c.Items[idx+1:]...)
			return func(c *domain.Cart) {
				// Put the line back where it was so a failed removal does
				// not reorder the cart.
				if c.Item(removed.ID) != nil {
					return
				}
				at := idx
				if at > len(c.Items) {
					at = len(c.Items)
				}
				rest := append([]domain.OrderItem{removed}, c.Items[at:]...)
				c.Items = append(c.Items[:at:at], rest...)
			}, nil
		},
		commit: func(ctx context.Context) (*domain.Cart, error) {
			return s.backend.RemoveItem(ctx, itemID)
		},
	})
}

// Replace swaps the service's cart for an authoritative one, e.g. after a
// reorder copied lines into it.
func (s *Service) Replace(c *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = c
}

// Reset drops the cached cart. Once a checkout consumes the cart the cached
// view is stale; the next Active call fetches the customer's next cart.
func (s *Service) Reset() {
	s.Replace(nil)
}

// view returns a copy so callers never alias the service's internal state.
// Callers must hold s.mu.
func (s *Service) view() *domain.Cart {
	return &domain.Cart{Order: s.cart.Clone()}
}

func itemKey(itemID int64) string {
	return "item/" + strconv.FormatInt(itemID, 10)
}
