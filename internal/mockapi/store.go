// Package mockapi is an in-memory stand-in for the storefront backend. It
// implements the whole wire contract the client speaks — auth, cart, catalog,
// checkout, tracking, admin and wishlist — so the storefront can be exercised
// end to end without the real collaborator.
package mockapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/pricing"
)

// DeclineCeiling is the largest order total the simulated payment gateway
// accepts. Anything above it is declined at intent creation.
var DeclineCeiling = decimal.NewFromInt(5_000_000)

// product is a catalog entry with its pricing inputs.
type product struct {
	ID          int64
	Name        string
	BasePrice   decimal.Decimal
	PriceType   pricing.PriceType
	Sale        pricing.SaleConfig
	Variants    []variant
	FlavorIDs   []int64
}

type variant struct {
	ID            int64
	SizeName      string
	PriceModifier decimal.Decimal
	WeightKG      decimal.Decimal
}

// Store holds all mock state behind one lock. The mock serves a single
// account; credentials are checked, identity is not multiplexed.
type Store struct {
	mu sync.Mutex

	username string
	password string
	access   string
	refresh  string

	products  map[int64]*product
	addresses []domain.Address
	orders    map[int64]*domain.Order
	wishlist  map[int64]bool

	nextOrderID int64
	nextItemID  int64
	nextTxID    int64

	now func() time.Time
}

// NewStore seeds the mock with a small cake catalog and one customer.
func NewStore() *Store {
	s := &Store{
		username: "demo",
		password: "demo",
		products: make(map[int64]*product),
		orders:   make(map[int64]*domain.Order),
		wishlist: make(map[int64]bool),
		addresses: []domain.Address{
			{ID: 12, Label: "home", Recipient: "Demo Customer", Line: "12 Jalan Kue", City: "Jakarta", Phone: "+62-812-0000"},
			{ID: 13, Label: "office", Recipient: "Demo Customer", Line: "1 Sudirman", City: "Jakarta", Phone: "+62-812-0001"},
		},
		nextOrderID: 100,
		nextItemID:  1000,
		now:         time.Now,
	}
	s.seedCatalog()
	return s
}

func (s *Store) seedCatalog() {
	s.products[3] = &product{
		ID:        3,
		Name:      "Chocolate Fudge",
		BasePrice: decimal.NewFromInt(150000),
		PriceType: pricing.PriceTypeFixed,
		Variants: []variant{
			{ID: 31, SizeName: "16cm", PriceModifier: decimal.Zero, WeightKG: decimal.NewFromFloat(1.5)},
			{ID: 32, SizeName: "20cm", PriceModifier: decimal.NewFromInt(50000), WeightKG: decimal.NewFromFloat(2.5)},
		},
		FlavorIDs: []int64{5, 6},
	}
	s.products[4] = &product{
		ID:        4,
		Name:      "Custom Tier Cake",
		BasePrice: decimal.NewFromInt(100000),
		PriceType: pricing.PriceTypePerKG,
		Variants: []variant{
			{ID: 41, SizeName: "2.5kg", PriceModifier: decimal.NewFromInt(30000), WeightKG: decimal.NewFromFloat(2.5)},
		},
	}
	s.products[5] = &product{
		ID:        5,
		Name:      "Brownie Box",
		BasePrice: decimal.NewFromInt(90000),
		PriceType: pricing.PriceTypePerServing,
	}
}

// login verifies credentials and rotates both tokens.
func (s *Store) login(username, password string) (access, refresh string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if username != s.username || password != s.password {
		return "", "", false
	}
	s.access = "access-" + uuid.NewString()
	s.refresh = "refresh-" + uuid.NewString()
	return s.access, s.refresh, true
}

// refreshAccess exchanges a refresh token for a new access token.
func (s *Store) refreshAccess(refresh string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refresh == "" || refresh != s.refresh {
		return "", false
	}
	s.access = "access-" + uuid.NewString()
	return s.access, true
}

// validAccess reports whether the bearer token is the current one.
func (s *Store) validAccess(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token != "" && token == s.access
}

// ExpireAccess invalidates the current access token while keeping the
// refresh token usable, forcing the client through a refresh round.
func (s *Store) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = "access-" + uuid.NewString()
}

// activeCart returns the customer's CART order, creating one if needed.
// Caller must hold s.mu.
func (s *Store) activeCart() *domain.Order {
	for _, o := range s.orders {
		if o.Status == domain.StatusCart && !o.Deleted {
			return o
		}
	}
	s.nextOrderID++
	o := &domain.Order{
		ID:        s.nextOrderID,
		Status:    domain.StatusCart,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	s.orders[o.ID] = o
	return o
}

// unitPrice prices one product/variant selection at the current time.
// Caller must hold s.mu.
func (s *Store) unitPrice(p *product, variantID int64) decimal.Decimal {
	in := pricing.Input{BasePrice: p.BasePrice, Sale: p.Sale, PriceType: p.PriceType}
	if variantID != 0 {
		for _, v := range p.Variants {
			if v.ID == variantID {
				in.VariantModifier = v.PriceModifier
				break
			}
		}
	}
	return pricing.EffectiveUnitPrice(in, s.now())
}

// logTransition moves the order along the status graph and appends the
// history row. Caller must hold s.mu.
func (s *Store) logTransition(o *domain.Order, to domain.Status, actor domain.Actor, note string) error {
	status, err := domain.Transition(o.Status, to)
	if err != nil {
		return err
	}
	o.Status = status
	o.UpdatedAt = s.now().UTC()
	o.StatusLog = append(o.StatusLog, domain.StatusLogEntry{
		Timestamp: s.now().UTC(),
		NewStatus: status,
		Actor:     actor,
		Note:      note,
	})
	return nil
}

// newTransaction opens a payment attempt on the order. Caller must hold s.mu.
func (s *Store) newTransaction(o *domain.Order) *domain.Transaction {
	s.nextTxID++
	tx := domain.Transaction{
		ID:         s.nextTxID,
		OrderID:    o.ID,
		Amount:     o.TotalPrice,
		Status:     domain.TransactionPending,
		GatewayRef: fmt.Sprintf("mockpay-%s", uuid.NewString()),
		CreatedAt:  s.now().UTC(),
		UpdatedAt:  s.now().UTC(),
	}
	o.Transactions = append(o.Transactions, tx)
	return &o.Transactions[len(o.Transactions)-1]
}
