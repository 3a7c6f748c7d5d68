package backend

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/pricing"
)

// Wire DTOs for the storefront backend. Field names follow the collaborator's
// snake_case convention; money travels as decimal strings.

type orderDTO struct {
	ID           int64             `json:"id"`
	OrderNumber  string            `json:"order_number,omitempty"`
	Status       string            `json:"status"`
	Items        []orderItemDTO    `json:"items"`
	AddressID    int64             `json:"address_id,omitempty"`
	DeliveryAt   *time.Time        `json:"delivery_datetime,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	TotalPrice   decimal.Decimal   `json:"total_price"`
	DeliveryFee  decimal.Decimal   `json:"delivery_fee"`
	IsDeleted    bool              `json:"is_deleted,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	StatusLogs   []statusLogDTO    `json:"status_logs,omitempty"`
	Transactions []transactionDTO  `json:"transactions,omitempty"`
}

type orderItemDTO struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	SizeVariant  int64           `json:"size_variant,omitempty"`
	Flavor       int64           `json:"flavor,omitempty"`
	Quantity     int             `json:"quantity"`
	Notes        string          `json:"notes,omitempty"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

type statusLogDTO struct {
	Timestamp time.Time `json:"timestamp"`
	NewStatus string    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Notes     string    `json:"notes,omitempty"`
}

type transactionDTO struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	GatewayRef string          `json:"gateway_reference_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type addressDTO struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Recipient string `json:"recipient"`
	Line      string `json:"line"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
}

type productDTO struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	BasePrice   decimal.Decimal   `json:"base_price"`
	PriceType   string            `json:"price_type"`
	SalePrice   decimal.Decimal   `json:"sale_price"`
	SaleEnabled bool              `json:"schedule_sale_enabled"`
	SaleStart   *time.Time        `json:"sale_start_date,omitempty"`
	SaleEnd     *time.Time        `json:"sale_end_date,omitempty"`
	Variants    []sizeVariantDTO  `json:"size_variants"`
	FlavorIDs   []int64           `json:"flavor_ids"`
}

type sizeVariantDTO struct {
	ID            int64           `json:"id"`
	SizeName      string          `json:"size_name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	WeightKG      decimal.Decimal `json:"estimated_weight_kg"`
}

type addItemRequest struct {
	ProductID   int64  `json:"product_id"`
	SizeVariant int64  `json:"size_variant,omitempty"`
	Flavor      int64  `json:"flavor,omitempty"`
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type noteRequest struct {
	Notes string `json:"notes"`
}

type checkoutRequest struct {
	AddressID        int64     `json:"address_id"`
	DeliveryDatetime time.Time `json:"delivery_datetime"`
	Notes            string    `json:"notes,omitempty"`
}

type paymentInitiationResponse struct {
	PaymentURL string `json:"payment_url"`
}

type bulkStatusRequest struct {
	OrderIDs []int64 `json:"order_ids"`
	Status   string  `json:"status"`
}

type bulkDeleteRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

type bulkResponse struct {
	Detail       string  `json:"detail"`
	UpdatedCount int     `json:"updated_count"`
	DeletedCount int     `json:"deleted_count"`
	FailedIDs    []int64 `json:"failed_ids"`
}

type wishlistToggleResponse struct {
	InWishlist bool `json:"in_wishlist"`
}

// errorResponse is the collaborator's error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (d *orderDTO) toDomain() *domain.Order {
	o := &domain.Order{
		ID:          d.ID,
		Status:      domain.Status(d.Status),
		AddressID:   d.AddressID,
		DeliveryAt:  d.DeliveryAt,
		Notes:       d.Notes,
		TotalPrice:  d.TotalPrice,
		DeliveryFee: d.DeliveryFee,
		Deleted:     d.IsDeleted,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.SizeVariant,
			FlavorID:  it.Flavor,
			Quantity:  it.Quantity,
			Notes:     it.Notes,
			UnitPrice: it.PriceAtOrder,
		})
	}
	for _, l := range d.StatusLogs {
		o.StatusLog = append(o.StatusLog, domain.StatusLogEntry{
			Timestamp: l.Timestamp,
			NewStatus: domain.Status(l.NewStatus),
			Actor:     domain.Actor(l.ChangedBy),
			Note:      l.Notes,
		})
	}
	for _, tx := range d.Transactions {
		o.Transactions = append(o.Transactions, domain.Transaction{
			ID:         tx.ID,
			OrderID:    tx.OrderID,
			Amount:     tx.Amount,
			Status:     domain.TransactionStatus(tx.Status),
			GatewayRef: tx.GatewayRef,
			CreatedAt:  tx.CreatedAt,
			UpdatedAt:  tx.UpdatedAt,
		})
	}
	return o
}

func (d *addressDTO) toDomain() domain.Address {
	return domain.Address{
		ID:        d.ID,
		Label:     d.Label,
		Recipient: d.Recipient,
		Line:      d.Line,
		City:      d.City,
		Phone:     d.Phone,
	}
}

// Product is the catalog view the cart needs for pricing and variant
// validation.
type Product struct {
	ID        int64
	Name      string
	BasePrice decimal.Decimal
	PriceType pricing.PriceType
	Sale      pricing.SaleConfig
	Variants  []SizeVariant
	FlavorIDs []int64
}

// SizeVariant is one size option of a product with its price delta.
type SizeVariant struct {
	ID            int64
	SizeName      string
	PriceModifier decimal.Decimal
	WeightKG      decimal.Decimal
}

// Variant returns the variant with the given id, or nil — the caller uses
// this to check that a selected variant actually belongs to the product.
func (p *Product) Variant(id int64) *SizeVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// HasFlavor reports whether the product offers the given flavor.
func (p *Product) HasFlavor(id int64) bool {
	for _, f := range p.FlavorIDs {
		if f == id {
			return true
		}
	}
	return false
}

func (d *productDTO) toDomain() *Product {
	sale := pricing.SaleConfig{
		Scheduled: d.SaleEnabled,
		SalePrice: d.SalePrice,
	}
	if d.SaleStart != nil {
		sale.Start = *d.SaleStart
	}
	if d.SaleEnd != nil {
		sale.End = *d.SaleEnd
	}
	p := &Product{
		ID:        d.ID,
		Name:      d.Name,
		BasePrice: d.BasePrice,
		PriceType: pricing.PriceType(d.PriceType),
		Sale:      sale,
		FlavorIDs: d.FlavorIDs,
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, SizeVariant{
			ID:            v.ID,
			SizeName:      v.SizeName,
			PriceModifier: v.PriceModifier,
			WeightKG:      v.WeightKG,
		})
	}
	return p
}

// BulkResult is the reconciled outcome of an admin bulk operation.
type BulkResult struct {
	UpdatedCount int
	FailedIDs    []int64
}
