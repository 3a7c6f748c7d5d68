// Package pricing computes the effective unit price of a product variant at
// a point in time. It is pure: no I/O, fully deterministic, and must be
// re-invoked whenever the selected variant or the base price changes.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceType annotates how a base price is displayed (whole cake, per kg, per
// serving). It is a display unit only and never changes the arithmetic.
type PriceType string

const (
	PriceTypeFixed      PriceType = "FIXED"
	PriceTypePerKG      PriceType = "PER_KG"
	PriceTypePerServing PriceType = "PER_SERVING"
)

// SaleConfig is a product's scheduled-sale window. A sale applies only when
// Scheduled is set, now falls within [Start, End] inclusive, and SalePrice is
// strictly below the base price.
type SaleConfig struct {
	Scheduled bool
	SalePrice decimal.Decimal
	Start     time.Time
	End       time.Time
}

// activeAt reports whether the sale window covers the given instant.
func (s SaleConfig) activeAt(now time.Time) bool {
	if !s.Scheduled {
		return false
	}
	return !now.Before(s.Start) && !now.After(s.End)
}

// Input carries everything the engine needs for one computation.
type Input struct {
	BasePrice decimal.Decimal
	Sale      SaleConfig
	PriceType PriceType

	// VariantModifier is the selected size variant's price delta. May be
	// negative.
	VariantModifier decimal.Decimal
}

// EffectiveUnitPrice computes the unit price for in at the given instant:
// the sale price replaces the base when the sale is active and cheaper, the
// variant modifier is added on top, and the result is floored at zero.
func EffectiveUnitPrice(in Input, now time.Time) decimal.Decimal {
	base := in.BasePrice
	if in.Sale.activeAt(now) && in.Sale.SalePrice.LessThan(in.BasePrice) {
		base = in.Sale.SalePrice
	}

	price := base.Add(in.VariantModifier)
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price
}
