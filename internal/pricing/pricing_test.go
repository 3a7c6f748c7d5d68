package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestEffectiveUnitPrice(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	saleWindow := SaleConfig{
		Scheduled: true,
		SalePrice: d(250000),
		Start:     now.Add(-24 * time.Hour),
		End:       now.Add(24 * time.Hour),
	}

	tests := []struct {
		name string
		in   Input
		want decimal.Decimal
	}{
		{
			name: "base plus modifier, sale disabled",
			in:   Input{BasePrice: d(300000), VariantModifier: d(50000)},
			want: d(350000),
		},
		{
			name: "active sale replaces base",
			in:   Input{BasePrice: d(300000), Sale: saleWindow},
			want: d(250000),
		},
		{
			name: "sale outside window is ignored",
			in: Input{
				BasePrice: d(300000),
				Sale: SaleConfig{
					Scheduled: true,
					SalePrice: d(250000),
					Start:     now.Add(time.Hour),
					End:       now.Add(48 * time.Hour),
				},
			},
			want: d(300000),
		},
		{
			name: "sale boundary is inclusive",
			in: Input{
				BasePrice: d(300000),
				Sale: SaleConfig{
					Scheduled: true,
					SalePrice: d(250000),
					Start:     now,
					End:       now,
				},
			},
			want: d(250000),
		},
		{
			name: "sale above base is ignored",
			in: Input{
				BasePrice: d(300000),
				Sale: SaleConfig{
					Scheduled: true,
					SalePrice: d(400000),
					Start:     saleWindow.Start,
					End:       saleWindow.End,
				},
			},
			want: d(300000),
		},
		{
			name: "unscheduled sale price has no effect",
			in: Input{
				BasePrice: d(300000),
				Sale:      SaleConfig{SalePrice: d(1)},
			},
			want: d(300000),
		},
		{
			name: "negative result floors at zero",
			in:   Input{BasePrice: d(10000), VariantModifier: d(-20000)},
			want: decimal.Zero,
		},
		{
			name: "price type does not change the arithmetic",
			in: Input{
				BasePrice:       d(100000),
				PriceType:       PriceTypePerKG,
				VariantModifier: d(30000),
			},
			want: d(130000),
		},
		{
			name: "per-serving stays plain arithmetic",
			in: Input{
				BasePrice:       d(50000),
				PriceType:       PriceTypePerServing,
				VariantModifier: d(5000),
			},
			want: d(55000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveUnitPrice(tt.in, now)
			if !got.Equal(tt.want) {
				t.Errorf("EffectiveUnitPrice = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEffectiveUnitPriceNeverNegative(t *testing.T) {
	now := time.Now()
	for base := int64(0); base <= 50000; base += 10000 {
		for mod := int64(-100000); mod <= 100000; mod += 25000 {
			got := EffectiveUnitPrice(Input{BasePrice: d(base), VariantModifier: d(mod)}, now)
			if got.IsNegative() {
				t.Fatalf("EffectiveUnitPrice(%d, %d) = %s, want >= 0", base, mod, got)
			}
		}
	}
}
