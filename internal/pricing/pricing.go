package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/printforge/printforge-backend/pkg/config"
)

// Line is a priced cart or order line. Unit prices are the snapshots taken at
// add-to-cart time, never live catalog prices.
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Quote is the full price breakdown for a set of lines. All amounts are whole
// currency units.
type Quote struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// Policy carries the storefront pricing constants.
type Policy struct {
	TaxRatePercent        int64
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// PolicyFromConfig maps the loaded configuration onto a Policy.
func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		TaxRatePercent:        int64(cfg.TaxRatePercent),
		FreeShippingThreshold: int64(cfg.FreeShippingThreshold),
		FlatShippingFee:       int64(cfg.FlatShippingFee),
	}
}

// Compute produces the quote for the given lines and an already-resolved
// discount amount. It is pure: both cart recomputation and order creation call
// it and get identical numbers for identical input.
//
// Tax is rounded half away from zero on the subtotal. Shipping is waived when
// the subtotal exceeds the free-shipping threshold. The total is clamped at
// zero so an oversized discount can never produce a negative charge.
func Compute(policy Policy, lines []Line, discount int64) Quote {
	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitPrice < 0 {
			continue
		}
		subtotal += line.UnitPrice * int64(line.Quantity)
	}

	tax := roundTax(subtotal, policy.TaxRatePercent)

	shipping := policy.FlatShippingFee
	if subtotal > policy.FreeShippingThreshold {
		shipping = 0
	}
	if subtotal == 0 {
		shipping = 0
	}

	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	total := subtotal + tax + shipping - discount
	if total < 0 {
		total = 0
	}

	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}

func roundTax(subtotal, ratePercent int64) int64 {
	if subtotal <= 0 || ratePercent <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(ratePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
