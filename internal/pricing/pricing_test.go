package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func storefrontPolicy() Policy {
	return Policy{
		TaxRatePercent:        18,
		FreeShippingThreshold: 999,
		FlatShippingFee:       49,
	}
}

func TestComputeFreeShippingAboveThreshold(t *testing.T) {
	quote := Compute(storefrontPolicy(), []Line{{UnitPrice: 599, Quantity: 2}}, 0)

	assert.Equal(t, int64(1198), quote.Subtotal)
	assert.Equal(t, int64(216), quote.Tax) // 215.64 rounds up
	assert.Equal(t, int64(0), quote.Shipping)
	assert.Equal(t, int64(0), quote.Discount)
	assert.Equal(t, int64(1414), quote.Total)
}

func TestComputeFlatShippingBelowThreshold(t *testing.T) {
	quote := Compute(storefrontPolicy(), []Line{{UnitPrice: 250, Quantity: 2}}, 0)

	assert.Equal(t, int64(500), quote.Subtotal)
	assert.Equal(t, int64(90), quote.Tax)
	assert.Equal(t, int64(49), quote.Shipping)
	assert.Equal(t, int64(639), quote.Total)
}

func TestComputeAppliesDiscount(t *testing.T) {
	quote := Compute(storefrontPolicy(), []Line{{UnitPrice: 599, Quantity: 2}}, 100)

	assert.Equal(t, int64(1198), quote.Subtotal)
	assert.Equal(t, int64(216), quote.Tax)
	assert.Equal(t, int64(100), quote.Discount)
	assert.Equal(t, int64(1314), quote.Total)
}

func TestComputeClampsDiscountToSubtotal(t *testing.T) {
	quote := Compute(storefrontPolicy(), []Line{{UnitPrice: 100, Quantity: 1}}, 500)

	assert.Equal(t, int64(100), quote.Subtotal)
	assert.Equal(t, int64(100), quote.Discount)
	assert.GreaterOrEqual(t, quote.Total, int64(0))
	assert.Equal(t, quote.Subtotal+quote.Tax+quote.Shipping-quote.Discount, quote.Total)
}

func TestComputeEmptyCart(t *testing.T) {
	quote := Compute(storefrontPolicy(), nil, 0)

	assert.Equal(t, Quote{}, quote)
}

func TestComputeIgnoresInvalidLines(t *testing.T) {
	quote := Compute(storefrontPolicy(), []Line{
		{UnitPrice: 100, Quantity: 1},
		{UnitPrice: 100, Quantity: 0},
		{UnitPrice: -5, Quantity: 2},
	}, 0)

	assert.Equal(t, int64(100), quote.Subtotal)
}

func TestComputeNegativeDiscountTreatedAsZero(t *testing.T) {
	quote := Compute(storefrontPolicy(), []Line{{UnitPrice: 100, Quantity: 1}}, -50)

	assert.Equal(t, int64(0), quote.Discount)
}

func TestComputeInvariantHolds(t *testing.T) {
	cases := []struct {
		lines    []Line
		discount int64
	}{
		{[]Line{{UnitPrice: 599, Quantity: 2}}, 0},
		{[]Line{{UnitPrice: 599, Quantity: 2}}, 100},
		{[]Line{{UnitPrice: 1, Quantity: 1}}, 10_000},
		{[]Line{{UnitPrice: 333, Quantity: 3}, {UnitPrice: 49, Quantity: 1}}, 75},
	}
	for _, tc := range cases {
		quote := Compute(storefrontPolicy(), tc.lines, tc.discount)
		assert.Equal(t, quote.Subtotal+quote.Tax+quote.Shipping-quote.Discount, quote.Total)
		assert.GreaterOrEqual(t, quote.Total, int64(0))
		assert.LessOrEqual(t, quote.Discount, quote.Subtotal)
	}
}
