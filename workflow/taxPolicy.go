package workflow

import (
	"github.com/shopspring/decimal"
)

// TaxPolicy splits a tax-inclusive total into its net and tax parts.
// Implementations must return net + tax == total.
type TaxPolicy interface {
	Split(total decimal.Decimal) (net decimal.Decimal, tax decimal.Decimal)
}

// FlatVatPolicy applies one VAT rate to the whole total. The tax part is
// rounded to 2 decimals and the net part takes the remainder.
type FlatVatPolicy struct {
	Rate decimal.Decimal
}

func (p FlatVatPolicy) Split(total decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	tax := total.Mul(p.Rate).Round(2)
	return total.Sub(tax), tax
}

// LoyaltyPoints is floor(total / divisor). A non-positive divisor earns nothing.
func LoyaltyPoints(total decimal.Decimal, divisor decimal.Decimal) int {
	if !divisor.IsPositive() || total.IsNegative() {
		return 0
	}
	return int(total.Div(divisor).Floor().IntPart())
}
