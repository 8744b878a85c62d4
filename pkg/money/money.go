// Package money provides integer minor-unit amounts and formatting helpers.
//
// Amounts are carried through the cart and checkout as int64 minor units to
// keep arithmetic exact; decimal conversion happens only at the display and
// storage boundaries.
package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor currency units (e.g. cents). The
// currency exponent is configuration: 2 for USD-like currencies, 0 for VND,
// where one unit is one dong.
type Amount int64

// Mul returns the line total for qty units at this unit price.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// Decimal converts the amount to a decimal in major units for the given
// currency exponent (2 for USD cents, 0 for VND).
func (a Amount) Decimal(exponent int32) decimal.Decimal {
	return decimal.New(int64(a), -exponent)
}

// FromDecimal converts a major-unit decimal into minor units, rounding half
// away from zero at the exponent boundary.
func FromDecimal(d decimal.Decimal, exponent int32) Amount {
	return Amount(d.Shift(exponent).Round(0).IntPart())
}

// Format renders the amount in major units with the currency code appended,
// e.g. Format(150000, 0, "VND") == "150000 VND".
func Format(a Amount, exponent int32, currency string) string {
	s := a.Decimal(exponent).StringFixed(exponent)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
