// Package money normalizes monetary amounts. All balance math runs on
// fixed-point decimals with two fractional digits; floats never enter.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
)

// Parse reads a decimal amount from its string form and normalizes it to two
// fractional digits. Amounts must be positive.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return Normalize(amount)
}

// Normalize rounds an amount to two fractional digits and rejects
// non-positive values.
func Normalize(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// Equal reports whether two amounts are numerically equal.
func Equal(a, b decimal.Decimal) bool {
	return a.Cmp(b) == 0
}
