// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity represents a stock quantity with full precision.
// Quantities are stored as Postgres NUMERIC and must never pass
// through float64 on the way to or from the ledger.
type Quantity = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use MoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MoneyFromString creates a Money value from a string.
// This is the preferred constructor for monetary values.
func MoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// QuantityFromString creates a Quantity from a string.
func QuantityFromString(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// QuantityFromInt creates a Quantity from an integer.
func QuantityFromInt(v int64) Quantity {
	return decimal.NewFromInt(v)
}

// Zero returns the zero decimal value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// MoneyScale is the scale monetary values are rounded to when a
// derived price must be stored (weighted-average transfer costing).
const MoneyScale = 2

// RoundMoney rounds a derived monetary value to MoneyScale using
// half-up rounding.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}
