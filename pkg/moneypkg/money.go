// Package moneypkg provides an immutable decimal money value type.
package moneypkg

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch indicates arithmetic between two different currencies.
	ErrCurrencyMismatch = errors.New("money currency mismatch")
	// ErrInvalidAmount indicates an unparsable amount.
	ErrInvalidAmount = errors.New("invalid money amount")
)

// Money holds a monetary amount in a single currency.
//
// Amounts are kept at scale 2, rounded half up on construction and
// multiplication. The zero value is 0 with an empty currency and should
// not be mixed with real amounts.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New returns Money with the given amount rounded to two decimal places.
func New(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount.Round(2), currency: currency}
}

// NewFromString parses amount and returns Money in the given currency.
func NewFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}

	return New(d, currency), nil
}

// Zero returns zero Money in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() string {
	return m.currency
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return ErrCurrencyMismatch
	}

	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}

	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}

	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}, nil
}

// Mul returns m scaled by the given factor, rounded to two decimal places.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor).Round(2), currency: m.currency}
}

// MulInt returns m scaled by the given integer factor.
func (m Money) MulInt(factor int64) Money {
	return m.Mul(decimal.NewFromInt(factor))
}

// DivInt returns m divided by the given integer, rounded to two decimal places.
func (m Money) DivInt(divisor int64) Money {
	return Money{
		amount:   m.amount.DivRound(decimal.NewFromInt(divisor), 2),
		currency: m.currency,
	}
}

// Neg returns m with the sign flipped.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Compare returns -1, 0 or 1 ordering m against o.
func (m Money) Compare(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}

	return m.amount.Cmp(o.amount), nil
}

// GreaterThan reports whether m > o.
func (m Money) GreaterThan(o Money) (bool, error) {
	c, err := m.Compare(o)
	return c > 0, err
}

// GreaterThanOrEqual reports whether m >= o.
func (m Money) GreaterThanOrEqual(o Money) (bool, error) {
	c, err := m.Compare(o)
	return c >= 0, err
}

// LessThan reports whether m < o.
func (m Money) LessThan(o Money) (bool, error) {
	c, err := m.Compare(o)
	return c < 0, err
}

// Equal reports whether m and o have the same currency and amount.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether the amount is less than zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// String formats the amount at scale 2 followed by the currency code.
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}
