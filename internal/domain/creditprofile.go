package domain

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/finveo/loan-bank/pkg/moneypkg"
)

var (
	// ErrNonPositiveAmount indicates a credit operation with a zero or negative amount.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInsufficientCredit indicates a reservation exceeding the available credit.
	ErrInsufficientCredit = errors.New("insufficient credit")
	// ErrInvalidLimit indicates a limit below zero or below the used credit.
	ErrInvalidLimit = errors.New("invalid credit limit")
	// ErrInvalidCreditLimit indicates a negative limit at construction.
	ErrInvalidCreditLimit = errors.New("credit limit must not be negative")
)

// CreditProfile holds the credit limit and used credit of one customer.
//
// Every constructed value satisfies 0 <= used <= limit. All mutations
// return a new profile and leave the receiver unchanged.
type CreditProfile struct {
	limit moneypkg.Money
	used  moneypkg.Money
}

// NewCreditProfile returns a profile with the given limit and no used credit.
func NewCreditProfile(limit moneypkg.Money) (CreditProfile, error) {
	if limit.IsNegative() {
		return CreditProfile{}, ErrInvalidCreditLimit
	}

	return CreditProfile{limit: limit, used: moneypkg.Zero(limit.Currency())}, nil
}

// Limit returns the credit limit.
func (p CreditProfile) Limit() moneypkg.Money { return p.limit }

// Used returns the used credit.
func (p CreditProfile) Used() moneypkg.Money { return p.used }

// Available returns limit - used. It is derived, never stored.
func (p CreditProfile) Available() moneypkg.Money {
	// Both fields always share a currency.
	available, _ := p.limit.Sub(p.used)
	return available
}

// Reserve returns a new profile with the amount added to the used credit.
func (p CreditProfile) Reserve(amount moneypkg.Money) (CreditProfile, error) {
	if !amount.IsPositive() {
		return CreditProfile{}, ErrNonPositiveAmount
	}

	exceeds, err := amount.GreaterThan(p.Available())
	if err != nil {
		return CreditProfile{}, err
	}

	if exceeds {
		return CreditProfile{}, ErrInsufficientCredit
	}

	used, err := p.used.Add(amount)
	if err != nil {
		return CreditProfile{}, err
	}

	return CreditProfile{limit: p.limit, used: used}, nil
}

// Release returns a new profile with the amount subtracted from the used
// credit, floored at zero. Releasing more than is used is not an error.
func (p CreditProfile) Release(amount moneypkg.Money) (CreditProfile, error) {
	if !amount.IsPositive() {
		return CreditProfile{}, ErrNonPositiveAmount
	}

	used, err := p.used.Sub(amount)
	if err != nil {
		return CreditProfile{}, err
	}

	if used.IsNegative() {
		used = moneypkg.Zero(p.used.Currency())
	}

	return CreditProfile{limit: p.limit, used: used}, nil
}

// UpdateLimit returns a new profile with the limit replaced. The used
// credit is unchanged; a limit below it is rejected.
func (p CreditProfile) UpdateLimit(newLimit moneypkg.Money) (CreditProfile, error) {
	if newLimit.IsNegative() {
		return CreditProfile{}, ErrInvalidLimit
	}

	below, err := newLimit.LessThan(p.used)
	if err != nil {
		return CreditProfile{}, err
	}

	if below {
		return CreditProfile{}, ErrInvalidLimit
	}

	return CreditProfile{limit: newLimit, used: p.used}, nil
}

// CanBorrow reports whether the amount is positive and within the
// available credit. Non-positive or mismatched amounts are false, not errors.
func (p CreditProfile) CanBorrow(amount moneypkg.Money) bool {
	if !amount.IsPositive() {
		return false
	}

	c, err := amount.Compare(p.Available())
	if err != nil {
		return false
	}

	return c <= 0
}

// UtilizationRatio returns used / limit, or zero when the limit is zero.
func (p CreditProfile) UtilizationRatio() decimal.Decimal {
	if p.limit.IsZero() {
		return decimal.Zero
	}

	return p.used.Amount().DivRound(p.limit.Amount(), 2)
}
