package domain

import (
	"errors"
	"time"

	"github.com/finveo/loan-bank/pkg/moneypkg"
)

// ErrInvalidPaymentAmount indicates a zero or negative payment amount.
var ErrInvalidPaymentAmount = errors.New("payment amount must be positive")

// PaymentRecord is the immutable outcome of one payment allocation.
//
// TotalAdjustment is the sum of (amount due - adjusted amount) over the
// settled installments: positive for a net early-payment discount,
// negative for a net late-payment penalty.
type PaymentRecord struct {
	PaymentID        string
	LoanID           string
	PaymentDate      time.Time
	InstallmentsPaid []int
	TotalSpent       moneypkg.Money
	TotalAdjustment  moneypkg.Money
	LoanFullyPaid    bool
}
