// Package paymentengine allocates a payment across a loan's installments.
package paymentengine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finveo/loan-bank/internal/domain"
	"github.com/finveo/loan-bank/pkg/clockpkg"
	"github.com/finveo/loan-bank/pkg/moneypkg"
)

// Daily adjustment of 0.1% of the installment amount per day early or late.
var dailyAdjustmentRate = decimal.RequireFromString("0.001")

// Installments due more than this many calendar months after the payment
// date cannot be prepaid yet.
const advanceCeilingMonths = 3

// Allocate applies the payment amount to the loan's unpaid installments
// in ascending due-date order and returns the allocation outcome.
//
// Each candidate installment is settled at its adjusted amount: 0.1% of
// the amount due per day is discounted when paying early and added when
// paying late. An installment is either settled in full or left
// untouched; allocation stops at the first installment the remaining
// amount cannot cover, and never reaches past the three-calendar-month
// advance-payment ceiling. When the final installment settles, the loan
// transitions to fully paid and the record signals the caller to release
// the reserved principal.
func Allocate(loan *domain.Loan, payment moneypkg.Money, paymentDate time.Time) (domain.PaymentRecord, error) {
	if loan.Status() != domain.StatusActive {
		return domain.PaymentRecord{}, domain.ErrLoanNotActive
	}

	if !payment.IsPositive() {
		return domain.PaymentRecord{}, domain.ErrInvalidPaymentAmount
	}

	if payment.Currency() != loan.Principal().Currency() {
		return domain.PaymentRecord{}, moneypkg.ErrCurrencyMismatch
	}

	payDay := clockpkg.Midnight(paymentDate)
	ceiling := payDay.AddDate(0, advanceCeilingMonths, 0)

	installments := loan.Installments()
	sort.Slice(installments, func(i, j int) bool {
		return installments[i].DueDate.Before(installments[j].DueDate)
	})

	record := domain.PaymentRecord{
		PaymentID:       uuid.NewString(),
		LoanID:          loan.ID(),
		PaymentDate:     payDay,
		TotalSpent:      moneypkg.Zero(payment.Currency()),
		TotalAdjustment: moneypkg.Zero(payment.Currency()),
	}

	remaining := payment

	for _, inst := range installments {
		if inst.Paid {
			continue
		}

		if inst.DueDate.After(ceiling) {
			break
		}

		adjusted := adjustedAmount(inst.AmountDue, inst.DueDate, payDay)

		covered, err := remaining.GreaterThanOrEqual(adjusted)
		if err != nil {
			return domain.PaymentRecord{}, err
		}

		if !covered {
			break
		}

		if err := loan.PayInstallment(inst.Number, adjusted, payDay); err != nil {
			return domain.PaymentRecord{}, err
		}

		remaining, err = remaining.Sub(adjusted)
		if err != nil {
			return domain.PaymentRecord{}, err
		}

		record.TotalSpent, err = record.TotalSpent.Add(adjusted)
		if err != nil {
			return domain.PaymentRecord{}, err
		}

		adjustment, err := inst.AmountDue.Sub(adjusted)
		if err != nil {
			return domain.PaymentRecord{}, err
		}

		record.TotalAdjustment, err = record.TotalAdjustment.Add(adjustment)
		if err != nil {
			return domain.PaymentRecord{}, err
		}

		record.InstallmentsPaid = append(record.InstallmentsPaid, inst.Number)
	}

	record.LoanFullyPaid = loan.IsFullyPaid()

	return record, nil
}

// adjustedAmount applies the linear early-payment discount or
// late-payment penalty of 0.1% of the amount due per day.
func adjustedAmount(amountDue moneypkg.Money, dueDate, paymentDate time.Time) moneypkg.Money {
	days := daysBetween(paymentDate, dueDate)
	if days == 0 {
		return amountDue
	}

	delta := amountDue.Mul(dailyAdjustmentRate.Mul(decimal.NewFromInt(abs(days))))

	if days > 0 {
		// Early: discount.
		adjusted, _ := amountDue.Sub(delta)
		return adjusted
	}

	// Late: penalty.
	adjusted, _ := amountDue.Add(delta)

	return adjusted
}

// daysBetween returns the signed number of whole days from a to b, both
// normalized to midnight UTC.
func daysBetween(a, b time.Time) int64 {
	return int64(clockpkg.Midnight(b).Sub(clockpkg.Midnight(a)).Hours() / 24)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}

	return n
}
