package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finveo/loan-bank/pkg/moneypkg"
)

var (
	// ErrLoanNotFound indicates that the loan is not found.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrInvalidPrincipal indicates a zero or negative principal.
	ErrInvalidPrincipal = errors.New("principal must be positive")
	// ErrInvalidInterestRate indicates a rate outside [0.10, 0.50].
	ErrInvalidInterestRate = errors.New("interest rate must be between 0.1 and 0.5")
	// ErrInvalidInstallmentCount indicates a count other than 6, 9, 12 or 24.
	ErrInvalidInstallmentCount = errors.New("number of installments must be 6, 9, 12 or 24")
	// ErrLoanNotPending indicates a lifecycle transition from a non-pending status.
	ErrLoanNotPending = errors.New("loan is not pending")
	// ErrLoanNotActive indicates a payment against a non-active loan.
	ErrLoanNotActive = errors.New("loan is not active")
	// ErrInstallmentNotFound indicates an unknown installment number.
	ErrInstallmentNotFound = errors.New("installment not found")
	// ErrInstallmentAlreadyPaid indicates a repeated settlement of one installment.
	ErrInstallmentAlreadyPaid = errors.New("installment already paid")
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

// Loan lifecycle states. FullyPaid and Rejected are terminal.
const (
	StatusPending   LoanStatus = "PENDING"
	StatusActive    LoanStatus = "ACTIVE"
	StatusFullyPaid LoanStatus = "FULLY_PAID"
	StatusRejected  LoanStatus = "REJECTED"
)

var (
	minInterestRate = decimal.RequireFromString("0.10")
	maxInterestRate = decimal.RequireFromString("0.50")

	allowedInstallmentCounts = []int{6, 9, 12, 24}
)

// LoanInstallment is one scheduled repayment of a loan. Installments are
// settled whole and strictly in due-date order; a partially paid
// installment never exists.
type LoanInstallment struct {
	Number     int
	AmountDue  moneypkg.Money
	DueDate    time.Time
	PaidAmount moneypkg.Money
	PaidDate   *time.Time
	Paid       bool
}

// Loan is the aggregate root for a single loan and its schedule.
type Loan struct {
	id               string
	customerID       string
	principal        moneypkg.Money
	interestRate     decimal.Decimal
	installmentCount int
	totalAmount      moneypkg.Money
	installments     []LoanInstallment
	status           LoanStatus
	version          int64
	baseVersion      int64
	pendingEvents    []Event
}

// NewLoan creates a pending loan with its full installment schedule.
// The total repayable amount is principal * (1 + rate), split evenly
// over the installments with the rounding remainder folded into the
// last one. Due dates are monthly, starting one month after startDate.
func NewLoan(id, customerID string, principal moneypkg.Money, interestRate decimal.Decimal,
	installmentCount int, startDate time.Time) (*Loan, error) {
	if !principal.IsPositive() {
		return nil, ErrInvalidPrincipal
	}

	if interestRate.LessThan(minInterestRate) || interestRate.GreaterThan(maxInterestRate) {
		return nil, ErrInvalidInterestRate
	}

	if !allowedInstallmentCount(installmentCount) {
		return nil, ErrInvalidInstallmentCount
	}

	total := principal.Mul(decimal.NewFromInt(1).Add(interestRate))

	l := &Loan{
		id:               id,
		customerID:       customerID,
		principal:        principal,
		interestRate:     interestRate,
		installmentCount: installmentCount,
		totalAmount:      total,
		status:           StatusPending,
	}

	if err := l.generateSchedule(startDate); err != nil {
		return nil, err
	}

	l.record(LoanOriginated{
		eventMeta:  newEventMeta(),
		LoanID:     id,
		CustomerID: customerID,
		Principal:  principal,
	})

	return l, nil
}

func allowedInstallmentCount(n int) bool {
	for _, c := range allowedInstallmentCounts {
		if c == n {
			return true
		}
	}

	return false
}

func (l *Loan) generateSchedule(startDate time.Time) error {
	n := int64(l.installmentCount)
	each := l.totalAmount.DivInt(n)

	allButLast := each.MulInt(n - 1)

	last, err := l.totalAmount.Sub(allButLast)
	if err != nil {
		return err
	}

	due := startDate
	l.installments = make([]LoanInstallment, 0, l.installmentCount)

	for i := 1; i <= l.installmentCount; i++ {
		due = due.AddDate(0, 1, 0)

		amount := each
		if i == l.installmentCount {
			amount = last
		}

		l.installments = append(l.installments, LoanInstallment{
			Number:     i,
			AmountDue:  amount,
			DueDate:    due,
			PaidAmount: moneypkg.Zero(l.principal.Currency()),
		})
	}

	return nil
}

// ID returns the loan identifier.
func (l *Loan) ID() string { return l.id }

// CustomerID returns the owning customer's identifier. The loan only
// relates to the customer; it never mutates the customer aggregate.
func (l *Loan) CustomerID() string { return l.customerID }

// Principal returns the borrowed amount.
func (l *Loan) Principal() moneypkg.Money { return l.principal }

// InterestRate returns the flat interest rate.
func (l *Loan) InterestRate() decimal.Decimal { return l.interestRate }

// InstallmentCount returns the number of scheduled installments.
func (l *Loan) InstallmentCount() int { return l.installmentCount }

// TotalAmount returns principal * (1 + rate).
func (l *Loan) TotalAmount() moneypkg.Money { return l.totalAmount }

// Status returns the lifecycle state.
func (l *Loan) Status() LoanStatus { return l.status }

// Version returns the in-memory mutation counter.
func (l *Loan) Version() int64 { return l.version }

// BaseVersion returns the version this instance was loaded at.
func (l *Loan) BaseVersion() int64 { return l.baseVersion }

// Installments returns a copy of the schedule in due-date order.
func (l *Loan) Installments() []LoanInstallment {
	return append([]LoanInstallment(nil), l.installments...)
}

// Activate transitions a pending loan to active once credit is reserved.
func (l *Loan) Activate() error {
	if l.status != StatusPending {
		return ErrLoanNotPending
	}

	l.status = StatusActive
	l.bump()
	l.record(LoanActivated{eventMeta: newEventMeta(), LoanID: l.id, CustomerID: l.customerID})

	return nil
}

// Reject transitions a pending loan to the terminal rejected state.
func (l *Loan) Reject(reason string) error {
	if l.status != StatusPending {
		return ErrLoanNotPending
	}

	l.status = StatusRejected
	l.bump()
	l.record(LoanRejected{eventMeta: newEventMeta(), LoanID: l.id, CustomerID: l.customerID, Reason: reason})

	return nil
}

// PayInstallment settles one installment in full with the adjusted
// amount. When the last unpaid installment settles, the loan becomes
// fully paid and LoanFullyPaid is recorded.
func (l *Loan) PayInstallment(number int, paidAmount moneypkg.Money, paidDate time.Time) error {
	if l.status != StatusActive {
		return ErrLoanNotActive
	}

	idx := -1

	for i := range l.installments {
		if l.installments[i].Number == number {
			idx = i
			break
		}
	}

	if idx < 0 {
		return ErrInstallmentNotFound
	}

	if l.installments[idx].Paid {
		return ErrInstallmentAlreadyPaid
	}

	date := paidDate
	l.installments[idx].Paid = true
	l.installments[idx].PaidAmount = paidAmount
	l.installments[idx].PaidDate = &date
	l.bump()
	l.record(InstallmentPaid{
		eventMeta:  newEventMeta(),
		LoanID:     l.id,
		Number:     number,
		PaidAmount: paidAmount,
		PaidDate:   paidDate,
	})

	if l.IsFullyPaid() {
		l.status = StatusFullyPaid
		l.record(LoanFullyPaid{
			eventMeta:  newEventMeta(),
			LoanID:     l.id,
			CustomerID: l.customerID,
			Principal:  l.principal,
		})
	}

	return nil
}

// IsFullyPaid reports whether every installment is settled.
func (l *Loan) IsFullyPaid() bool {
	for i := range l.installments {
		if !l.installments[i].Paid {
			return false
		}
	}

	return true
}

// RemainingInstallments returns the number of unpaid installments.
func (l *Loan) RemainingInstallments() int {
	n := 0

	for i := range l.installments {
		if !l.installments[i].Paid {
			n++
		}
	}

	return n
}

// RemainingAmount returns the sum of unpaid installment amounts.
func (l *Loan) RemainingAmount() moneypkg.Money {
	remaining := moneypkg.Zero(l.principal.Currency())

	for i := range l.installments {
		if l.installments[i].Paid {
			continue
		}

		// Schedule amounts always share the loan currency.
		remaining, _ = remaining.Add(l.installments[i].AmountDue)
	}

	return remaining
}

// OverdueInstallments returns unpaid installments due before today.
func (l *Loan) OverdueInstallments(today time.Time) []LoanInstallment {
	var overdue []LoanInstallment

	for i := range l.installments {
		if !l.installments[i].Paid && l.installments[i].DueDate.Before(today) {
			overdue = append(overdue, l.installments[i])
		}
	}

	return overdue
}

// DrainEvents returns the pending events and clears the list.
func (l *Loan) DrainEvents() []Event {
	events := l.pendingEvents
	l.pendingEvents = nil

	return events
}

// PendingEvents returns the accumulated events without clearing them.
func (l *Loan) PendingEvents() []Event {
	return append([]Event(nil), l.pendingEvents...)
}

// MarkCommitted aligns the base version with the current version after a
// successful save.
func (l *Loan) MarkCommitted() {
	l.baseVersion = l.version
}

// Clone returns an independent deep copy of the aggregate.
func (l *Loan) Clone() *Loan {
	clone := *l
	clone.installments = make([]LoanInstallment, len(l.installments))

	for i, inst := range l.installments {
		if inst.PaidDate != nil {
			date := *inst.PaidDate
			inst.PaidDate = &date
		}

		clone.installments[i] = inst
	}

	clone.pendingEvents = append([]Event(nil), l.pendingEvents...)

	return &clone
}

func (l *Loan) bump() {
	l.version++
}

func (l *Loan) record(e Event) {
	l.pendingEvents = append(l.pendingEvents, e)
}
