package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/finveo/loan-bank/pkg/moneypkg"
)

// Event is a domain event recorded by an aggregate mutation.
//
// Events accumulate on the aggregate and are drained by the caller after
// a successful save; publishing before the save commits is not allowed.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

type eventMeta struct {
	EventID string
	At      time.Time
}

func newEventMeta() eventMeta {
	return eventMeta{EventID: uuid.NewString(), At: time.Now().UTC()}
}

// OccurredAt returns the time the event was recorded.
func (m eventMeta) OccurredAt() time.Time { return m.At }

// CustomerCreated is emitted when a customer aggregate is created.
type CustomerCreated struct {
	eventMeta
	CustomerID  string
	CreditLimit moneypkg.Money
}

// EventName implements Event.
func (CustomerCreated) EventName() string { return "customer.created" }

// CreditReserved is emitted when credit is reserved against a customer.
type CreditReserved struct {
	eventMeta
	CustomerID string
	Amount     moneypkg.Money
}

// EventName implements Event.
func (CreditReserved) EventName() string { return "customer.credit_reserved" }

// CreditReleased is emitted when reserved credit is released back.
type CreditReleased struct {
	eventMeta
	CustomerID string
	Amount     moneypkg.Money
}

// EventName implements Event.
func (CreditReleased) EventName() string { return "customer.credit_released" }

// CreditLimitUpdated is emitted when the credit limit is replaced.
type CreditLimitUpdated struct {
	eventMeta
	CustomerID string
	NewLimit   moneypkg.Money
}

// EventName implements Event.
func (CreditLimitUpdated) EventName() string { return "customer.credit_limit_updated" }

// CreditScoreUpdated is emitted when the credit score changes and the
// limit is recomputed. LimitClamped reports that the recomputed limit
// was raised to the current used credit to keep the profile consistent.
type CreditScoreUpdated struct {
	eventMeta
	CustomerID   string
	NewScore     int
	NewLimit     moneypkg.Money
	LimitClamped bool
}

// EventName implements Event.
func (CreditScoreUpdated) EventName() string { return "customer.credit_score_updated" }

// ContactUpdated is emitted when email or phone change.
type ContactUpdated struct {
	eventMeta
	CustomerID string
	Email      string
	Phone      string
}

// EventName implements Event.
func (ContactUpdated) EventName() string { return "customer.contact_updated" }

// LoanOriginated is emitted when a loan aggregate is created.
type LoanOriginated struct {
	eventMeta
	LoanID     string
	CustomerID string
	Principal  moneypkg.Money
}

// EventName implements Event.
func (LoanOriginated) EventName() string { return "loan.originated" }

// LoanActivated is emitted when a pending loan is approved.
type LoanActivated struct {
	eventMeta
	LoanID     string
	CustomerID string
}

// EventName implements Event.
func (LoanActivated) EventName() string { return "loan.activated" }

// LoanRejected is emitted when a pending loan is rejected.
type LoanRejected struct {
	eventMeta
	LoanID     string
	CustomerID string
	Reason     string
}

// EventName implements Event.
func (LoanRejected) EventName() string { return "loan.rejected" }

// InstallmentPaid is emitted for every installment settled by a payment.
type InstallmentPaid struct {
	eventMeta
	LoanID     string
	Number     int
	PaidAmount moneypkg.Money
	PaidDate   time.Time
}

// EventName implements Event.
func (InstallmentPaid) EventName() string { return "loan.installment_paid" }

// LoanFullyPaid is emitted when the last unpaid installment settles.
type LoanFullyPaid struct {
	eventMeta
	LoanID     string
	CustomerID string
	Principal  moneypkg.Money
}

// EventName implements Event.
func (LoanFullyPaid) EventName() string { return "loan.fully_paid" }
