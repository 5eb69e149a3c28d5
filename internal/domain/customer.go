// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finveo/loan-bank/pkg/moneypkg"
)

var (
	// ErrCustomerNotFound indicates that the customer is not found.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrFirstNameRequired indicates a blank first name.
	ErrFirstNameRequired = errors.New("first name is required")
	// ErrLastNameRequired indicates a blank last name.
	ErrLastNameRequired = errors.New("last name is required")
	// ErrInvalidEmail indicates a syntactically invalid email.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrPhoneRequired indicates a blank phone number.
	ErrPhoneRequired = errors.New("phone is required")
	// ErrInvalidCreditScore indicates a score outside [300, 850].
	ErrInvalidCreditScore = errors.New("credit score must be between 300 and 850")
	// ErrInvalidIncome indicates a monthly income below the minimum of 1000.
	ErrInvalidIncome = errors.New("monthly income must be at least 1000")
	// ErrIncomeRequired indicates a score recomputation without a recorded income.
	ErrIncomeRequired = errors.New("monthly income not recorded")
	// ErrConcurrencyConflict indicates a stale aggregate version on save.
	ErrConcurrencyConflict = errors.New("aggregate version conflict")
)

// Credit score boundaries and limit multipliers per score tier.
const (
	minCreditScore      = 300
	maxCreditScore      = 850
	loanEligibleScore   = 600
	excellentScore      = 750
	goodScore           = 650
	excellentMultiplier = 5
	goodMultiplier      = 4
	standardMultiplier  = 3
)

var minMonthlyIncome = decimal.NewFromInt(1000)

// Customer is the aggregate root owning a credit profile.
//
// The aggregate is not safe for concurrent use; each logical operation
// works on a freshly loaded instance and conflicting writes are detected
// by the version counter at save time.
type Customer struct {
	id            string
	firstName     string
	lastName      string
	email         string
	phone         string
	profile       CreditProfile
	creditScore   *int
	monthlyIncome *moneypkg.Money
	version       int64
	baseVersion   int64
	pendingEvents []Event
}

// NewCustomer creates a customer with a flat credit limit.
func NewCustomer(id, firstName, lastName, email, phone string, creditLimit moneypkg.Money) (*Customer, error) {
	if err := validateIdentity(firstName, lastName, email, phone); err != nil {
		return nil, err
	}

	profile, err := NewCreditProfile(creditLimit)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		id:        id,
		firstName: strings.TrimSpace(firstName),
		lastName:  strings.TrimSpace(lastName),
		email:     email,
		phone:     phone,
		profile:   profile,
	}

	c.record(CustomerCreated{
		eventMeta:   newEventMeta(),
		CustomerID:  id,
		CreditLimit: creditLimit,
	})

	return c, nil
}

// NewCustomerWithCreditScore creates a customer whose credit limit is
// derived from the monthly income and the credit score tier. The score
// and income are stored for later recomputation.
func NewCustomerWithCreditScore(id, firstName, lastName, email, phone string,
	monthlyIncome moneypkg.Money, creditScore int) (*Customer, error) {
	if err := validateIdentity(firstName, lastName, email, phone); err != nil {
		return nil, err
	}

	if creditScore < minCreditScore || creditScore > maxCreditScore {
		return nil, ErrInvalidCreditScore
	}

	if monthlyIncome.Amount().LessThan(minMonthlyIncome) {
		return nil, ErrInvalidIncome
	}

	limit := monthlyIncome.MulInt(tierMultiplier(creditScore))

	c, err := NewCustomer(id, firstName, lastName, email, phone, limit)
	if err != nil {
		return nil, err
	}

	score := creditScore
	income := monthlyIncome
	c.creditScore = &score
	c.monthlyIncome = &income

	return c, nil
}

func validateIdentity(firstName, lastName, email, phone string) error {
	if strings.TrimSpace(firstName) == "" {
		return ErrFirstNameRequired
	}

	if strings.TrimSpace(lastName) == "" {
		return ErrLastNameRequired
	}

	if !validEmail(email) {
		return ErrInvalidEmail
	}

	if strings.TrimSpace(phone) == "" {
		return ErrPhoneRequired
	}

	return nil
}

// validEmail requires a non-empty local part and domain segment.
func validEmail(email string) bool {
	local, dom, ok := strings.Cut(email, "@")
	return ok && local != "" && dom != "" && !strings.Contains(dom, "@")
}

func tierMultiplier(score int) int64 {
	switch {
	case score >= excellentScore:
		return excellentMultiplier
	case score >= goodScore:
		return goodMultiplier
	default:
		return standardMultiplier
	}
}

// ID returns the customer identifier.
func (c *Customer) ID() string { return c.id }

// FirstName returns the first name.
func (c *Customer) FirstName() string { return c.firstName }

// LastName returns the last name.
func (c *Customer) LastName() string { return c.lastName }

// FullName returns the display name.
func (c *Customer) FullName() string { return c.firstName + " " + c.lastName }

// Email returns the email address.
func (c *Customer) Email() string { return c.email }

// Phone returns the phone number.
func (c *Customer) Phone() string { return c.phone }

// Profile returns the current credit profile.
func (c *Customer) Profile() CreditProfile { return c.profile }

// CreditScore returns the stored score and whether one is present.
func (c *Customer) CreditScore() (int, bool) {
	if c.creditScore == nil {
		return 0, false
	}

	return *c.creditScore, true
}

// MonthlyIncome returns the stored income and whether one is present.
func (c *Customer) MonthlyIncome() (moneypkg.Money, bool) {
	if c.monthlyIncome == nil {
		return moneypkg.Money{}, false
	}

	return *c.monthlyIncome, true
}

// Version returns the in-memory mutation counter.
func (c *Customer) Version() int64 { return c.version }

// BaseVersion returns the version this instance was loaded at. The
// persistence layer rejects a save whose base version is stale.
func (c *Customer) BaseVersion() int64 { return c.baseVersion }

// ReserveCredit reserves the amount against the available credit.
func (c *Customer) ReserveCredit(amount moneypkg.Money) error {
	profile, err := c.profile.Reserve(amount)
	if err != nil {
		return err
	}

	c.profile = profile
	c.bump()
	c.record(CreditReserved{eventMeta: newEventMeta(), CustomerID: c.id, Amount: amount})

	return nil
}

// ReleaseCredit releases the amount back, floored at zero used credit.
func (c *Customer) ReleaseCredit(amount moneypkg.Money) error {
	profile, err := c.profile.Release(amount)
	if err != nil {
		return err
	}

	c.profile = profile
	c.bump()
	c.record(CreditReleased{eventMeta: newEventMeta(), CustomerID: c.id, Amount: amount})

	return nil
}

// UpdateCreditLimit replaces the credit limit, keeping the used credit.
func (c *Customer) UpdateCreditLimit(newLimit moneypkg.Money) error {
	profile, err := c.profile.UpdateLimit(newLimit)
	if err != nil {
		return err
	}

	c.profile = profile
	c.bump()
	c.record(CreditLimitUpdated{eventMeta: newEventMeta(), CustomerID: c.id, NewLimit: newLimit})

	return nil
}

// UpdateCreditScore stores the new score and recomputes the credit limit
// from the recorded monthly income. The used credit is preserved; when
// the recomputed limit would fall below it, the limit is clamped up to
// the used credit and the emitted event flags the clamp.
func (c *Customer) UpdateCreditScore(newScore int) error {
	if newScore < minCreditScore || newScore > maxCreditScore {
		return ErrInvalidCreditScore
	}

	if c.monthlyIncome == nil {
		return ErrIncomeRequired
	}

	newLimit := c.monthlyIncome.MulInt(tierMultiplier(newScore))

	clamped := false

	if below, err := newLimit.LessThan(c.profile.Used()); err != nil {
		return err
	} else if below {
		newLimit = c.profile.Used()
		clamped = true
	}

	profile, err := c.profile.UpdateLimit(newLimit)
	if err != nil {
		return err
	}

	score := newScore
	c.creditScore = &score
	c.profile = profile
	c.bump()
	c.record(CreditScoreUpdated{
		eventMeta:    newEventMeta(),
		CustomerID:   c.id,
		NewScore:     newScore,
		NewLimit:     newLimit,
		LimitClamped: clamped,
	})

	return nil
}

// UpdateContactInformation updates email and phone independently. A
// blank or invalid value leaves that field untouched without error.
// ContactUpdated is emitted only when something changed.
func (c *Customer) UpdateContactInformation(email, phone string) {
	changed := false

	if validEmail(email) && email != c.email {
		c.email = email
		changed = true
	}

	if strings.TrimSpace(phone) != "" && phone != c.phone {
		c.phone = phone
		changed = true
	}

	if !changed {
		return
	}

	c.bump()
	c.record(ContactUpdated{eventMeta: newEventMeta(), CustomerID: c.id, Email: c.email, Phone: c.phone})
}

// CanBorrowAmount reports whether the amount fits the available credit.
func (c *Customer) CanBorrowAmount(amount moneypkg.Money) bool {
	return c.profile.CanBorrow(amount)
}

// IsEligibleForLoan requires a recorded credit score of at least 600 and
// the amount to fit the available credit. A missing or low score is
// false, not an error.
func (c *Customer) IsEligibleForLoan(amount moneypkg.Money) bool {
	if c.creditScore == nil || *c.creditScore < loanEligibleScore {
		return false
	}

	return c.profile.CanBorrow(amount)
}

// IsEligibleForCreditIncrease requires a score of at least 650 and a
// credit utilization below 70 percent.
func (c *Customer) IsEligibleForCreditIncrease() bool {
	if c.creditScore == nil || *c.creditScore < goodScore {
		return false
	}

	return c.profile.UtilizationRatio().LessThan(decimal.RequireFromString("0.70"))
}

// RiskLevel classifies the customer from score and income.
func (c *Customer) RiskLevel() string {
	if c.creditScore == nil || c.monthlyIncome == nil {
		return "UNKNOWN"
	}

	income := c.monthlyIncome.Amount()

	switch {
	case *c.creditScore >= excellentScore && income.GreaterThanOrEqual(decimal.NewFromInt(5000)):
		return "LOW"
	case *c.creditScore >= goodScore && income.GreaterThanOrEqual(decimal.NewFromInt(3000)):
		return "MEDIUM"
	default:
		return "HIGH"
	}
}

// DrainEvents returns the pending events and clears the list. Call after
// a successful save, never before.
func (c *Customer) DrainEvents() []Event {
	events := c.pendingEvents
	c.pendingEvents = nil

	return events
}

// PendingEvents returns the accumulated events without clearing them.
func (c *Customer) PendingEvents() []Event {
	return append([]Event(nil), c.pendingEvents...)
}

// MarkCommitted aligns the base version with the current version after a
// successful save.
func (c *Customer) MarkCommitted() {
	c.baseVersion = c.version
}

// Clone returns an independent deep copy of the aggregate.
func (c *Customer) Clone() *Customer {
	clone := *c

	if c.creditScore != nil {
		score := *c.creditScore
		clone.creditScore = &score
	}

	if c.monthlyIncome != nil {
		income := *c.monthlyIncome
		clone.monthlyIncome = &income
	}

	clone.pendingEvents = append([]Event(nil), c.pendingEvents...)

	return &clone
}

func (c *Customer) bump() {
	c.version++
}

func (c *Customer) record(e Event) {
	c.pendingEvents = append(c.pendingEvents, e)
}
