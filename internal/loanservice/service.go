// Package loanservice manages business logic layer of loans.
package loanservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finveo/loan-bank/internal/domain"
	"github.com/finveo/loan-bank/internal/paymentengine"
	"github.com/finveo/loan-bank/pkg/clockpkg"
	"github.com/finveo/loan-bank/pkg/moneypkg"
)

// Repo provides data access layer interface needed by loan service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package loanservice
type Repo interface {
	Create(ctx context.Context, loan *domain.Loan) error
	Get(ctx context.Context, id string) (*domain.Loan, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error)
	Save(ctx context.Context, loan *domain.Loan) error
}

// CustomerService provides the customer operations the loan layer needs.
type CustomerService interface {
	Get(ctx context.Context, id string) (*domain.Customer, error)
	ReserveCredit(ctx context.Context, id string, amount moneypkg.Money) (*domain.Customer, error)
	ReleaseCredit(ctx context.Context, id string, amount moneypkg.Money) (*domain.Customer, error)
}

// Publisher accepts the event log drained from an aggregate after a
// successful save.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// Service facilitates loan service layer logic.
type Service struct {
	repo      Repo
	customers CustomerService
	publisher Publisher
	clock     clockpkg.Clock
}

// New returns loan service struct to manage loan bussines logic.
func New(lr Repo, cs CustomerService, p Publisher, clock clockpkg.Clock) *Service {
	return &Service{
		repo:      lr,
		customers: cs,
		publisher: p,
		clock:     clock,
	}
}

// Originate creates a loan for the customer: the principal is reserved
// on the customer's credit first, then the loan is activated and stored.
// An ineligible request stores a rejected loan and returns it together
// with domain.ErrInsufficientCredit.
func (s *Service) Originate(ctx context.Context, customerID string, principal moneypkg.Money,
	interestRate decimal.Decimal, installmentCount int) (*domain.Loan, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	loan, err := domain.NewLoan(
		uuid.NewString(), customerID, principal, interestRate, installmentCount, s.clock.Today())
	if err != nil {
		return nil, err
	}

	eligible := customer.CanBorrowAmount(principal)
	reason := "insufficient credit"

	if _, hasScore := customer.CreditScore(); hasScore {
		eligible = customer.IsEligibleForLoan(principal)

		// Credit alone would have covered it; the score is the blocker.
		if !eligible && customer.CanBorrowAmount(principal) {
			reason = "credit score below minimum"
		}
	}

	if !eligible {
		return s.reject(ctx, loan, reason)
	}

	if _, err := s.customers.ReserveCredit(ctx, customerID, principal); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredit) {
			return s.reject(ctx, loan, "insufficient credit")
		}

		return nil, err
	}

	if err := loan.Activate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, err
	}

	s.publish(ctx, loan.DrainEvents())

	return loan, nil
}

func (s *Service) reject(ctx context.Context, loan *domain.Loan, reason string) (*domain.Loan, error) {
	l := zerolog.Ctx(ctx)

	if err := loan.Reject(reason); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, err
	}

	s.publish(ctx, loan.DrainEvents())

	l.Info().Str("loan_id", loan.ID()).Str("customer_id", loan.CustomerID()).
		Str("reason", reason).Msg("loan rejected")

	return loan, domain.ErrInsufficientCredit
}

// Pay allocates the payment across the loan's installments. A zero
// paymentDate defaults to today. When the payment settles the final
// installment, the loan's principal is released back to the customer.
func (s *Service) Pay(ctx context.Context, loanID string, amount moneypkg.Money,
	paymentDate time.Time) (domain.PaymentRecord, error) {
	if paymentDate.IsZero() {
		paymentDate = s.clock.Today()
	}

	loan, err := s.repo.Get(ctx, loanID)
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	record, err := paymentengine.Allocate(loan, amount, paymentDate)
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	if err := s.repo.Save(ctx, loan); err != nil {
		return domain.PaymentRecord{}, err
	}

	s.publish(ctx, loan.DrainEvents())

	if record.LoanFullyPaid {
		if _, err := s.customers.ReleaseCredit(ctx, loan.CustomerID(), loan.Principal()); err != nil {
			// The payment is already committed; return the record so the
			// caller can retry the release without replaying the payment.
			zerolog.Ctx(ctx).Error().Err(err).
				Str("loan_id", loan.ID()).
				Str("customer_id", loan.CustomerID()).
				Msg("principal release failed after full payoff")

			return record, err
		}
	}

	return record, nil
}

// Get returns the loan with the given id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Loan, error) {
	return s.repo.Get(ctx, id)
}

// ListByCustomer returns all loans related to the customer.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// publish hands drained events to the publisher. The save has already
// committed, so a publishing failure is logged and not surfaced.
func (s *Service) publish(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}

	if err := s.publisher.Publish(ctx, events); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("events", len(events)).Msg("event publish failed")
	}
}
