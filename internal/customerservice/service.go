// Package customerservice manages business logic layer of customers.
package customerservice

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finveo/loan-bank/internal/domain"
	"github.com/finveo/loan-bank/pkg/moneypkg"
)

// Repo provides data access layer interface needed by customer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package customerservice
type Repo interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Get(ctx context.Context, id string) (*domain.Customer, error)
	Save(ctx context.Context, customer *domain.Customer) error
}

// Publisher accepts the event log drained from an aggregate after a
// successful save.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// Service facilitates customer service layer logic.
type Service struct {
	repo      Repo
	publisher Publisher
}

// New returns customer service struct to manage customer bussines logic.
func New(cr Repo, p Publisher) *Service {
	return &Service{
		repo:      cr,
		publisher: p,
	}
}

// Create creates and returns a customer with a flat credit limit.
func (s *Service) Create(ctx context.Context, firstName, lastName, email, phone string,
	creditLimit moneypkg.Money) (*domain.Customer, error) {
	customer, err := domain.NewCustomer(uuid.NewString(), firstName, lastName, email, phone, creditLimit)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.publish(ctx, customer.DrainEvents())

	return customer, nil
}

// CreateWithCreditScore creates a customer whose limit derives from the
// monthly income and credit score tier.
func (s *Service) CreateWithCreditScore(ctx context.Context, firstName, lastName, email, phone string,
	monthlyIncome moneypkg.Money, creditScore int) (*domain.Customer, error) {
	customer, err := domain.NewCustomerWithCreditScore(
		uuid.NewString(), firstName, lastName, email, phone, monthlyIncome, creditScore)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.publish(ctx, customer.DrainEvents())

	return customer, nil
}

// Get returns the customer with the given id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.Get(ctx, id)
}

// ReserveCredit reserves the amount on the customer's credit profile.
// A stale version surfaces as domain.ErrConcurrencyConflict for the
// caller to reload and retry.
func (s *Service) ReserveCredit(ctx context.Context, id string, amount moneypkg.Money) (*domain.Customer, error) {
	return s.mutate(ctx, id, func(c *domain.Customer) error {
		return c.ReserveCredit(amount)
	})
}

// ReleaseCredit releases the amount back to the customer's credit profile.
func (s *Service) ReleaseCredit(ctx context.Context, id string, amount moneypkg.Money) (*domain.Customer, error) {
	return s.mutate(ctx, id, func(c *domain.Customer) error {
		return c.ReleaseCredit(amount)
	})
}

// UpdateCreditLimit replaces the customer's credit limit.
func (s *Service) UpdateCreditLimit(ctx context.Context, id string, newLimit moneypkg.Money) (*domain.Customer, error) {
	return s.mutate(ctx, id, func(c *domain.Customer) error {
		return c.UpdateCreditLimit(newLimit)
	})
}

// UpdateCreditScore stores a new score and recomputes the credit limit.
func (s *Service) UpdateCreditScore(ctx context.Context, id string, newScore int) (*domain.Customer, error) {
	return s.mutate(ctx, id, func(c *domain.Customer) error {
		return c.UpdateCreditScore(newScore)
	})
}

// UpdateContactInformation updates email and phone, each only when the
// supplied value is valid; invalid values are skipped silently.
func (s *Service) UpdateContactInformation(ctx context.Context, id, email, phone string) (*domain.Customer, error) {
	return s.mutate(ctx, id, func(c *domain.Customer) error {
		c.UpdateContactInformation(email, phone)
		return nil
	})
}

// IsEligibleForLoan reports whether the customer can take a loan of the
// given amount.
func (s *Service) IsEligibleForLoan(ctx context.Context, id string, amount moneypkg.Money) (bool, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}

	return customer.IsEligibleForLoan(amount), nil
}

func (s *Service) mutate(ctx context.Context, id string, op func(*domain.Customer) error) (*domain.Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := op(customer); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, customer); err != nil {
		return nil, err
	}

	s.publish(ctx, customer.DrainEvents())

	return customer, nil
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
