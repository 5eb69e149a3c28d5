// Package customerrepo manages repository layer of customers.
package customerrepo

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/finveo/loan-bank/internal/domain"
	"github.com/finveo/loan-bank/pkg/errorspkg"
)

// RepoMem is an in-memory customer store with optimistic locking.
//
// Aggregates are deep-copied on the way in and out, so concurrent
// logical operations always work on independent instances; conflicting
// writes are detected by the version check in Save.
type RepoMem struct {
	mu        sync.Mutex
	customers map[string]*domain.Customer
}

// NewRepoMem returns an empty customer RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{customers: make(map[string]*domain.Customer)}
}

// Create stores a new customer aggregate.
func (r *RepoMem) Create(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.customers[customer.ID()]; ok {
		zerolog.Ctx(ctx).Error().Str("customer_id", customer.ID()).Msg("duplicate customer id")
		return errorspkg.ErrInternal
	}

	customer.MarkCommitted()
	r.customers[customer.ID()] = storedCopy(customer)

	return nil
}

// storedCopy clones the aggregate and strips its pending events: those
// belong to the caller, who drains and publishes them after the save.
// A later Get must hand out an aggregate with a clean event log.
func storedCopy(customer *domain.Customer) *domain.Customer {
	clone := customer.Clone()
	clone.DrainEvents()

	return clone
}

// Get returns an independent copy of the customer with the given id.
func (r *RepoMem) Get(ctx context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}

	return stored.Clone(), nil
}

// Save stores the mutated customer if it was loaded at the currently
// stored version; a stale instance fails with ErrConcurrencyConflict.
func (r *RepoMem) Save(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.customers[customer.ID()]
	if !ok {
		return domain.ErrCustomerNotFound
	}

	if stored.Version() != customer.BaseVersion() {
		zerolog.Ctx(ctx).Info().
			Str("customer_id", customer.ID()).
			Int64("stored_version", stored.Version()).
			Int64("base_version", customer.BaseVersion()).
			Msg("customer version conflict")

		return domain.ErrConcurrencyConflict
	}

	customer.MarkCommitted()
	r.customers[customer.ID()] = storedCopy(customer)

	return nil
}
