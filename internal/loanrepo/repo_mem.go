// Package loanrepo manages repository layer of loans.
package loanrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/finveo/loan-bank/internal/domain"
	"github.com/finveo/loan-bank/pkg/errorspkg"
)

// RepoMem is an in-memory loan store with optimistic locking.
type RepoMem struct {
	mu    sync.Mutex
	loans map[string]*domain.Loan
}

// NewRepoMem returns an empty loan RepoMem.
func NewRepoMem() *RepoMem {
	return &RepoMem{loans: make(map[string]*domain.Loan)}
}

// Create stores a new loan aggregate.
func (r *RepoMem) Create(ctx context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loans[loan.ID()]; ok {
		zerolog.Ctx(ctx).Error().Str("loan_id", loan.ID()).Msg("duplicate loan id")
		return errorspkg.ErrInternal
	}

	loan.MarkCommitted()
	r.loans[loan.ID()] = storedCopy(loan)

	return nil
}

// storedCopy clones the aggregate and strips its pending events: those
// belong to the caller, who drains and publishes them after the save.
// A later Get must hand out an aggregate with a clean event log.
func storedCopy(loan *domain.Loan) *domain.Loan {
	clone := loan.Clone()
	clone.DrainEvents()

	return clone
}

// Get returns an independent copy of the loan with the given id.
func (r *RepoMem) Get(ctx context.Context, id string) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}

	return stored.Clone(), nil
}

// ListByCustomer returns copies of all loans related to the customer,
// ordered by loan id for a stable result.
func (r *RepoMem) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := []*domain.Loan{}

	for _, stored := range r.loans {
		if stored.CustomerID() == customerID {
			items = append(items, stored.Clone())
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID() < items[j].ID() })

	return items, nil
}

// Save stores the mutated loan if it was loaded at the currently stored
// version; a stale instance fails with ErrConcurrencyConflict.
func (r *RepoMem) Save(ctx context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.loans[loan.ID()]
	if !ok {
		return domain.ErrLoanNotFound
	}

	if stored.Version() != loan.BaseVersion() {
		zerolog.Ctx(ctx).Info().
			Str("loan_id", loan.ID()).
			Int64("stored_version", stored.Version()).
			Int64("base_version", loan.BaseVersion()).
			Msg("loan version conflict")

		return domain.ErrConcurrencyConflict
	}

	loan.MarkCommitted()
	r.loans[loan.ID()] = storedCopy(loan)

	return nil
}
