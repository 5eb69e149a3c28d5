package loanservice

import (
	"context"
	"errors"
	"testing"
	"time"

	gomock "github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/finveo/loan-bank/internal/customerrepo"
	"github.com/finveo/loan-bank/internal/customerservice"
	"github.com/finveo/loan-bank/internal/domain"
	"github.com/finveo/loan-bank/internal/loanrepo"
	"github.com/finveo/loan-bank/pkg/clockpkg"
	"github.com/finveo/loan-bank/pkg/moneypkg"
	"github.com/finveo/loan-bank/pkg/randompkg"
)

var (
	errUnexpected = errors.New("unexpected error")

	frozenDay = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
)

func usd(t *testing.T, amount string) moneypkg.Money {
	t.Helper()

	m, err := moneypkg.NewFromString(amount, "USD")
	require.NoError(t, err)

	return m
}

func scoredCustomer(t *testing.T) *domain.Customer {
	t.Helper()

	// Good tier: 10000 * 4 = 40000 credit limit.
	customer, err := domain.NewCustomerWithCreditScore(randompkg.ID(),
		randompkg.FirstName(), randompkg.LastName(), randompkg.Email(), randompkg.Phone(),
		usd(t, "10000"), 700)
	require.NoError(t, err)

	customer.DrainEvents()
	customer.MarkCommitted()

	return customer
}

// activeLoan returns an active loan of 10000 USD at 20% over 12
// installments of 1000.00 due monthly from 2024-02-15.
func activeLoan(t *testing.T) *domain.Loan {
	t.Helper()

	loan, err := domain.NewLoan(randompkg.ID(), randompkg.ID(), usd(t, "10000"),
		decimal.RequireFromString("0.20"), 12, frozenDay)
	require.NoError(t, err)
	require.NoError(t, loan.Activate())

	loan.DrainEvents()
	loan.MarkCommitted()

	return loan
}

func TestOriginate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	testCases := []struct {
		name          string
		principal     string
		interestRate  string
		buildStubs    func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string
		checkResponse func(loan *domain.Loan, err error)
	}{
		{
			name:         "OK",
			principal:    "10000",
			interestRate: "0.20",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customer := scoredCustomer(t)

				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(customer, nil)

				customers.EXPECT().
					ReserveCredit(gomock.Any(), customer.ID(), gomock.Any()).
					Times(1).
					Return(customer, nil)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				publisher.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				return customer.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.NoError(t, err)
				require.Equal(t, domain.StatusActive, loan.Status())
				require.True(t, loan.Principal().Equal(usd(t, "10000")))
				require.Equal(t, "12000.00 USD", loan.TotalAmount().String())
				require.Len(t, loan.Installments(), 12)
				require.Empty(t, loan.PendingEvents())
			},
		},
		{
			name:         "CustomerNotFound",
			principal:    "10000",
			interestRate: "0.20",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, domain.ErrCustomerNotFound)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(0)

				return randompkg.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.ErrorIs(t, err, domain.ErrCustomerNotFound)
				require.Nil(t, loan)
			},
		},
		{
			name:         "InvalidInterestRate",
			principal:    "10000",
			interestRate: "0.09",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(scoredCustomer(t), nil)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(0)

				return randompkg.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidInterestRate)
				require.Nil(t, loan)
			},
		},
		{
			name:         "IneligibleStoresRejectedLoan",
			principal:    "40000.01",
			interestRate: "0.20",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(scoredCustomer(t), nil)

				customers.EXPECT().
					ReserveCredit(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(0)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				publisher.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				return randompkg.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.ErrorIs(t, err, domain.ErrInsufficientCredit)
				require.NotNil(t, loan)
				require.Equal(t, domain.StatusRejected, loan.Status())
			},
		},
		{
			name:         "ReserveCreditConflictLosesRace",
			principal:    "10000",
			interestRate: "0.20",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(scoredCustomer(t), nil)

				// Another loan consumed the credit between the
				// eligibility check and the reservation.
				customers.EXPECT().
					ReserveCredit(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, domain.ErrInsufficientCredit)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				publisher.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				return randompkg.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.ErrorIs(t, err, domain.ErrInsufficientCredit)
				require.NotNil(t, loan)
				require.Equal(t, domain.StatusRejected, loan.Status())
			},
		},
		{
			name:         "ReserveCreditUnexpectedError",
			principal:    "10000",
			interestRate: "0.20",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(scoredCustomer(t), nil)

				customers.EXPECT().
					ReserveCredit(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, errUnexpected)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(0)

				return randompkg.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.ErrorIs(t, err, errUnexpected)
				require.Nil(t, loan)
			},
		},
		{
			name:         "RepoError",
			principal:    "10000",
			interestRate: "0.20",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) string {
				customer := scoredCustomer(t)

				customers.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(customer, nil)

				customers.EXPECT().
					ReserveCredit(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(customer, nil)

				repo.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(errUnexpected)

				publisher.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(0)

				return randompkg.ID()
			},
			checkResponse: func(loan *domain.Loan, err error) {
				require.ErrorIs(t, err, errUnexpected)
				require.Nil(t, loan)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			customerID := tc.buildStubs(repo, customers, publisher)

			loan, err := service.Originate(context.Background(), customerID,
				usd(t, tc.principal), decimal.RequireFromString(tc.interestRate), 12)

			tc.checkResponse(loan, err)
		})
	}
}

func TestOriginateRejectionReasons(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	testCases := []struct {
		name       string
		customer   func(t *testing.T) *domain.Customer
		principal  string
		wantReason string
	}{
		{
			name: "LowScoreWithAmpleCredit",
			customer: func(t *testing.T) *domain.Customer {
				// Standard tier: limit 30000 easily covers the principal,
				// so only the score blocks the loan.
				c, err := domain.NewCustomerWithCreditScore(randompkg.ID(),
					randompkg.FirstName(), randompkg.LastName(), randompkg.Email(), randompkg.Phone(),
					usd(t, "10000"), 599)
				require.NoError(t, err)
				c.DrainEvents()

				return c
			},
			principal:  "10000",
			wantReason: "credit score below minimum",
		},
		{
			name: "PrincipalExceedsCredit",
			customer: func(t *testing.T) *domain.Customer {
				return scoredCustomer(t)
			},
			principal:  "40000.01",
			wantReason: "insufficient credit",
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			customers.EXPECT().
				Get(gomock.Any(), gomock.Any()).
				Times(1).
				Return(tc.customer(t), nil)

			repo.EXPECT().
				Create(gomock.Any(), gomock.Any()).
				Times(1).
				Return(nil)

			var gotReason string

			publisher.EXPECT().
				Publish(gomock.Any(), gomock.Any()).
				Times(1).
				DoAndReturn(func(_ context.Context, events []domain.Event) error {
					for _, e := range events {
						if rejected, ok := e.(domain.LoanRejected); ok {
							gotReason = rejected.Reason
						}
					}

					return nil
				})

			loan, err := service.Originate(context.Background(), randompkg.ID(),
				usd(t, tc.principal), decimal.RequireFromString("0.20"), 12)
			require.ErrorIs(t, err, domain.ErrInsufficientCredit)
			require.Equal(t, domain.StatusRejected, loan.Status())
			require.Equal(t, tc.wantReason, gotReason)
		})
	}
}

func TestOriginateWithFlatLimitCustomer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	// No credit score: eligibility falls back to available credit only.
	customer, err := domain.NewCustomer(randompkg.ID(),
		randompkg.FirstName(), randompkg.LastName(), randompkg.Email(), randompkg.Phone(),
		usd(t, "10000"))
	require.NoError(t, err)
	customer.DrainEvents()

	customers.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Times(1).
		Return(customer, nil)

	customers.EXPECT().
		ReserveCredit(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(customer, nil)

	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	loan, err := service.Originate(context.Background(), customer.ID(),
		usd(t, "10000"), decimal.RequireFromString("0.20"), 12)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, loan.Status())
}

func TestPay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	payDate := frozenDay.AddDate(0, 1, 0)

	testCases := []struct {
		name          string
		amount        string
		buildStubs    func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher)
		checkResponse func(record domain.PaymentRecord, err error)
	}{
		{
			name:   "OK",
			amount: "1000",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(activeLoan(t), nil)

				repo.EXPECT().
					Save(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				publisher.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil)

				customers.EXPECT().
					ReleaseCredit(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(0)
			},
			checkResponse: func(record domain.PaymentRecord, err error) {
				require.NoError(t, err)
				require.Equal(t, []int{1}, record.InstallmentsPaid)
				require.Equal(t, "1000.00 USD", record.TotalSpent.String())
				require.False(t, record.LoanFullyPaid)
			},
		},
		{
			name:   "LoanNotFound",
			amount: "1000",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, domain.ErrLoanNotFound)

				repo.EXPECT().
					Save(gomock.Any(), gomock.Any()).
					Times(0)
			},
			checkResponse: func(record domain.PaymentRecord, err error) {
				require.ErrorIs(t, err, domain.ErrLoanNotFound)
				require.Empty(t, record.InstallmentsPaid)
			},
		},
		{
			name:   "InvalidPaymentAmount",
			amount: "0",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(activeLoan(t), nil)

				repo.EXPECT().
					Save(gomock.Any(), gomock.Any()).
					Times(0)
			},
			checkResponse: func(record domain.PaymentRecord, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidPaymentAmount)
			},
		},
		{
			name:   "SaveConflict",
			amount: "1000",
			buildStubs: func(repo *MockRepo, customers *MockCustomerService, publisher *MockPublisher) {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Times(1).
					Return(activeLoan(t), nil)

				repo.EXPECT().
					Save(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.ErrConcurrencyConflict)

				publisher.EXPECT().
					Publish(gomock.Any(), gomock.Any()).
					Times(0)

				customers.EXPECT().
					ReleaseCredit(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(0)
			},
			checkResponse: func(record domain.PaymentRecord, err error) {
				require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			tc.buildStubs(repo, customers, publisher)

			record, err := service.Pay(context.Background(), randompkg.ID(), usd(t, tc.amount), payDate)

			tc.checkResponse(record, err)
		})
	}
}

func TestPayFinalInstallmentReleasesPrincipal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	loan := activeLoan(t)

	// Settle everything but the last installment beforehand.
	installments := loan.Installments()
	for _, inst := range installments[:len(installments)-1] {
		require.NoError(t, loan.PayInstallment(inst.Number, inst.AmountDue, inst.DueDate))
	}

	loan.DrainEvents()

	last := installments[len(installments)-1]

	repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Times(1).
		Return(loan, nil)

	repo.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	customers.EXPECT().
		ReleaseCredit(gomock.Any(), loan.CustomerID(), loan.Principal()).
		Times(1).
		Return(nil, nil)

	record, err := service.Pay(context.Background(), loan.ID(), last.AmountDue, last.DueDate)
	require.NoError(t, err)
	require.True(t, record.LoanFullyPaid)
	require.Equal(t, domain.StatusFullyPaid, loan.Status())
}

func TestPayReleaseFailureStillReturnsRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	loan := activeLoan(t)

	installments := loan.Installments()
	for _, inst := range installments[:len(installments)-1] {
		require.NoError(t, loan.PayInstallment(inst.Number, inst.AmountDue, inst.DueDate))
	}

	loan.DrainEvents()

	last := installments[len(installments)-1]

	repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Times(1).
		Return(loan, nil)

	repo.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	customers.EXPECT().
		ReleaseCredit(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil, domain.ErrConcurrencyConflict)

	// The payment committed, so the caller keeps the record and can
	// retry the release on its own.
	record, err := service.Pay(context.Background(), loan.ID(), last.AmountDue, last.DueDate)
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	require.True(t, record.LoanFullyPaid)
	require.Equal(t, []int{last.Number}, record.InstallmentsPaid)
}

func TestPayZeroDateDefaultsToToday(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)

	// Frozen on the first due date, so the default payment date settles
	// installment 1 with no adjustment.
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay.AddDate(0, 1, 0)})

	repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Times(1).
		Return(activeLoan(t), nil)

	repo.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Times(1).
		Return(nil)

	record, err := service.Pay(context.Background(), randompkg.ID(), usd(t, "1000"), time.Time{})
	require.NoError(t, err)
	require.Equal(t, []int{1}, record.InstallmentsPaid)
	require.True(t, record.TotalAdjustment.IsZero())
	require.Equal(t, frozenDay.AddDate(0, 1, 0), record.PaymentDate)
}

type capturingPublisher struct {
	batches [][]domain.Event
}

func (p *capturingPublisher) Publish(_ context.Context, events []domain.Event) error {
	p.batches = append(p.batches, events)
	return nil
}

func eventNames(events []domain.Event) []string {
	names := make([]string, 0, len(events))

	for _, e := range events {
		names = append(names, e.EventName())
	}

	return names
}

// Against the real repos, a payment must publish only its own events:
// the origination history stored with the loan never reappears.
func TestPayPublishesOnlyItsOwnEvents(t *testing.T) {
	ctx := context.Background()

	customers := customerservice.New(customerrepo.NewRepoMem(), &capturingPublisher{})

	customer, err := customers.Create(ctx, "Jamie", "Doe",
		randompkg.Email(), randompkg.Phone(), usd(t, "50000"))
	require.NoError(t, err)

	publisher := &capturingPublisher{}
	service := New(loanrepo.NewRepoMem(), customers, publisher, clockpkg.Frozen{Time: frozenDay})

	loan, err := service.Originate(ctx, customer.ID(),
		usd(t, "10000"), decimal.RequireFromString("0.20"), 12)
	require.NoError(t, err)

	_, err = service.Pay(ctx, loan.ID(), usd(t, "1000"), frozenDay.AddDate(0, 1, 0))
	require.NoError(t, err)

	require.Len(t, publisher.batches, 2)
	require.Equal(t, []string{"loan.originated", "loan.activated"}, eventNames(publisher.batches[0]))
	require.Equal(t, []string{"loan.installment_paid"}, eventNames(publisher.batches[1]))
}

func TestGetAndList(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	customers := NewMockCustomerService(ctrl)
	publisher := NewMockPublisher(ctrl)
	service := New(repo, customers, publisher, clockpkg.Frozen{Time: frozenDay})

	loan := activeLoan(t)

	repo.EXPECT().
		Get(gomock.Any(), loan.ID()).
		Times(1).
		Return(loan, nil)

	got, err := service.Get(context.Background(), loan.ID())
	require.NoError(t, err)
	require.Equal(t, loan.ID(), got.ID())

	repo.EXPECT().
		ListByCustomer(gomock.Any(), loan.CustomerID()).
		Times(1).
		Return([]*domain.Loan{loan}, nil)

	loans, err := service.ListByCustomer(context.Background(), loan.CustomerID())
	require.NoError(t, err)
	require.Len(t, loans, 1)
}
