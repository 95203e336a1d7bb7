package recon

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"prolead/internal/domain"
	"prolead/internal/ledger"
	"prolead/pkg/config"
)

type mockDepositRepo struct {
	mock.Mock
}

func (m *mockDepositRepo) Create(ctx context.Context, deposit *domain.DepositRequest) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *mockDepositRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.DepositRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DepositRequest), args.Error(1)
}

func (m *mockDepositRepo) FindPendingByReference(ctx context.Context, reference string) (*domain.DepositRequest, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DepositRequest), args.Error(1)
}

func (m *mockDepositRepo) FindPendingByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.DepositRequest, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DepositRequest), args.Error(1)
}

func (m *mockDepositRepo) ExistsByBankReference(ctx context.Context, bankTxID string) (bool, error) {
	args := m.Called(ctx, bankTxID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDepositRepo) MarkFailed(ctx context.Context, id uuid.UUID, note string) error {
	args := m.Called(ctx, id, note)
	return args.Error(0)
}

type mockProviderRepo struct {
	mock.Mock
}

func (m *mockProviderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProviderAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderAccount), args.Error(1)
}

func (m *mockProviderRepo) FindByCustomerCode(ctx context.Context, code string) (*domain.ProviderAccount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderAccount), args.Error(1)
}

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) FindByProviderID(ctx context.Context, providerID uuid.UUID) (*domain.Wallet, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

type mockAlertRepo struct {
	mock.Mock
}

func (m *mockAlertRepo) Create(ctx context.Context, alert *domain.AdminAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *mockAlertRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.AdminAlert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminAlert), args.Error(1)
}

func (m *mockAlertRepo) FindByStatus(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]*domain.AdminAlert, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AdminAlert), args.Error(1)
}

func (m *mockAlertRepo) ExistsOpenByBankReference(ctx context.Context, bankTxID string) (bool, error) {
	args := m.Called(ctx, bankTxID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAlertRepo) Resolve(ctx context.Context, id uuid.UUID, status domain.AlertStatus, resolvedBy, notes string) error {
	args := m.Called(ctx, id, status, resolvedBy, notes)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Post(ctx context.Context, posting *ledger.Posting) error {
	args := m.Called(ctx, posting)
	return args.Error(0)
}

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) FetchTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BankTransaction), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) CreditsActivated(ctx context.Context, provider *domain.ProviderAccount, deposit *domain.DepositRequest, credits int64) {
	m.Called(ctx, provider, deposit, credits)
}

func (m *mockNotifier) DepositUnderpaid(ctx context.Context, provider *domain.ProviderAccount, deposit *domain.DepositRequest, shortfall string) {
	m.Called(ctx, provider, deposit, shortfall)
}

func (m *mockNotifier) ReviewRequired(ctx context.Context, alert *domain.AdminAlert) {
	m.Called(ctx, alert)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) WasProcessed(ctx context.Context, bankTxID string) (bool, error) {
	args := m.Called(ctx, bankTxID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) MarkProcessed(ctx context.Context, bankTxID string) error {
	args := m.Called(ctx, bankTxID)
	return args.Error(0)
}

func testReconConfig() config.ReconConfig {
	return config.ReconConfig{
		RatePerCredit:    decimal.RequireFromString("50.00"),
		MatchTolerance:   decimal.RequireFromString("0.10"),
		MaxOverpayment:   decimal.RequireFromString("0.20"),
		MaxUnderpayment:  decimal.RequireFromString("0.20"),
		ExactDelta:       decimal.RequireFromString("1.00"),
		MinDepositAmount: decimal.RequireFromString("10.00"),
		MaxDepositAmount: decimal.RequireFromString("100000.00"),
		AutoApproveScore: 0.8,
		SaneAmountMin:    decimal.RequireFromString("50.00"),
		SaneAmountMax:    decimal.RequireFromString("5000.00"),
		Currency:         "ZAR",
	}
}
