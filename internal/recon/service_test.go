package recon

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prolead/internal/domain"
	"prolead/internal/ledger"
	"prolead/pkg/errors"
	"prolead/pkg/logger"
)

type serviceMocks struct {
	deposits  *mockDepositRepo
	providers *mockProviderRepo
	wallets   *mockWalletRepo
	alerts    *mockAlertRepo
	ledger    *mockLedger
	feed      *mockFeed
	notifier  *mockNotifier
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		deposits:  &mockDepositRepo{},
		providers: &mockProviderRepo{},
		wallets:   &mockWalletRepo{},
		alerts:    &mockAlertRepo{},
		ledger:    &mockLedger{},
		feed:      &mockFeed{},
		notifier:  &mockNotifier{},
	}
	svc := NewService(
		m.deposits, m.wallets, m.providers, m.alerts, m.ledger,
		m.feed, m.notifier, nil, testReconConfig(), logger.NewNop(),
	)
	return svc, m
}

func testProvider() *domain.ProviderAccount {
	return &domain.ProviderAccount{
		ID:                   uuid.New(),
		CustomerCode:         "CUS12345678",
		BusinessName:         "Cape Plumbing Co",
		Email:                "owner@capeplumbing.co.za",
		SubscriptionActive:   true,
		VerifiedDepositCount: 3,
		Status:               domain.AccountStatusActive,
		RegisteredAt:         time.Now().Add(-90 * 24 * time.Hour),
	}
}

func testDeposit(provider *domain.ProviderAccount, amount string, credits int64) *domain.DepositRequest {
	return &domain.DepositRequest{
		ID:                uuid.New(),
		ProviderID:        provider.ID,
		Amount:            decimal.RequireFromString(amount),
		CreditsToActivate: credits,
		Status:            domain.DepositStatusPending,
		ReferenceNumber:   "PCAB12CD34",
		CustomerCode:      provider.CustomerCode,
		CreatedAt:         time.Now().Add(-time.Hour),
	}
}

func testWallet(provider *domain.ProviderAccount) *domain.Wallet {
	return &domain.Wallet{
		ID:         uuid.New(),
		ProviderID: provider.ID,
		Status:     domain.WalletStatusActive,
	}
}

func bankTx(id, amount, reference string) *domain.BankTransaction {
	return &domain.BankTransaction{
		ID:        id,
		Amount:    decimal.RequireFromString(amount),
		Reference: reference,
		Timestamp: time.Now().Add(-3 * time.Hour),
	}
}

func TestProcessTransaction_ExactReferenceMatch(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	wallet := testWallet(provider)
	tx := bankTx("TX-001", "250.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-001").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	m.ledger.On("Post", mock.Anything, mock.MatchedBy(func(p *ledger.Posting) bool {
		return p.WalletID == wallet.ID &&
			p.DepositID == deposit.ID &&
			p.BankReference == "TX-001" &&
			len(p.Entries) == 1 &&
			p.Entries[0].Credits == 5 &&
			p.Entries[0].Amount.Equal(decimal.RequireFromString("250.00")) &&
			p.Deposit.Complete
	})).Return(nil)
	m.notifier.On("CreditsActivated", mock.Anything, provider, deposit, int64(5)).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome.Status)
	assert.Equal(t, StrategyExactMatch, outcome.Strategy)
	assert.Equal(t, int64(5), outcome.CreditsActivated)
	require.NotNil(t, outcome.DepositID)
	assert.Equal(t, deposit.ID, *outcome.DepositID)
	m.ledger.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestProcessTransaction_CustomerCodeAmountMatch(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "240.00", 4)
	wallet := testWallet(provider)
	// 250 against a 240 request is within the 10% matching band but the
	// deposit is corrected to the amount actually received.
	tx := bankTx("TX-002", "250.00", provider.CustomerCode)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-002").Return(false, nil)
	m.providers.On("FindByCustomerCode", mock.Anything, provider.CustomerCode).Return(provider, nil)
	m.deposits.On("FindPendingByProvider", mock.Anything, provider.ID).
		Return([]*domain.DepositRequest{deposit}, nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	m.ledger.On("Post", mock.Anything, mock.MatchedBy(func(p *ledger.Posting) bool {
		return p.Deposit.Amount.Equal(decimal.RequireFromString("250.00")) &&
			p.Deposit.Credits == 5 &&
			p.Deposit.Complete
	})).Return(nil)
	m.notifier.On("CreditsActivated", mock.Anything, provider, deposit, int64(5)).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome.Status)
	assert.Equal(t, StrategyAmountMatch, outcome.Strategy)
	assert.Equal(t, int64(5), outcome.CreditsActivated)
	m.ledger.AssertExpectations(t)
}

func TestProcessTransaction_DuplicateBankReference(t *testing.T) {
	svc, m := newTestService()
	tx := bankTx("TX-003", "250.00", "PCAB12CD34")

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-003").Return(true, nil)

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	m.ledger.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestProcessTransaction_ConcurrentSettlementIsDuplicate(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	wallet := testWallet(provider)
	tx := bankTx("TX-004", "250.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-004").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	// Another run claimed the deposit between the match and the posting.
	m.ledger.On("Post", mock.Anything, mock.Anything).Return(errors.ErrAlreadyProcessed)

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	m.notifier.AssertNotCalled(t, "CreditsActivated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessTransaction_OverpaymentWithinTolerance(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	wallet := testWallet(provider)
	// 300 on a 250 request is exactly 20% over: settle with the surplus as a
	// second audit entry worth one extra credit.
	tx := bankTx("TX-005", "300.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-005").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	m.ledger.On("Post", mock.Anything, mock.MatchedBy(func(p *ledger.Posting) bool {
		return len(p.Entries) == 2 &&
			p.Entries[0].Type == domain.EntryTypeDepositCredit &&
			p.Entries[0].Credits == 5 &&
			p.Entries[1].Type == domain.EntryTypeOverpaymentCredit &&
			p.Entries[1].Credits == 1 &&
			p.Entries[1].Amount.Equal(decimal.RequireFromString("50.00")) &&
			p.Deposit.Complete
	})).Return(nil)
	m.notifier.On("CreditsActivated", mock.Anything, provider, deposit, int64(6)).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome.Status)
	assert.Equal(t, StrategyOverpayment, outcome.Strategy)
	assert.Equal(t, int64(6), outcome.CreditsActivated)
	m.ledger.AssertExpectations(t)
}

func TestProcessTransaction_UnderpaymentLeavesDepositPending(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	wallet := testWallet(provider)
	// 210 on a 250 request is a 16% shortfall: partial settlement.
	tx := bankTx("TX-006", "210.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-006").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	m.ledger.On("Post", mock.Anything, mock.MatchedBy(func(p *ledger.Posting) bool {
		return len(p.Entries) == 1 &&
			p.Entries[0].Credits == 4 &&
			p.Deposit.Status == domain.DepositStatusPending &&
			p.Deposit.Amount.Equal(decimal.RequireFromString("210.00")) &&
			!p.Deposit.Complete
	})).Return(nil)
	m.notifier.On("DepositUnderpaid", mock.Anything, provider, deposit, "40.00").Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome.Status)
	assert.Equal(t, StrategyUnderpayment, outcome.Strategy)
	assert.Equal(t, int64(4), outcome.CreditsActivated)
	m.notifier.AssertNotCalled(t, "CreditsActivated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.notifier.AssertExpectations(t)
}

func TestProcessTransaction_OverpaymentBeyondToleranceEscalates(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	tx := bankTx("TX-007", "400.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-007").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.alerts.On("ExistsOpenByBankReference", mock.Anything, "TX-007").Return(false, nil)
	m.alerts.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AdminAlert) bool {
		return a.Status == domain.AlertStatusOpen &&
			a.BankReference == "TX-007" &&
			a.DepositID != nil && *a.DepositID == deposit.ID &&
			a.Amount.Equal(decimal.RequireFromString("400.00"))
	})).Return(nil)
	m.notifier.On("ReviewRequired", mock.Anything, mock.Anything).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, outcome.Status)
	assert.Equal(t, StrategyReviewOverpayment, outcome.Strategy)
	require.NotNil(t, outcome.AlertID)
	m.ledger.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
	m.alerts.AssertExpectations(t)
}

func TestProcessTransaction_UnderpaymentBeyondToleranceEscalates(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	tx := bankTx("TX-008", "100.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-008").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.alerts.On("ExistsOpenByBankReference", mock.Anything, "TX-008").Return(false, nil)
	m.alerts.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("ReviewRequired", mock.Anything, mock.Anything).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, outcome.Status)
	assert.Equal(t, StrategyReviewUnderpayment, outcome.Strategy)
	m.ledger.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestProcessTransaction_OpenAlertSuppressesReescalation(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	tx := bankTx("TX-009", "400.00", deposit.ReferenceNumber)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-009").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.alerts.On("ExistsOpenByBankReference", mock.Anything, "TX-009").Return(true, nil)

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	m.alerts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.notifier.AssertNotCalled(t, "ReviewRequired", mock.Anything, mock.Anything)
}

func TestProcessTransaction_UnsolicitedDepositAutoApproved(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	wallet := testWallet(provider)
	// No pending request at all: tenured provider, active subscription, sane
	// amount, aged transaction. Every signal fires, so the deposit is created
	// and settled automatically.
	tx := bankTx("TX-010", "250.00", provider.CustomerCode)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-010").Return(false, nil)
	m.providers.On("FindByCustomerCode", mock.Anything, provider.CustomerCode).Return(provider, nil)
	m.deposits.On("FindPendingByProvider", mock.Anything, provider.ID).
		Return([]*domain.DepositRequest{}, nil)
	m.deposits.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.DepositRequest) bool {
		return d.ProviderID == provider.ID &&
			d.IsAutoVerified &&
			d.CreditsToActivate == 5 &&
			d.Amount.Equal(decimal.RequireFromString("250.00"))
	})).Return(nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	m.ledger.On("Post", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("CreditsActivated", mock.Anything, provider, mock.Anything, int64(5)).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome.Status)
	assert.Equal(t, StrategyNewDeposit, outcome.Strategy)
	assert.Equal(t, int64(5), outcome.CreditsActivated)
	assert.Greater(t, outcome.Score, 0.8)
	m.deposits.AssertExpectations(t)
}

func TestProcessTransaction_UnsolicitedDepositLowScoreEscalates(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	// A fresh account with no history clears almost nothing.
	provider.RegisteredAt = time.Now().Add(-24 * time.Hour)
	provider.VerifiedDepositCount = 0
	provider.SubscriptionActive = false
	tx := bankTx("TX-011", "250.00", provider.CustomerCode)

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-011").Return(false, nil)
	m.providers.On("FindByCustomerCode", mock.Anything, provider.CustomerCode).Return(provider, nil)
	m.deposits.On("FindPendingByProvider", mock.Anything, provider.ID).
		Return([]*domain.DepositRequest{}, nil)
	m.alerts.On("ExistsOpenByBankReference", mock.Anything, "TX-011").Return(false, nil)
	m.alerts.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AdminAlert) bool {
		return a.CustomerCode == provider.CustomerCode && a.DepositID == nil
	})).Return(nil)
	m.notifier.On("ReviewRequired", mock.Anything, mock.Anything).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, outcome.Status)
	assert.Equal(t, StrategyNewDeposit, outcome.Strategy)
	assert.LessOrEqual(t, outcome.Score, 0.8)
	m.ledger.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
	m.deposits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessTransaction_UnknownCustomerCodeEscalates(t *testing.T) {
	svc, m := newTestService()
	tx := bankTx("TX-012", "250.00", "CUS99999999")

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-012").Return(false, nil)
	m.providers.On("FindByCustomerCode", mock.Anything, "CUS99999999").Return(nil, errors.ErrProviderNotFound)
	m.alerts.On("ExistsOpenByBankReference", mock.Anything, "TX-012").Return(false, nil)
	m.alerts.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AdminAlert) bool {
		return a.CustomerCode == "" && a.DepositID == nil
	})).Return(nil)
	m.notifier.On("ReviewRequired", mock.Anything, mock.Anything).Return()

	outcome, err := svc.ProcessTransaction(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, outcome.Status)
	assert.Equal(t, StrategyNewDeposit, outcome.Strategy)
}

func TestProcessTransaction_RejectsInvalidAmounts(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ProcessTransaction(context.Background(), &domain.BankTransaction{
		ID:     "TX-013",
		Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	_, err = svc.ProcessTransaction(context.Background(), bankTx("TX-014", "5.00", "PCAB12CD34"))
	assert.ErrorIs(t, err, errors.ErrAmountOutOfBounds)

	_, err = svc.ProcessTransaction(context.Background(), bankTx("TX-015", "150000.00", "PCAB12CD34"))
	assert.ErrorIs(t, err, errors.ErrAmountOutOfBounds)
}

func TestProcessTransaction_GarbledReferenceIsRejected(t *testing.T) {
	svc, m := newTestService()
	tx := bankTx("TX-018", "250.00", "rent for august!!")

	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-018").Return(false, nil)

	_, err := svc.ProcessTransaction(context.Background(), tx)

	assert.ErrorIs(t, err, errors.ErrInvalidReference)
	m.ledger.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestRunBatch_FeedFailureAbortsRun(t *testing.T) {
	svc, m := newTestService()
	m.feed.On("FetchTransactions", mock.Anything).Return(nil, assert.AnError)

	summary := svc.RunBatch(context.Background())

	assert.Equal(t, 0, summary.Processed)
	assert.NotEmpty(t, summary.Error)
}

func TestRunBatch_IsolatesPerTransactionFailures(t *testing.T) {
	svc, m := newTestService()
	provider := testProvider()
	deposit := testDeposit(provider, "250.00", 5)
	wallet := testWallet(provider)

	good := *bankTx("TX-016", "250.00", deposit.ReferenceNumber)
	bad := *bankTx("TX-017", "5.00", "PCZZ99XX88") // below the floor

	m.feed.On("FetchTransactions", mock.Anything).
		Return([]domain.BankTransaction{bad, good}, nil)
	m.deposits.On("ExistsByBankReference", mock.Anything, "TX-016").Return(false, nil)
	m.deposits.On("FindPendingByReference", mock.Anything, deposit.ReferenceNumber).Return(deposit, nil)
	m.providers.On("FindByID", mock.Anything, provider.ID).Return(provider, nil)
	m.wallets.On("FindByProviderID", mock.Anything, provider.ID).Return(wallet, nil)
	m.ledger.On("Post", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("CreditsActivated", mock.Anything, provider, deposit, int64(5)).Return()

	summary := svc.RunBatch(context.Background())

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Settled)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "TX-017")
}
