// Package recon implements the deposit reconciliation engine: matching
// incoming bank transactions to deposit requests, settling them into wallet
// credits, and escalating everything outside automatic tolerance.
package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"prolead/internal/bank"
	"prolead/internal/domain"
	"prolead/internal/ledger"
	"prolead/internal/notification"
	"prolead/internal/scorer"
	"prolead/pkg/config"
	"prolead/pkg/errors"
	"prolead/pkg/logger"
)

type Service struct {
	matcher   *Matcher
	resolver  *Resolver
	deposits  DepositRepository
	wallets   WalletRepository
	providers ProviderRepository
	alerts    AlertRepository
	ledger    Ledger
	scorer    *scorer.Engine
	feed      bank.Feed
	notifier  notification.Service
	cache     DedupeCache
	cfg       config.ReconConfig
	logger    logger.Logger
}

func NewService(
	deposits DepositRepository,
	wallets WalletRepository,
	providers ProviderRepository,
	alerts AlertRepository,
	ledg Ledger,
	feed bank.Feed,
	notifier notification.Service,
	cache DedupeCache,
	cfg config.ReconConfig,
	log logger.Logger,
) *Service {
	return &Service{
		matcher:   NewMatcher(deposits, providers, cache, cfg.MatchTolerance, log),
		resolver:  NewResolver(cfg.ExactDelta, cfg.MaxOverpayment, cfg.MaxUnderpayment),
		deposits:  deposits,
		wallets:   wallets,
		providers: providers,
		alerts:    alerts,
		ledger:    ledg,
		scorer:    scorer.NewEngine(cfg),
		feed:      feed,
		notifier:  notifier,
		cache:     cache,
		cfg:       cfg,
		logger:    log,
	}
}

// RunSummary is the structured result of one reconciliation run. The batch
// never raises; per-transaction failures are collected here.
type RunSummary struct {
	Processed  int       `json:"processed"`
	Settled    int       `json:"settled"`
	Escalated  int       `json:"escalated"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// OutcomeStatus summarises what happened to one transaction.
type OutcomeStatus string

const (
	OutcomeSettled   OutcomeStatus = "settled"
	OutcomeEscalated OutcomeStatus = "escalated"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomeRejected  OutcomeStatus = "rejected"
)

type Outcome struct {
	Status           OutcomeStatus `json:"status"`
	Strategy         Strategy      `json:"strategy"`
	DepositID        *uuid.UUID    `json:"deposit_id,omitempty"`
	AlertID          *uuid.UUID    `json:"alert_id,omitempty"`
	CreditsActivated int64         `json:"credits_activated"`
	Score            float64       `json:"score,omitempty"`
}

// RunBatch fetches the bank feed and reconciles every transaction in it.
// A feed failure aborts the run with a zero-processed summary; the next
// scheduled invocation retries safely because settlement is idempotent.
func (s *Service) RunBatch(ctx context.Context) *RunSummary {
	summary := &RunSummary{StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	txs, err := s.feed.FetchTransactions(ctx)
	if err != nil {
		s.logger.Error("Bank feed fetch failed", map[string]interface{}{"error": err.Error()})
		summary.Error = err.Error()
		return summary
	}

	for i := range txs {
		tx := txs[i]
		outcome, err := s.ProcessTransaction(ctx, &tx)
		summary.Processed++
		if err != nil {
			// One bad record cannot abort the batch.
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", tx.ID, err))
			s.logger.Error("Failed to reconcile bank transaction", map[string]interface{}{
				"bank_tx_id": tx.ID,
				"error":      err.Error(),
			})
			continue
		}

		switch outcome.Status {
		case OutcomeSettled:
			summary.Settled++
		case OutcomeEscalated:
			summary.Escalated++
		case OutcomeDuplicate:
			summary.Duplicates++
		}
	}

	s.logger.Info("Reconciliation run finished", map[string]interface{}{
		"processed":  summary.Processed,
		"settled":    summary.Settled,
		"escalated":  summary.Escalated,
		"duplicates": summary.Duplicates,
		"failed":     summary.Failed,
	})
	return summary
}

// ProcessTransaction reconciles a single bank transaction end to end.
func (s *Service) ProcessTransaction(ctx context.Context, tx *domain.BankTransaction) (*Outcome, error) {
	if err := s.validate(tx); err != nil {
		return nil, err
	}

	match, err := s.matcher.Match(ctx, tx)
	if err != nil {
		return nil, err
	}

	strategy := s.resolver.Resolve(match)
	s.logger.Debug("Resolved settlement strategy", map[string]interface{}{
		"bank_tx_id": tx.ID,
		"strategy":   string(strategy),
		"confidence": match.Confidence,
	})

	switch strategy {
	case StrategyDuplicate:
		return &Outcome{Status: OutcomeDuplicate, Strategy: strategy}, nil
	case StrategyExactMatch:
		return s.settleExact(ctx, tx, match, strategy)
	case StrategyAmountMatch:
		return s.settleAmountMatch(ctx, tx, match)
	case StrategyOverpayment:
		return s.settleOverpayment(ctx, tx, match)
	case StrategyUnderpayment:
		return s.settleUnderpayment(ctx, tx, match)
	case StrategyReviewOverpayment, StrategyReviewUnderpayment:
		return s.escalateMismatch(ctx, tx, match, strategy)
	case StrategyNewDeposit:
		return s.handleNewDeposit(ctx, tx, match)
	}
	return nil, fmt.Errorf("unhandled strategy %q", strategy)
}

func (s *Service) validate(tx *domain.BankTransaction) error {
	if tx.ID == "" {
		return errors.ErrInvalidReference
	}
	if tx.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.ErrInvalidAmount
	}
	if tx.Amount.LessThan(s.cfg.MinDepositAmount) || tx.Amount.GreaterThan(s.cfg.MaxDepositAmount) {
		return errors.ErrAmountOutOfBounds
	}
	return nil
}

// settleExact credits the requested credits and completes the deposit.
func (s *Service) settleExact(ctx context.Context, tx *domain.BankTransaction, match *Match, strategy Strategy) (*Outcome, error) {
	deposit := match.Deposit
	note := fmt.Sprintf("Matched %s to bank transaction %s; settled automatically", deposit.ReferenceNumber, tx.ID)

	posting := &ledger.Posting{
		Reference:     deposit.ReferenceNumber,
		BankReference: tx.ID,
		Entries: []ledger.Entry{{
			Type:    domain.EntryTypeDepositCredit,
			Amount:  tx.Amount,
			Credits: deposit.CreditsToActivate,
		}},
		Deposit: ledger.DepositUpdate{
			Status:       domain.DepositStatusCompleted,
			Amount:       deposit.Amount,
			Credits:      deposit.CreditsToActivate,
			AutoVerified: true,
			Note:         note,
			Complete:     true,
		},
	}

	return s.post(ctx, tx, match, strategy, posting, deposit.CreditsToActivate)
}

// settleAmountMatch corrects the deposit to the actual transaction, then
// settles it as exact.
func (s *Service) settleAmountMatch(ctx context.Context, tx *domain.BankTransaction, match *Match) (*Outcome, error) {
	deposit := match.Deposit
	credits := domain.CreditsForAmount(tx.Amount, s.cfg.RatePerCredit)
	note := fmt.Sprintf(
		"Amount-matched to bank transaction %s; corrected from %s to %s",
		tx.ID, deposit.Amount.StringFixed(2), tx.Amount.StringFixed(2),
	)

	posting := &ledger.Posting{
		Reference:     deposit.ReferenceNumber,
		BankReference: tx.ID,
		Entries: []ledger.Entry{{
			Type:    domain.EntryTypeDepositCredit,
			Amount:  tx.Amount,
			Credits: credits,
		}},
		Deposit: ledger.DepositUpdate{
			Status:       domain.DepositStatusCompleted,
			Amount:       tx.Amount,
			Credits:      credits,
			AutoVerified: true,
			Note:         note,
			Complete:     true,
		},
	}

	return s.post(ctx, tx, match, StrategyAmountMatch, posting, credits)
}

// settleOverpayment credits the requested credits plus the surplus converted
// to extra credits, recorded as a second audit entry.
func (s *Service) settleOverpayment(ctx context.Context, tx *domain.BankTransaction, match *Match) (*Outcome, error) {
	deposit := match.Deposit
	surplus := match.AmountDifference
	extraCredits := surplus.Div(s.cfg.RatePerCredit).Floor().IntPart()
	note := fmt.Sprintf(
		"Overpayment of %s on %s converted to %d extra credits",
		surplus.StringFixed(2), deposit.ReferenceNumber, extraCredits,
	)

	posting := &ledger.Posting{
		Reference:     deposit.ReferenceNumber,
		BankReference: tx.ID,
		Entries: []ledger.Entry{
			{
				Type:    domain.EntryTypeDepositCredit,
				Amount:  deposit.Amount,
				Credits: deposit.CreditsToActivate,
			},
			{
				Type:    domain.EntryTypeOverpaymentCredit,
				Amount:  surplus,
				Credits: extraCredits,
			},
		},
		Deposit: ledger.DepositUpdate{
			Status:       domain.DepositStatusCompleted,
			Amount:       deposit.Amount,
			Credits:      deposit.CreditsToActivate,
			AutoVerified: true,
			Note:         note,
			Complete:     true,
		},
	}

	return s.post(ctx, tx, match, StrategyOverpayment, posting, deposit.CreditsToActivate+extraCredits)
}

// settleUnderpayment is a deliberate partial settlement: credits are
// recomputed from the amount actually received and the deposit stays pending
// with the shortfall recorded.
func (s *Service) settleUnderpayment(ctx context.Context, tx *domain.BankTransaction, match *Match) (*Outcome, error) {
	deposit := match.Deposit
	shortfall := match.AmountDifference.Neg()
	credits := domain.CreditsForAmount(tx.Amount, s.cfg.RatePerCredit)
	note := fmt.Sprintf(
		"Underpayment on %s: received %s against %s, outstanding %s",
		deposit.ReferenceNumber, tx.Amount.StringFixed(2),
		deposit.Amount.StringFixed(2), shortfall.StringFixed(2),
	)

	posting := &ledger.Posting{
		Reference:     deposit.ReferenceNumber,
		BankReference: tx.ID,
		Entries: []ledger.Entry{{
			Type:    domain.EntryTypeDepositCredit,
			Amount:  tx.Amount,
			Credits: credits,
		}},
		Deposit: ledger.DepositUpdate{
			Status:       domain.DepositStatusPending,
			Amount:       tx.Amount,
			Credits:      credits,
			AutoVerified: false,
			Note:         note,
			Complete:     false,
		},
	}

	outcome, err := s.post(ctx, tx, match, StrategyUnderpayment, posting, credits)
	if err != nil {
		return nil, err
	}

	// Keep the in-memory deposit in step with the posting so the notification
	// reports the settled values.
	deposit.Amount = tx.Amount
	deposit.CreditsToActivate = credits
	s.notifier.DepositUnderpaid(ctx, match.Provider, deposit, shortfall.StringFixed(2))
	return outcome, nil
}

// post fills the posting's identity fields, applies it through the ledger,
// and handles caching and notification.
func (s *Service) post(ctx context.Context, tx *domain.BankTransaction, match *Match, strategy Strategy, posting *ledger.Posting, credits int64) (*Outcome, error) {
	wallet, err := s.wallets.FindByProviderID(ctx, match.Provider.ID)
	if err != nil {
		return nil, err
	}

	posting.WalletID = wallet.ID
	posting.ProviderID = match.Provider.ID
	posting.DepositID = match.Deposit.ID

	if err := s.ledger.Post(ctx, posting); err != nil {
		if errors.Is(err, errors.ErrAlreadyProcessed) {
			return &Outcome{Status: OutcomeDuplicate, Strategy: strategy}, nil
		}
		return nil, err
	}

	s.markProcessed(ctx, tx.ID)

	if posting.Deposit.Complete {
		s.notifier.CreditsActivated(ctx, match.Provider, match.Deposit, credits)
	}

	s.logger.Info("Deposit settled", map[string]interface{}{
		"deposit_id": match.Deposit.ID,
		"bank_tx_id": tx.ID,
		"strategy":   string(strategy),
		"credits":    credits,
	})

	depositID := match.Deposit.ID
	return &Outcome{
		Status:           OutcomeSettled,
		Strategy:         strategy,
		DepositID:        &depositID,
		CreditsActivated: credits,
	}, nil
}

// escalateMismatch records an out-of-tolerance match for human review with no
// balance mutation.
func (s *Service) escalateMismatch(ctx context.Context, tx *domain.BankTransaction, match *Match, strategy Strategy) (*Outcome, error) {
	deposit := match.Deposit
	diff := match.AmountDifference

	var reason string
	if strategy == StrategyReviewOverpayment {
		reason = fmt.Sprintf(
			"overpayment of %s on %s (requested %s, received %s) exceeds tolerance",
			diff.StringFixed(2), deposit.ReferenceNumber,
			deposit.Amount.StringFixed(2), tx.Amount.StringFixed(2),
		)
	} else {
		reason = fmt.Sprintf(
			"underpayment of %s on %s (requested %s, received %s) exceeds tolerance",
			diff.Neg().StringFixed(2), deposit.ReferenceNumber,
			deposit.Amount.StringFixed(2), tx.Amount.StringFixed(2),
		)
	}

	depositID := deposit.ID
	return s.escalate(ctx, tx, &depositID, match.Provider, strategy, reason)
}

// handleNewDeposit routes a reference-less (or unmatchable) transaction
// through the confidence scorer.
func (s *Service) handleNewDeposit(ctx context.Context, tx *domain.BankTransaction, match *Match) (*Outcome, error) {
	if match.Provider == nil {
		return s.escalate(ctx, tx, nil, nil, StrategyNewDeposit,
			fmt.Sprintf("no provider or pending request matches reference %q", tx.Reference))
	}

	score, autoApprove := s.scorer.Evaluate(scorer.SignalsFor(match.Provider, tx, tx.Timestamp))
	if !autoApprove {
		outcome, err := s.escalate(ctx, tx, nil, match.Provider, StrategyNewDeposit,
			fmt.Sprintf("confidence score %.2f below auto-approval threshold", score))
		if err != nil {
			return nil, err
		}
		outcome.Score = score
		return outcome, nil
	}

	credits := domain.CreditsForAmount(tx.Amount, s.cfg.RatePerCredit)
	deposit := &domain.DepositRequest{
		ID:                uuid.New(),
		ProviderID:        match.Provider.ID,
		Amount:            tx.Amount,
		CreditsToActivate: credits,
		Status:            domain.DepositStatusPending,
		ReferenceNumber:   domain.NewDepositReference(),
		CustomerCode:      match.Provider.CustomerCode,
		IsAutoVerified:    true,
		VerificationNotes: fmt.Sprintf("Auto-created from unsolicited bank transaction %s (confidence %.2f)", tx.ID, score),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := s.deposits.Create(ctx, deposit); err != nil {
		return nil, err
	}

	outcome, err := s.settleExact(ctx, tx, &Match{
		Type:             MatchAmount,
		Deposit:          deposit,
		Provider:         match.Provider,
		Confidence:       score,
		AmountDifference: decimal.Zero,
	}, StrategyNewDeposit)
	if err != nil {
		return nil, err
	}
	outcome.Score = score
	return outcome, nil
}

// escalate creates the review-queue alert carrying the full transaction
// payload so an approval can replay the settlement.
func (s *Service) escalate(ctx context.Context, tx *domain.BankTransaction, depositID *uuid.UUID, provider *domain.ProviderAccount, strategy Strategy, reason string) (*Outcome, error) {
	// Re-escalating the same unsettled transaction on every scheduled run
	// would flood the review queue.
	open, err := s.alerts.ExistsOpenByBankReference(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return &Outcome{Status: OutcomeDuplicate, Strategy: strategy}, nil
	}

	customerCode := ""
	if provider != nil {
		customerCode = provider.CustomerCode
	}

	alert := &domain.AdminAlert{
		ID:            uuid.New(),
		DepositID:     depositID,
		CustomerCode:  customerCode,
		Amount:        tx.Amount,
		Reference:     tx.Reference,
		BankReference: tx.ID,
		Reason:        reason,
		Status:        domain.AlertStatusOpen,
		Payload: domain.Metadata{
			"bank_tx_id":  tx.ID,
			"amount":      tx.Amount.String(),
			"reference":   tx.Reference,
			"description": tx.Description,
			"timestamp":   tx.Timestamp.Format(time.RFC3339),
			"strategy":    string(strategy),
		},
		CreatedAt: time.Now(),
	}

	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	s.notifier.ReviewRequired(ctx, alert)

	s.logger.Warn("Bank transaction escalated for review", map[string]interface{}{
		"alert_id":   alert.ID,
		"bank_tx_id": tx.ID,
		"reason":     reason,
	})

	alertID := alert.ID
	return &Outcome{
		Status:   OutcomeEscalated,
		Strategy: strategy,
		AlertID:  &alertID,
	}, nil
}

func (s *Service) markProcessed(ctx context.Context, bankTxID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkProcessed(ctx, bankTxID); err != nil {
		s.logger.Warn("Failed to mark transaction in dedupe cache", map[string]interface{}{
			"bank_tx_id": bankTxID,
			"error":      err.Error(),
		})
	}
}

// Repository interfaces, satisfied by internal/repository/postgres.

type DepositRepository interface {
	Create(ctx context.Context, deposit *domain.DepositRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DepositRequest, error)
	FindPendingByReference(ctx context.Context, reference string) (*domain.DepositRequest, error)
	FindPendingByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.DepositRequest, error)
	ExistsByBankReference(ctx context.Context, bankTxID string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, note string) error
}

type ProviderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ProviderAccount, error)
	FindByCustomerCode(ctx context.Context, code string) (*domain.ProviderAccount, error)
}

type WalletRepository interface {
	FindByProviderID(ctx context.Context, providerID uuid.UUID) (*domain.Wallet, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *domain.AdminAlert) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AdminAlert, error)
	FindByStatus(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]*domain.AdminAlert, error)
	ExistsOpenByBankReference(ctx context.Context, bankTxID string) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, status domain.AlertStatus, resolvedBy, notes string) error
}

// Ledger applies settlement postings atomically.
type Ledger interface {
	Post(ctx context.Context, posting *ledger.Posting) error
}

// DedupeCache is the optional Redis shortcut in front of the database dedupe
// check.
type DedupeCache interface {
	WasProcessed(ctx context.Context, bankTxID string) (bool, error)
	MarkProcessed(ctx context.Context, bankTxID string) error
}
