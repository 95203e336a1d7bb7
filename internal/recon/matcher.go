package recon

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"prolead/internal/domain"
	"prolead/pkg/errors"
	"prolead/pkg/logger"
	"prolead/pkg/validator"
)

// MatchType classifies how a bank transaction was correlated to a deposit
// request.
type MatchType string

const (
	MatchDuplicate      MatchType = "duplicate"
	MatchExactReference MatchType = "exact_reference"
	MatchAmount         MatchType = "amount"
	MatchNone           MatchType = "none"
)

// Match is the matcher's verdict for one bank transaction. Deposit is nil for
// duplicates and no-matches; Provider may still be resolved for a no-match
// when the reference carried a valid customer code.
type Match struct {
	Type             MatchType
	Deposit          *domain.DepositRequest
	Provider         *domain.ProviderAccount
	Confidence       float64
	AmountDifference decimal.Decimal
}

// Matcher locates the best candidate deposit request for an incoming bank
// transaction.
type Matcher struct {
	deposits  DepositRepository
	providers ProviderRepository
	cache     DedupeCache
	tolerance decimal.Decimal
	logger    logger.Logger
}

func NewMatcher(deposits DepositRepository, providers ProviderRepository, cache DedupeCache, tolerance decimal.Decimal, log logger.Logger) *Matcher {
	return &Matcher{
		deposits:  deposits,
		providers: providers,
		cache:     cache,
		tolerance: tolerance,
		logger:    log,
	}
}

// Match applies the matching priority: dedupe first, then exact reference
// (confidence 1.0), then amount tolerance against the provider's outstanding
// requests (confidence 0.8), ties broken by most-recently-created.
func (m *Matcher) Match(ctx context.Context, tx *domain.BankTransaction) (*Match, error) {
	duplicate, err := m.alreadyProcessed(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &Match{Type: MatchDuplicate}, nil
	}

	// An empty reference routes to the unsolicited-deposit path; a garbled one
	// is a validation failure and is never retried.
	reference := strings.ToUpper(strings.TrimSpace(tx.Reference))
	if !validator.ValidReference(reference) {
		m.logger.Warn("Unparseable payment reference", map[string]interface{}{
			"bank_tx_id": tx.ID,
			"reference":  tx.Reference,
		})
		return nil, errors.ErrInvalidReference
	}

	// Exact reference match against a pending deposit request.
	if strings.HasPrefix(reference, domain.DepositReferencePrefix) {
		deposit, err := m.deposits.FindPendingByReference(ctx, reference)
		if err == nil {
			provider, err := m.providers.FindByID(ctx, deposit.ProviderID)
			if err != nil {
				return nil, err
			}
			return &Match{
				Type:             MatchExactReference,
				Deposit:          deposit,
				Provider:         provider,
				Confidence:       1.0,
				AmountDifference: tx.Amount.Sub(deposit.Amount),
			}, nil
		}
		if !errors.Is(err, errors.ErrDepositNotFound) {
			return nil, err
		}
	}

	// Resolve a provider from the customer code, then look for an amount-only
	// candidate among their outstanding requests.
	var provider *domain.ProviderAccount
	if strings.HasPrefix(reference, domain.CustomerCodePrefix) {
		provider, err = m.providers.FindByCustomerCode(ctx, reference)
		if err != nil && !errors.Is(err, errors.ErrProviderNotFound) {
			return nil, err
		}
	}

	if provider != nil {
		candidate, err := m.matchByAmount(ctx, provider, tx.Amount)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			return &Match{
				Type:             MatchAmount,
				Deposit:          candidate,
				Provider:         provider,
				Confidence:       0.8,
				AmountDifference: tx.Amount.Sub(candidate.Amount),
			}, nil
		}
	}

	return &Match{Type: MatchNone, Provider: provider}, nil
}

// matchByAmount returns the most recent pending deposit whose amount is
// within the tolerance band of the transaction amount.
func (m *Matcher) matchByAmount(ctx context.Context, provider *domain.ProviderAccount, amount decimal.Decimal) (*domain.DepositRequest, error) {
	pending, err := m.deposits.FindPendingByProvider(ctx, provider.ID)
	if err != nil {
		return nil, err
	}

	// Already ordered most-recent-first, so the first hit wins ties.
	for _, deposit := range pending {
		if deposit.Amount.IsZero() {
			continue
		}
		ratio := amount.Sub(deposit.Amount).Abs().Div(deposit.Amount)
		if ratio.LessThanOrEqual(m.tolerance) {
			return deposit, nil
		}
	}
	return nil, nil
}

func (m *Matcher) alreadyProcessed(ctx context.Context, bankTxID string) (bool, error) {
	// The cache is a best-effort shortcut; errors fall through to the database.
	if m.cache != nil {
		seen, err := m.cache.WasProcessed(ctx, bankTxID)
		if err != nil {
			m.logger.Warn("Dedupe cache lookup failed", map[string]interface{}{
				"bank_tx_id": bankTxID,
				"error":      err.Error(),
			})
		} else if seen {
			return true, nil
		}
	}

	return m.deposits.ExistsByBankReference(ctx, bankTxID)
}
