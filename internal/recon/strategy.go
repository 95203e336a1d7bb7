package recon

import (
	"github.com/shopspring/decimal"
)

// Strategy is the one-shot classification of a match. It is stateless per
// transaction; there is no state machine beyond this.
type Strategy string

const (
	StrategyExactMatch         Strategy = "exact_match"
	StrategyAmountMatch        Strategy = "amount_match"
	StrategyOverpayment        Strategy = "overpayment"
	StrategyUnderpayment       Strategy = "underpayment"
	StrategyReviewOverpayment  Strategy = "admin_review_overpayment"
	StrategyReviewUnderpayment Strategy = "admin_review_underpayment"
	StrategyNewDeposit         Strategy = "new_deposit"
	StrategyDuplicate          Strategy = "duplicate"
)

// Resolver turns a match into a settlement strategy using the configured
// tolerances.
type Resolver struct {
	exactDelta      decimal.Decimal
	maxOverpayment  decimal.Decimal
	maxUnderpayment decimal.Decimal
}

func NewResolver(exactDelta, maxOverpayment, maxUnderpayment decimal.Decimal) *Resolver {
	return &Resolver{
		exactDelta:      exactDelta,
		maxOverpayment:  maxOverpayment,
		maxUnderpayment: maxUnderpayment,
	}
}

func (r *Resolver) Resolve(m *Match) Strategy {
	switch m.Type {
	case MatchDuplicate:
		return StrategyDuplicate
	case MatchNone:
		return StrategyNewDeposit
	case MatchAmount:
		// The deposit is corrected to the actual transaction before settling
		// as exact, so the difference never escalates here.
		return StrategyAmountMatch
	}

	diff := m.AmountDifference
	if diff.Abs().LessThan(r.exactDelta) {
		return StrategyExactMatch
	}

	ratio := diff.Abs().Div(m.Deposit.Amount)
	if diff.IsPositive() {
		if ratio.LessThanOrEqual(r.maxOverpayment) {
			return StrategyOverpayment
		}
		return StrategyReviewOverpayment
	}

	if ratio.LessThanOrEqual(r.maxUnderpayment) {
		return StrategyUnderpayment
	}
	return StrategyReviewUnderpayment
}
