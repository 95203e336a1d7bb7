// Package scorer decides whether a reference-less deposit may be settled
// without a human. It is a fixed rule engine with hand-picked additive
// weights, not a trained model.
package scorer

import (
	"time"

	"github.com/shopspring/decimal"

	"prolead/internal/domain"
	"prolead/pkg/config"
)

// Signal weights. The sum of all positive signals is 1.0.
const (
	WeightTenure       = 0.2 // provider registered more than 30 days ago
	WeightDeposits     = 0.3 // at least one prior verified deposit
	WeightSubscription = 0.2 // subscription currently active
	WeightSaneAmount   = 0.2 // amount within the sane band
	WeightDepositAge   = 0.1 // detected more than 2 hours ago
)

const (
	minTenure     = 30 * 24 * time.Hour
	minDepositAge = 2 * time.Hour
)

// Signals are the inputs to one scoring decision.
type Signals struct {
	ProviderRegisteredAt time.Time
	VerifiedDeposits     int
	SubscriptionActive   bool
	Amount               decimal.Decimal
	DetectedAt           time.Time
}

type Engine struct {
	cfg config.ReconConfig

	// now is swappable for tests.
	now func() time.Time
}

func NewEngine(cfg config.ReconConfig) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// Score computes the confidence that an unsolicited deposit is genuine.
// Always in [0, 1] and monotonic in each positive signal.
func (e *Engine) Score(s Signals) float64 {
	score := 0.0

	if !s.ProviderRegisteredAt.IsZero() && e.now().Sub(s.ProviderRegisteredAt) > minTenure {
		score += WeightTenure
	}
	if s.VerifiedDeposits >= 1 {
		score += WeightDeposits
	}
	if s.SubscriptionActive {
		score += WeightSubscription
	}
	if s.Amount.GreaterThanOrEqual(e.cfg.SaneAmountMin) && s.Amount.LessThanOrEqual(e.cfg.SaneAmountMax) {
		score += WeightSaneAmount
	}
	if !s.DetectedAt.IsZero() && e.now().Sub(s.DetectedAt) > minDepositAge {
		score += WeightDepositAge
	}

	return score
}

// Evaluate scores the signals and reports whether the deposit clears the
// auto-approval threshold.
func (e *Engine) Evaluate(s Signals) (float64, bool) {
	score := e.Score(s)
	return score, score > e.cfg.AutoApproveScore
}

// SignalsFor builds scoring inputs from a provider account and an incoming
// bank transaction.
func SignalsFor(provider *domain.ProviderAccount, tx *domain.BankTransaction, detectedAt time.Time) Signals {
	return Signals{
		ProviderRegisteredAt: provider.RegisteredAt,
		VerifiedDeposits:     provider.VerifiedDepositCount,
		SubscriptionActive:   provider.SubscriptionActive,
		Amount:               tx.Amount,
		DetectedAt:           detectedAt,
	}
}
