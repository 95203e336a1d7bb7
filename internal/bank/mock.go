package bank

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"prolead/internal/domain"
	"prolead/pkg/logger"
)

// CodeSource supplies real customer codes so mock transactions reference
// actual provider accounts. Implemented by the provider repository.
type CodeSource interface {
	ListCustomerCodes(ctx context.Context, limit int) ([]string, error)
}

// MockFeed generates plausible EFT transactions for development and demos.
// A portion of the generated records carry a real customer code, a portion an
// unmatchable reference, and a portion no reference at all.
type MockFeed struct {
	codes  CodeSource
	rnd    *rand.Rand
	logger logger.Logger
}

func NewMockFeed(codes CodeSource, log logger.Logger) *MockFeed {
	return &MockFeed{
		codes:  codes,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: log,
	}
}

func (f *MockFeed) FetchTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	customerCodes, err := f.codes.ListCustomerCodes(ctx, 20)
	if err != nil {
		return nil, err
	}
	if len(customerCodes) == 0 {
		f.logger.Warn("Mock feed has no customer codes to reference", nil)
		return nil, nil
	}

	count := 1 + f.rnd.Intn(3)
	txs := make([]domain.BankTransaction, 0, count)
	for i := 0; i < count; i++ {
		reference := customerCodes[f.rnd.Intn(len(customerCodes))]
		switch f.rnd.Intn(5) {
		case 0:
			reference = "" // depositor forgot the reference
		case 1:
			reference = "XX" + reference // garbled by the bank
		}

		// Amounts clustered around whole credit multiples, with occasional
		// over/under payments.
		amount := decimal.NewFromInt(int64(1+f.rnd.Intn(20)) * 50)
		if f.rnd.Intn(4) == 0 {
			jitter := decimal.NewFromInt(int64(f.rnd.Intn(30) - 15))
			amount = amount.Add(jitter)
		}

		txs = append(txs, domain.BankTransaction{
			ID:          fmt.Sprintf("MOCK-%d-%04d", time.Now().Unix(), f.rnd.Intn(10000)),
			Amount:      amount,
			Reference:   reference,
			Description: "EFT deposit",
			Timestamp:   time.Now().Add(-time.Duration(f.rnd.Intn(240)) * time.Minute),
		})
	}

	f.logger.Info("Mock bank feed generated transactions", map[string]interface{}{
		"count": len(txs),
	})
	return txs, nil
}
