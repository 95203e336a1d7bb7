// Package bank fetches transactions from the external banking API, with a
// mock generator for environments without credentials.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"prolead/internal/domain"
	"prolead/pkg/config"
	"prolead/pkg/logger"
)

// Feed produces the bank transactions to reconcile. Implementations are the
// live HTTP client and the mock generator.
type Feed interface {
	FetchTransactions(ctx context.Context) ([]domain.BankTransaction, error)
}

// HTTPFeed polls the configured banking API.
type HTTPFeed struct {
	client *http.Client
	url    string
	apiKey string
	logger logger.Logger
}

func NewHTTPFeed(cfg config.BankConfig, log logger.Logger) *HTTPFeed {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFeed{
		client: &http.Client{Timeout: timeout},
		url:    cfg.APIURL,
		apiKey: cfg.APIKey,
		logger: log,
	}
}

type feedResponse struct {
	Transactions []feedTransaction `json:"transactions"`
}

type feedTransaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

func (f *HTTPFeed) FetchTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bank api returned status %d", resp.StatusCode)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode bank api response: %w", err)
	}

	txs := make([]domain.BankTransaction, 0, len(payload.Transactions))
	for _, raw := range payload.Transactions {
		tx, err := raw.toDomain()
		if err != nil {
			// One malformed record must not poison the batch.
			f.logger.Warn("Skipping malformed bank transaction", map[string]interface{}{
				"bank_tx_id": raw.ID,
				"error":      err.Error(),
			})
			continue
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (t feedTransaction) toDomain() (domain.BankTransaction, error) {
	amount, err := parseAmount(t.Amount)
	if err != nil {
		return domain.BankTransaction{}, err
	}

	ts, err := time.Parse(time.RFC3339, t.Timestamp)
	if err != nil {
		ts = time.Now()
	}

	return domain.BankTransaction{
		ID:          t.ID,
		Amount:      amount,
		Reference:   t.Reference,
		Description: t.Description,
		Timestamp:   ts,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("non-positive amount %q", raw)
	}
	return amount, nil
}
