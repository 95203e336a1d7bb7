package bank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prolead/pkg/config"
	"prolead/pkg/logger"
)

func TestHTTPFeedFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"transactions": [
				{"id": "FNB-001", "amount": "250.00", "reference": "PC1A2B3C", "description": "EFT", "timestamp": "2025-06-01T10:00:00Z"},
				{"id": "FNB-002", "amount": "not-a-number", "reference": "CUS12345678", "timestamp": "2025-06-01T10:05:00Z"},
				{"id": "FNB-003", "amount": "-50.00", "reference": "", "timestamp": "2025-06-01T10:06:00Z"},
				{"id": "FNB-004", "amount": "100.00", "reference": "CUS12345678", "timestamp": "bad-timestamp"}
			]
		}`))
	}))
	defer server.Close()

	feed := NewHTTPFeed(config.BankConfig{
		APIURL:  server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, logger.NewNop())

	txs, err := feed.FetchTransactions(context.Background())
	require.NoError(t, err)

	// Malformed and non-positive amounts are skipped, bad timestamps are not fatal.
	require.Len(t, txs, 2)
	assert.Equal(t, "FNB-001", txs[0].ID)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("250.00")))
	assert.Equal(t, "PC1A2B3C", txs[0].Reference)
	assert.Equal(t, "FNB-004", txs[1].ID)
	assert.False(t, txs[1].Timestamp.IsZero())
}

func TestHTTPFeedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	feed := NewHTTPFeed(config.BankConfig{APIURL: server.URL, Timeout: 5 * time.Second}, logger.NewNop())

	_, err := feed.FetchTransactions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type stubCodeSource struct {
	codes []string
}

func (s *stubCodeSource) ListCustomerCodes(ctx context.Context, limit int) ([]string, error) {
	return s.codes, nil
}

func TestMockFeedUsesRealCustomerCodes(t *testing.T) {
	source := &stubCodeSource{codes: []string{"CUS12345678", "CUSAABBCCDD"}}
	feed := NewMockFeed(source, logger.NewNop())

	txs, err := feed.FetchTransactions(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	for _, tx := range txs {
		assert.NotEmpty(t, tx.ID)
		assert.True(t, tx.Amount.GreaterThan(decimal.Zero))
	}
}

func TestMockFeedNoProviders(t *testing.T) {
	feed := NewMockFeed(&stubCodeSource{}, logger.NewNop())

	txs, err := feed.FetchTransactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)
}
