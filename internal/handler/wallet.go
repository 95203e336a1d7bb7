package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"prolead/internal/repository/postgres"
	"prolead/pkg/errors"
)

// WalletHandler exposes wallet balances and their audit trail.
type WalletHandler struct {
	wallets *postgres.WalletRepository
	audits  *postgres.AuditRepository
	logger  Logger
}

func NewWalletHandler(wallets *postgres.WalletRepository, audits *postgres.AuditRepository, log Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, audits: audits, logger: log}
}

// GetByProvider returns the wallet of a provider.
func (h *WalletHandler) GetByProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(mux.Vars(r)["provider_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid provider ID")
		return
	}

	wallet, err := h.wallets.FindByProviderID(r.Context(), providerID)
	if err != nil {
		if errors.Is(err, errors.ErrWalletNotFound) {
			respondError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		h.logger.Error("Failed to fetch wallet", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch wallet")
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// Transactions returns the paginated audit trail of a wallet.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid wallet ID")
		return
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	txs, err := h.audits.FindByWalletID(r.Context(), walletID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to fetch audit transactions", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}

	total, err := h.audits.CountByWalletID(r.Context(), walletID)
	if err != nil {
		h.logger.Warn("Failed to count audit transactions", map[string]interface{}{"error": err.Error()})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}
