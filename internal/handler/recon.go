package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"prolead/internal/domain"
	"prolead/internal/recon"
	"prolead/pkg/errors"
	"prolead/pkg/validator"
)

// ReconHandler exposes reconciliation runs over HTTP for operators.
type ReconHandler struct {
	service   *recon.Service
	validator *validator.Validator
	logger    Logger
}

func NewReconHandler(service *recon.Service, val *validator.Validator, log Logger) *ReconHandler {
	return &ReconHandler{service: service, validator: val, logger: log}
}

// Run triggers a reconciliation run against the bank feed and returns the
// summary. The run is synchronous; the scheduler calls the same path.
func (h *ReconHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary := h.service.RunBatch(r.Context())
	respondJSON(w, http.StatusOK, summary)
}

type processTransactionRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	Amount      string `json:"amount" validate:"required"`
	Reference   string `json:"reference" validate:"max=140"`
	Description string `json:"description" validate:"max=280"`
}

// ProcessTransaction reconciles a single transaction supplied by hand, for
// settling statement lines the feed never carried.
func (h *ReconHandler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var req processTransactionRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "Request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := domain.ParseBankTransaction(req.ID, req.Amount, req.Reference, req.Description)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.service.ProcessTransaction(r.Context(), tx)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrInvalidAmount),
			errors.Is(err, errors.ErrAmountOutOfBounds),
			errors.Is(err, errors.ErrInvalidReference):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Manual reconciliation failed", map[string]interface{}{
				"bank_tx_id": req.ID,
				"error":      err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "Failed to reconcile transaction")
		}
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}
