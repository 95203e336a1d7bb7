package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"prolead/internal/domain"
	"prolead/internal/recon"
	"prolead/pkg/errors"
	"prolead/pkg/validator"
)

// AlertHandler serves the admin review queue.
type AlertHandler struct {
	service   *recon.Service
	alerts    recon.AlertRepository
	validator *validator.Validator
	logger    Logger
}

func NewAlertHandler(service *recon.Service, alerts recon.AlertRepository, val *validator.Validator, log Logger) *AlertHandler {
	return &AlertHandler{service: service, alerts: alerts, validator: val, logger: log}
}

// List returns alerts filtered by status, open by default.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.AlertStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.AlertStatusOpen
	}
	switch status {
	case domain.AlertStatusOpen, domain.AlertStatusApproved, domain.AlertStatusRejected:
	default:
		respondError(w, http.StatusBadRequest, "Invalid status filter")
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

	alerts, err := h.alerts.FindByStatus(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to fetch alerts", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns a single alert by ID.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	alert, err := h.alerts.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrAlertNotFound) {
			respondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		h.logger.Error("Failed to fetch alert", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch alert")
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

type decisionBody struct {
	Decision  string `json:"decision" validate:"required,oneof=approve reject manual_adjustment"`
	Notes     string `json:"notes" validate:"max=1000"`
	DecidedBy string `json:"decided_by" validate:"required,max=255"`
}

// Decide applies an admin decision to an open alert.
func (h *AlertHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	var body decisionBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "Request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.service.HandleDecision(r.Context(), &recon.DecisionRequest{
		AlertID:   id,
		Decision:  body.Decision,
		Notes:     body.Notes,
		DecidedBy: body.DecidedBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrAlertNotFound):
			respondError(w, http.StatusNotFound, "Alert not found")
		case errors.Is(err, errors.ErrAlertAlreadyClosed):
			respondError(w, http.StatusConflict, "Alert already resolved")
		case errors.Is(err, errors.ErrDecisionNotSupported):
			respondError(w, http.StatusUnprocessableEntity, "Decision not supported")
		case errors.Is(err, errors.ErrInvalidDecision):
			respondError(w, http.StatusBadRequest, "Invalid decision")
		case errors.Is(err, errors.ErrProviderNotFound):
			respondError(w, http.StatusUnprocessableEntity, "No provider to settle against")
		default:
			h.logger.Error("Failed to apply alert decision", map[string]interface{}{
				"alert_id": id,
				"error":    err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "Failed to apply decision")
		}
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}
