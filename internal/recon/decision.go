package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prolead/internal/domain"
	"prolead/internal/ledger"
	"prolead/pkg/errors"
)

// Decision values accepted from the review queue.
const (
	DecisionApprove          = "approve"
	DecisionReject           = "reject"
	DecisionManualAdjustment = "manual_adjustment"
)

type DecisionRequest struct {
	AlertID   uuid.UUID `json:"alert_id" validate:"required"`
	Decision  string    `json:"decision" validate:"required,oneof=approve reject manual_adjustment"`
	Notes     string    `json:"notes" validate:"max=1000"`
	DecidedBy string    `json:"decided_by" validate:"required,max=255"`
}

// HandleDecision applies an admin's resolution of an open alert. Approval
// settles at the alert's recorded amount; rejection fails the underlying
// deposit if there is one. Either way the alert leaves the open queue.
func (s *Service) HandleDecision(ctx context.Context, req *DecisionRequest) (*Outcome, error) {
	alert, err := s.alerts.FindByID(ctx, req.AlertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != domain.AlertStatusOpen {
		return nil, errors.ErrAlertAlreadyClosed
	}

	switch req.Decision {
	case DecisionApprove:
		return s.approveAlert(ctx, alert, req)
	case DecisionReject:
		return s.rejectAlert(ctx, alert, req)
	case DecisionManualAdjustment:
		// Requires a back-office correction journal that does not exist yet.
		return nil, errors.ErrDecisionNotSupported
	default:
		return nil, errors.ErrInvalidDecision
	}
}

// approveAlert settles the alert's transaction at the recorded amount. The
// admin's judgement overrides tolerance: the amount actually received is
// authoritative.
func (s *Service) approveAlert(ctx context.Context, alert *domain.AdminAlert, req *DecisionRequest) (*Outcome, error) {
	deposit, provider, err := s.resolveAlertTarget(ctx, alert)
	if err != nil {
		return nil, err
	}

	credits := domain.CreditsForAmount(alert.Amount, s.cfg.RatePerCredit)
	note := fmt.Sprintf("Approved by %s: %s", req.DecidedBy, req.Notes)

	wallet, err := s.wallets.FindByProviderID(ctx, provider.ID)
	if err != nil {
		return nil, err
	}

	posting := &ledger.Posting{
		WalletID:      wallet.ID,
		ProviderID:    provider.ID,
		DepositID:     deposit.ID,
		Reference:     deposit.ReferenceNumber,
		BankReference: alert.BankReference,
		Entries: []ledger.Entry{{
			Type:    domain.EntryTypeDepositCredit,
			Amount:  alert.Amount,
			Credits: credits,
		}},
		Deposit: ledger.DepositUpdate{
			Status:       domain.DepositStatusCompleted,
			Amount:       alert.Amount,
			Credits:      credits,
			AutoVerified: false,
			Note:         note,
			Complete:     true,
		},
	}

	if err := s.ledger.Post(ctx, posting); err != nil {
		return nil, err
	}

	if err := s.alerts.Resolve(ctx, alert.ID, domain.AlertStatusApproved, req.DecidedBy, req.Notes); err != nil {
		return nil, err
	}

	s.markProcessed(ctx, alert.BankReference)

	deposit.Amount = alert.Amount
	deposit.CreditsToActivate = credits
	s.notifier.CreditsActivated(ctx, provider, deposit, credits)

	s.logger.Info("Alert approved and settled", map[string]interface{}{
		"alert_id":   alert.ID,
		"deposit_id": deposit.ID,
		"decided_by": req.DecidedBy,
		"credits":    credits,
	})

	depositID := deposit.ID
	alertID := alert.ID
	return &Outcome{
		Status:           OutcomeSettled,
		DepositID:        &depositID,
		AlertID:          &alertID,
		CreditsActivated: credits,
	}, nil
}

// resolveAlertTarget finds the deposit and provider an approval settles
// against. Alerts raised on unsolicited transactions carry no deposit; one is
// created on approval so the settlement has something to post against.
func (s *Service) resolveAlertTarget(ctx context.Context, alert *domain.AdminAlert) (*domain.DepositRequest, *domain.ProviderAccount, error) {
	if alert.DepositID != nil {
		deposit, err := s.deposits.FindByID(ctx, *alert.DepositID)
		if err != nil {
			return nil, nil, err
		}
		provider, err := s.providers.FindByID(ctx, deposit.ProviderID)
		if err != nil {
			return nil, nil, err
		}
		return deposit, provider, nil
	}

	if alert.CustomerCode == "" {
		return nil, nil, errors.ErrProviderNotFound
	}
	provider, err := s.providers.FindByCustomerCode(ctx, alert.CustomerCode)
	if err != nil {
		return nil, nil, err
	}

	deposit := &domain.DepositRequest{
		ID:                uuid.New(),
		ProviderID:        provider.ID,
		Amount:            alert.Amount,
		CreditsToActivate: domain.CreditsForAmount(alert.Amount, s.cfg.RatePerCredit),
		Status:            domain.DepositStatusPending,
		ReferenceNumber:   domain.NewDepositReference(),
		CustomerCode:      provider.CustomerCode,
		IsAutoVerified:    false,
		VerificationNotes: fmt.Sprintf("Created on admin approval of alert %s", alert.ID),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := s.deposits.Create(ctx, deposit); err != nil {
		return nil, nil, err
	}
	return deposit, provider, nil
}

// rejectAlert closes the alert and fails the underlying deposit, if any. The
// money stays wherever finance put it; nothing touches the wallet.
func (s *Service) rejectAlert(ctx context.Context, alert *domain.AdminAlert, req *DecisionRequest) (*Outcome, error) {
	if alert.DepositID != nil {
		note := fmt.Sprintf("Rejected by %s: %s", req.DecidedBy, req.Notes)
		if err := s.deposits.MarkFailed(ctx, *alert.DepositID, note); err != nil && !errors.Is(err, errors.ErrDepositNotPending) {
			return nil, err
		}
	}

	if err := s.alerts.Resolve(ctx, alert.ID, domain.AlertStatusRejected, req.DecidedBy, req.Notes); err != nil {
		return nil, err
	}

	s.logger.Info("Alert rejected", map[string]interface{}{
		"alert_id":   alert.ID,
		"decided_by": req.DecidedBy,
	})

	alertID := alert.ID
	return &Outcome{Status: OutcomeRejected, AlertID: &alertID}, nil
}
