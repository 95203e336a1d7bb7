// Package notification delivers provider and admin emails for reconciliation
// events. Delivery is best effort: settlement never waits on, or rolls back
// for, a failed send.
package notification

import (
	"context"
	"fmt"

	"prolead/internal/domain"
	"prolead/pkg/logger"
)

// Mailer sends a single email. Satisfied by pkg/mailer.
type Mailer interface {
	Send(to, subject, body string) error
}

// Service defines the notification egress used by the reconciliation engine.
type Service interface {
	CreditsActivated(ctx context.Context, provider *domain.ProviderAccount, deposit *domain.DepositRequest, credits int64)
	DepositUnderpaid(ctx context.Context, provider *domain.ProviderAccount, deposit *domain.DepositRequest, shortfall string)
	ReviewRequired(ctx context.Context, alert *domain.AdminAlert)
}

type DefaultService struct {
	mailer     Mailer
	adminEmail string
	logger     logger.Logger
}

func NewService(mailer Mailer, adminEmail string, log logger.Logger) *DefaultService {
	return &DefaultService{
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     log,
	}
}

func (s *DefaultService) CreditsActivated(ctx context.Context, provider *domain.ProviderAccount, deposit *domain.DepositRequest, credits int64) {
	subject := "Your lead credits are active"
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your deposit of %s and activated %d lead credits on your account.\nReference: %s\n\nProLead",
		provider.BusinessName, deposit.Amount.StringFixed(2), credits, deposit.ReferenceNumber,
	)
	s.send(provider.Email, subject, body, "credits_activated", deposit.ID.String())
}

func (s *DefaultService) DepositUnderpaid(ctx context.Context, provider *domain.ProviderAccount, deposit *domain.DepositRequest, shortfall string) {
	subject := "Deposit received - outstanding balance"
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received %s against your deposit request %s and activated %d credits.\nAn outstanding balance of %s remains; the request stays open until it is settled.\n\nProLead",
		provider.BusinessName, deposit.Amount.StringFixed(2), deposit.ReferenceNumber, deposit.CreditsToActivate, shortfall,
	)
	s.send(provider.Email, subject, body, "deposit_underpaid", deposit.ID.String())
}

func (s *DefaultService) ReviewRequired(ctx context.Context, alert *domain.AdminAlert) {
	subject := fmt.Sprintf("Deposit review required: %s", alert.CustomerCode)
	body := fmt.Sprintf(
		"A deposit needs manual review.\n\nCustomer code: %s\nAmount: %s\nReference: %s\nBank reference: %s\nReason: %s\nAlert: %s",
		alert.CustomerCode, alert.Amount.StringFixed(2), alert.Reference, alert.BankReference, alert.Reason, alert.ID,
	)
	s.send(s.adminEmail, subject, body, "review_required", alert.ID.String())
}

func (s *DefaultService) send(to, subject, body, event, entityID string) {
	if to == "" || s.mailer == nil {
		s.logger.Debug("Notification skipped, no recipient or mailer", map[string]interface{}{
			"event":     event,
			"entity_id": entityID,
		})
		return
	}

	if err := s.mailer.Send(to, subject, body); err != nil {
		// Logged and swallowed: notification failure never blocks settlement.
		s.logger.Error("Failed to send notification", map[string]interface{}{
			"event":     event,
			"entity_id": entityID,
			"error":     err.Error(),
		})
		return
	}

	s.logger.Info("Notification sent", map[string]interface{}{
		"event":     event,
		"entity_id": entityID,
		"subject":   subject,
	})
}
