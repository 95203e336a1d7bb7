package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"prolead/internal/domain"
	"prolead/pkg/errors"
)

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.AdminAlert) error {
	query := `
		INSERT INTO admin_alerts (
			id, deposit_id, customer_code, amount, reference, bank_reference,
			reason, status, payload, resolution_notes, resolved_by, created_at, resolved_at
		) VALUES (
			:id, :deposit_id, :customer_code, :amount, :reference, :bank_reference,
			:reason, :status, :payload, :resolution_notes, :resolved_by, :created_at, :resolved_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, alert)
	return errors.Wrap(err, "failed to create admin alert")
}

func (r *AlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AdminAlert, error) {
	alert := &domain.AdminAlert{}
	query := `SELECT * FROM admin_alerts WHERE id = $1`
	err := r.db.GetContext(ctx, alert, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAlertNotFound
		}
		return nil, errors.Wrap(err, "failed to find admin alert by id")
	}
	return alert, nil
}

func (r *AlertRepository) FindByStatus(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]*domain.AdminAlert, error) {
	var alerts []*domain.AdminAlert
	query := `
		SELECT * FROM admin_alerts
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &alerts, query, status, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find admin alerts by status")
	}
	return alerts, nil
}

// ExistsOpenByBankReference reports whether an open alert already covers the
// bank transaction, so repeated feed runs do not flood the review queue.
func (r *AlertRepository) ExistsOpenByBankReference(ctx context.Context, bankTxID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM admin_alerts WHERE bank_reference = $1 AND status = $2)`
	err := r.db.GetContext(ctx, &exists, query, bankTxID, domain.AlertStatusOpen)
	return exists, errors.Wrap(err, "failed to check open alert by bank reference")
}

func (r *AlertRepository) CountByStatus(ctx context.Context, status domain.AlertStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM admin_alerts WHERE status = $1`
	err := r.db.GetContext(ctx, &count, query, status)
	return count, errors.Wrap(err, "failed to count admin alerts")
}

// Resolve closes an open alert. Resolving an already-closed alert is an
// error so two admins cannot action the same alert twice.
func (r *AlertRepository) Resolve(ctx context.Context, id uuid.UUID, status domain.AlertStatus, resolvedBy, notes string) error {
	query := `
		UPDATE admin_alerts SET
			status = $1,
			resolved_by = $2,
			resolution_notes = $3,
			resolved_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query, status, resolvedBy, notes, time.Now(), id, domain.AlertStatusOpen)
	if err != nil {
		return errors.Wrap(err, "failed to resolve admin alert")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrAlertAlreadyClosed
	}
	return nil
}
