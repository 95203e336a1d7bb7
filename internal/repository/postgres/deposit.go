package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"prolead/internal/domain"
	"prolead/pkg/errors"
)

type DepositRepository struct {
	db *sqlx.DB
}

func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) Create(ctx context.Context, deposit *domain.DepositRequest) error {
	query := `
		INSERT INTO deposit_requests (
			id, provider_id, amount, credits_to_activate, status, reference_number,
			bank_reference, customer_code, is_auto_verified, verification_notes,
			created_at, processed_at, updated_at
		) VALUES (
			:id, :provider_id, :amount, :credits_to_activate, :status, :reference_number,
			:bank_reference, :customer_code, :is_auto_verified, :verification_notes,
			:created_at, :processed_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, deposit)
	return errors.Wrap(err, "failed to create deposit request")
}

func (r *DepositRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DepositRequest, error) {
	deposit := &domain.DepositRequest{}
	query := `SELECT * FROM deposit_requests WHERE id = $1`
	err := r.db.GetContext(ctx, deposit, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrDepositNotFound
		}
		return nil, errors.Wrap(err, "failed to find deposit by id")
	}
	return deposit, nil
}

func (r *DepositRepository) FindPendingByReference(ctx context.Context, reference string) (*domain.DepositRequest, error) {
	deposit := &domain.DepositRequest{}
	query := `SELECT * FROM deposit_requests WHERE reference_number = $1 AND status = $2`
	err := r.db.GetContext(ctx, deposit, query, strings.ToUpper(strings.TrimSpace(reference)), domain.DepositStatusPending)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrDepositNotFound
		}
		return nil, errors.Wrap(err, "failed to find pending deposit by reference")
	}
	return deposit, nil
}

// FindPendingByProvider returns a provider's outstanding deposit requests,
// most recent first. The ordering is the matcher's tie-breaker.
func (r *DepositRepository) FindPendingByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.DepositRequest, error) {
	var deposits []*domain.DepositRequest
	query := `SELECT * FROM deposit_requests WHERE provider_id = $1 AND status = $2 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &deposits, query, providerID, domain.DepositStatusPending)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find pending deposits by provider")
	}
	return deposits, nil
}

// ExistsByBankReference reports whether a bank transaction id has already been
// attached to any deposit request. This is the dedupe check.
func (r *DepositRepository) ExistsByBankReference(ctx context.Context, bankTxID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM deposit_requests WHERE bank_reference = $1)`
	err := r.db.GetContext(ctx, &exists, query, bankTxID)
	return exists, errors.Wrap(err, "failed to check bank reference")
}

func (r *DepositRepository) Update(ctx context.Context, deposit *domain.DepositRequest) error {
	deposit.UpdatedAt = time.Now()
	query := `
		UPDATE deposit_requests SET
			amount = :amount,
			credits_to_activate = :credits_to_activate,
			status = :status,
			bank_reference = :bank_reference,
			is_auto_verified = :is_auto_verified,
			verification_notes = :verification_notes,
			processed_at = :processed_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	_, err := r.db.NamedExecContext(ctx, query, deposit)
	return errors.Wrap(err, "failed to update deposit request")
}

// MarkFailed transitions a pending deposit to failed with a note. Used by the
// admin reject path.
func (r *DepositRepository) MarkFailed(ctx context.Context, id uuid.UUID, note string) error {
	query := `
		UPDATE deposit_requests SET
			status = $1,
			verification_notes = TRIM(BOTH FROM verification_notes || E'\n' || $2),
			processed_at = NOW(),
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, domain.DepositStatusFailed, note, id, domain.DepositStatusPending)
	if err != nil {
		return errors.Wrap(err, "failed to mark deposit failed")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrDepositNotPending
	}
	return nil
}
