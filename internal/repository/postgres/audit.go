package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"prolead/internal/domain"
	"prolead/pkg/errors"
)

// AuditRepository reads the append-only audit trail. Writes happen inside the
// ledger's settlement transaction; this repository never updates or deletes.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) FindByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*domain.AuditTransaction, error) {
	var entries []*domain.AuditTransaction
	query := `
		SELECT * FROM audit_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &entries, query, walletID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find audit transactions")
	}
	return entries, nil
}

func (r *AuditRepository) FindByDepositID(ctx context.Context, depositID uuid.UUID) ([]*domain.AuditTransaction, error) {
	var entries []*domain.AuditTransaction
	query := `SELECT * FROM audit_transactions WHERE deposit_id = $1 ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &entries, query, depositID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find audit transactions by deposit")
	}
	return entries, nil
}

func (r *AuditRepository) CountByWalletID(ctx context.Context, walletID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM audit_transactions WHERE wallet_id = $1`
	err := r.db.GetContext(ctx, &count, query, walletID)
	return count, errors.Wrap(err, "failed to count audit transactions")
}
