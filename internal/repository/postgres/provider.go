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

type ProviderRepository struct {
	db *sqlx.DB
}

func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(ctx context.Context, account *domain.ProviderAccount) error {
	query := `
		INSERT INTO provider_accounts (
			id, customer_code, business_name, email, phone, subscription_active,
			verified_deposit_count, status, registered_at, created_at, updated_at
		) VALUES (
			:id, :customer_code, :business_name, :email, :phone, :subscription_active,
			:verified_deposit_count, :status, :registered_at, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, account)
	return errors.Wrap(err, "failed to create provider account")
}

func (r *ProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProviderAccount, error) {
	account := &domain.ProviderAccount{}
	query := `SELECT * FROM provider_accounts WHERE id = $1`
	err := r.db.GetContext(ctx, account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrProviderNotFound
		}
		return nil, errors.Wrap(err, "failed to find provider by id")
	}
	return account, nil
}

func (r *ProviderRepository) FindByCustomerCode(ctx context.Context, code string) (*domain.ProviderAccount, error) {
	account := &domain.ProviderAccount{}
	query := `SELECT * FROM provider_accounts WHERE customer_code = $1`
	err := r.db.GetContext(ctx, account, query, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrProviderNotFound
		}
		return nil, errors.Wrap(err, "failed to find provider by customer code")
	}
	return account, nil
}

// ListCustomerCodes returns the customer codes of active providers. Used by
// the mock bank feed to generate plausible test transactions.
func (r *ProviderRepository) ListCustomerCodes(ctx context.Context, limit int) ([]string, error) {
	var codes []string
	query := `SELECT customer_code FROM provider_accounts WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	err := r.db.SelectContext(ctx, &codes, query, domain.AccountStatusActive, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list customer codes")
	}
	return codes, nil
}

func (r *ProviderRepository) Update(ctx context.Context, account *domain.ProviderAccount) error {
	account.UpdatedAt = time.Now()
	query := `
		UPDATE provider_accounts SET
			business_name = :business_name,
			email = :email,
			phone = :phone,
			subscription_active = :subscription_active,
			verified_deposit_count = :verified_deposit_count,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`
	_, err := r.db.NamedExecContext(ctx, query, account)
	return errors.Wrap(err, "failed to update provider account")
}
