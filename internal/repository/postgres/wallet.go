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

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (
			id, provider_id, credit_balance, cash_balance, status, created_at, updated_at
		) VALUES (
			:id, :provider_id, :credit_balance, :cash_balance, :status, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, wallet)
	return errors.Wrap(err, "failed to create wallet")
}

func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT * FROM wallets WHERE id = $1`
	err := r.db.GetContext(ctx, wallet, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to find wallet by id")
	}
	return wallet, nil
}

func (r *WalletRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT * FROM wallets WHERE provider_id = $1`
	err := r.db.GetContext(ctx, wallet, query, providerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to find wallet by provider id")
	}
	return wallet, nil
}

func (r *WalletRepository) Update(ctx context.Context, wallet *domain.Wallet) error {
	wallet.UpdatedAt = time.Now()
	query := `
		UPDATE wallets SET
			credit_balance = :credit_balance,
			cash_balance = :cash_balance,
			status = :status,
			last_transaction_at = :last_transaction_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	_, err := r.db.NamedExecContext(ctx, query, wallet)
	return errors.Wrap(err, "failed to update wallet")
}
