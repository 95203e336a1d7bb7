// Package ledger applies settlement postings atomically. It is the only code
// that mutates wallet balances.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"prolead/internal/domain"
	"prolead/pkg/errors"
)

type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Entry is one wallet credit within a posting. Overpayment settlements carry
// two entries: the original amount and the surplus converted to credits.
type Entry struct {
	Type    domain.AuditEntryType
	Amount  decimal.Decimal
	Credits int64
}

// DepositUpdate describes the state the deposit request is left in by the
// posting. Underpayment settlements leave the deposit pending with a reduced
// amount; everything else completes it.
type DepositUpdate struct {
	Status       domain.DepositStatus
	Amount       decimal.Decimal
	Credits      int64
	AutoVerified bool
	Note         string
	Complete     bool
}

// Posting is one atomic settlement: wallet credits, audit entries, and the
// deposit request transition, all inside a single database transaction.
type Posting struct {
	WalletID      uuid.UUID
	ProviderID    uuid.UUID
	DepositID     uuid.UUID
	Reference     string
	BankReference string
	Entries       []Entry
	Deposit       DepositUpdate
}

// Post applies a settlement posting. The wallet row is locked for update so
// at most one settlement per wallet runs at a time; the deposit is claimed by
// transitioning it out of pending (or re-stamping it, for partial settlement)
// in the same transaction, which prevents double-settlement across
// overlapping reconciliation runs.
func (s *Service) Post(ctx context.Context, p *Posting) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin settlement transaction")
	}
	defer tx.Rollback()

	// Lock the wallet row.
	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT credit_balance FROM wallets WHERE id = $1 FOR UPDATE`,
		p.WalletID,
	).Scan(&balance)
	if err != nil {
		return errors.Wrap(err, "failed to lock wallet")
	}

	// Claim the deposit. A deposit already out of pending, or already carrying
	// this bank reference, means another run settled it first.
	processedAt := interface{}(nil)
	if p.Deposit.Complete {
		processedAt = time.Now()
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE deposit_requests SET
			amount = $1,
			credits_to_activate = $2,
			status = $3,
			bank_reference = $4,
			is_auto_verified = $5,
			verification_notes = TRIM(BOTH E'\n' FROM verification_notes || E'\n' || $6),
			processed_at = COALESCE($7, processed_at),
			updated_at = NOW()
		WHERE id = $8
		  AND status = $9
		  AND (bank_reference IS NULL OR bank_reference <> $4)
	`,
		p.Deposit.Amount, p.Deposit.Credits, p.Deposit.Status, p.BankReference,
		p.Deposit.AutoVerified, p.Deposit.Note, processedAt,
		p.DepositID, domain.DepositStatusPending,
	)
	if err != nil {
		return errors.Wrap(err, "failed to claim deposit request")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrAlreadyProcessed
	}

	// Credit the wallet and record one audit entry per posting entry.
	for _, entry := range p.Entries {
		err = tx.QueryRowContext(ctx, `
			UPDATE wallets SET
				credit_balance = credit_balance + $1,
				cash_balance = cash_balance + $2,
				last_transaction_at = NOW(),
				updated_at = NOW()
			WHERE id = $3
			RETURNING credit_balance
		`, entry.Credits, entry.Amount, p.WalletID).Scan(&balance)
		if err != nil {
			return errors.Wrap(err, "failed to credit wallet")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_transactions (
				id, wallet_id, deposit_id, entry_type, amount, credits,
				reference, bank_reference, status, balance_after, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		`,
			uuid.New(), p.WalletID, p.DepositID, entry.Type, entry.Amount,
			entry.Credits, p.Reference, p.BankReference, "completed", balance,
		)
		if err != nil {
			return errors.Wrap(err, "failed to record audit transaction")
		}
	}

	// A completed settlement counts toward the provider's verified deposits,
	// which feeds the confidence scorer on future unsolicited deposits.
	if p.Deposit.Complete {
		_, err = tx.ExecContext(ctx, `
			UPDATE provider_accounts SET
				verified_deposit_count = verified_deposit_count + 1,
				updated_at = NOW()
			WHERE id = $1
		`, p.ProviderID)
		if err != nil {
			return errors.Wrap(err, "failed to update provider deposit count")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit settlement")
}
