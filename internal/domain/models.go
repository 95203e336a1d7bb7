// Package domain defines the entities of the deposit reconciliation engine.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderAccount is the payment account of a service provider on the lead
// marketplace. The customer code is the stable reference a provider quotes
// when making a bank transfer.
type ProviderAccount struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	CustomerCode         string        `json:"customer_code" db:"customer_code"`
	BusinessName         string        `json:"business_name" db:"business_name"`
	Email                string        `json:"email" db:"email"`
	Phone                string        `json:"phone" db:"phone"`
	SubscriptionActive   bool          `json:"subscription_active" db:"subscription_active"`
	VerifiedDepositCount int           `json:"verified_deposit_count" db:"verified_deposit_count"`
	Status               AccountStatus `json:"status" db:"status"`
	RegisteredAt         time.Time     `json:"registered_at" db:"registered_at"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

// Wallet holds a provider's purchased lead credits and cash balance. Mutated
// exclusively by the ledger inside a database transaction.
type Wallet struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	ProviderID        uuid.UUID       `json:"provider_id" db:"provider_id"`
	CreditBalance     int64           `json:"credit_balance" db:"credit_balance"`
	CashBalance       decimal.Decimal `json:"cash_balance" db:"cash_balance"`
	Status            WalletStatus    `json:"status" db:"status"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty" db:"last_transaction_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

// DepositRequest records an expected or detected payment awaiting settlement
// into credits. Terminal states are completed and failed; rows are never
// deleted.
type DepositRequest struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	ProviderID        uuid.UUID       `json:"provider_id" db:"provider_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	CreditsToActivate int64           `json:"credits_to_activate" db:"credits_to_activate"`
	Status            DepositStatus   `json:"status" db:"status"`
	ReferenceNumber   string          `json:"reference_number" db:"reference_number"`
	BankReference     *string         `json:"bank_reference,omitempty" db:"bank_reference"`
	CustomerCode      string          `json:"customer_code" db:"customer_code"`
	IsAutoVerified    bool            `json:"is_auto_verified" db:"is_auto_verified"`
	VerificationNotes string          `json:"verification_notes" db:"verification_notes"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusCompleted DepositStatus = "completed"
	DepositStatusFailed    DepositStatus = "failed"
)

// AuditTransaction is an immutable, append-only record of a wallet mutation.
type AuditTransaction struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	WalletID      uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	DepositID     *uuid.UUID      `json:"deposit_id,omitempty" db:"deposit_id"`
	EntryType     AuditEntryType  `json:"entry_type" db:"entry_type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Credits       int64           `json:"credits" db:"credits"`
	Reference     string          `json:"reference" db:"reference"`
	BankReference string          `json:"bank_reference" db:"bank_reference"`
	Status        string          `json:"status" db:"status"`
	BalanceAfter  int64           `json:"balance_after" db:"balance_after"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type AuditEntryType string

const (
	EntryTypeDepositCredit     AuditEntryType = "deposit_credit"
	EntryTypeOverpaymentCredit AuditEntryType = "overpayment_credit"
)

// AdminAlert is the review-queue entry for anything outside automatic
// tolerance. The payload carries the original bank transaction so approval
// can replay the settlement.
type AdminAlert struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	DepositID     *uuid.UUID      `json:"deposit_id,omitempty" db:"deposit_id"`
	CustomerCode  string          `json:"customer_code" db:"customer_code"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Reference     string          `json:"reference" db:"reference"`
	BankReference string          `json:"bank_reference" db:"bank_reference"`
	Reason        string          `json:"reason" db:"reason"`
	Status        AlertStatus     `json:"status" db:"status"`
	Payload       Metadata        `json:"payload" db:"payload"`
	ResolutionNotes string        `json:"resolution_notes" db:"resolution_notes"`
	ResolvedBy    string          `json:"resolved_by" db:"resolved_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusApproved AlertStatus = "approved"
	AlertStatusRejected AlertStatus = "rejected"
)

// BankTransaction is a transient record from the external bank feed. It is
// never persisted as its own entity; dedupe works by attaching its ID to a
// DepositRequest's bank_reference.
type BankTransaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ParseBankTransaction builds a BankTransaction from raw string fields, as
// received from the manual reconciliation endpoint.
func ParseBankTransaction(id, amount, reference, description string) (*BankTransaction, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || parsed.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveAmount
	}
	return &BankTransaction{
		ID:          strings.TrimSpace(id),
		Amount:      parsed,
		Reference:   reference,
		Description: description,
		Timestamp:   time.Now(),
	}, nil
}

// ErrNonPositiveAmount rejects zero and negative transaction amounts at parse
// time, before they reach the engine.
var ErrNonPositiveAmount = errors.New("transaction amount must be positive")

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// Reference prefixes used as the sole correlation key between a bank transfer
// and a system-side account or request.
const (
	CustomerCodePrefix     = "CUS"
	DepositReferencePrefix = "PC"
)

// CreditsForAmount converts a cash amount into credits at the given rate.
// 	credits = max(1, floor(amount / rate))
func CreditsForAmount(amount, ratePerCredit decimal.Decimal) int64 {
	if ratePerCredit.IsZero() {
		return 0
	}
	credits := amount.Div(ratePerCredit).Floor().IntPart()
	if credits < 1 {
		return 1
	}
	return credits
}

// NewDepositReference generates a PC-prefixed reference number for a new
// deposit request.
func NewDepositReference() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return DepositReferencePrefix + token[:8]
}

// NewCustomerCode generates a CUS-prefixed customer code for a new provider.
func NewCustomerCode() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return CustomerCodePrefix + token[:8]
}
