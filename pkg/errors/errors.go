// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Reconciliation error taxonomy. Every failure surfaced by the engine maps
// onto one of these values so callers can branch without string matching.
var (
	// Validation errors: rejected immediately, never retried.
	ErrInvalidAmount      = errors.New("deposit amount must be positive")
	ErrInvalidReference   = errors.New("reference does not match expected format")
	ErrAmountOutOfBounds  = errors.New("deposit amount outside allowed bounds")
	ErrInvalidDecision    = errors.New("unknown admin decision")
	ErrDecisionNotSupported = errors.New("manual adjustment is not implemented")

	// Lookup errors.
	ErrProviderNotFound = errors.New("provider account not found")
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrDepositNotFound  = errors.New("deposit request not found")
	ErrAlertNotFound    = errors.New("admin alert not found")

	// Settlement errors.
	ErrAlreadyProcessed   = errors.New("bank transaction already processed")
	ErrDepositNotPending  = errors.New("deposit request is not pending")
	ErrAlertAlreadyClosed = errors.New("admin alert already resolved")
)

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
