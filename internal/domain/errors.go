package domain

import (
	"errors"
	"fmt"
)

var (
	// Scope errors
	ErrInvalidScope       = errors.New("scope does not resolve to an existing owner")
	ErrInvalidScopeKey    = errors.New("invalid scope key")
	ErrFreezeNotSupported = errors.New("scope does not support frozen entries")
	ErrCurrencyMismatch   = errors.New("currency does not match bank account currency")

	// Entry errors
	ErrEntryNotFound       = errors.New("ledger entry not found")
	ErrEntryAlreadyDeleted = fmt.Errorf("%w: entry already deleted", ErrEntryNotFound)
	ErrEntryNotDeleted     = fmt.Errorf("%w: entry is not deleted", ErrEntryNotFound)

	// Owner errors
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrBankAccountNotFound = errors.New("bank account not found")
	ErrPoolNotFound        = errors.New("currency pool not found")

	// Integrity errors
	ErrLedgerCorruption    = errors.New("ledger corruption detected")
	ErrConcurrencyConflict = errors.New("concurrent modification of ledger scope")
)

// CorruptionError describes which entry broke which invariant.
type CorruptionError struct {
	Scope   ScopeKey
	EntryID int64
	Reason  string
}

func (e *CorruptionError) Error() string {
	if e.EntryID == 0 {
		return fmt.Sprintf("ledger corruption detected in %s: %s", e.Scope, e.Reason)
	}
	return fmt.Sprintf("ledger corruption detected in %s at entry %d: %s", e.Scope, e.EntryID, e.Reason)
}

// Unwrap makes errors.Is(err, ErrLedgerCorruption) hold.
func (e *CorruptionError) Unwrap() error {
	return ErrLedgerCorruption
}
