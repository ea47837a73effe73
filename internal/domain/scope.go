package domain

import (
	"fmt"
	"strings"
)

// ScopeKind identifies which family of ledgers a scope belongs to.
type ScopeKind string

const (
	ScopeCustomer     ScopeKind = "customer"
	ScopeBankAccount  ScopeKind = "bank_account"
	ScopeCurrencyPool ScopeKind = "currency_pool"
)

// ScopeKinds lists every supported kind in a stable order.
var ScopeKinds = []ScopeKind{ScopeCustomer, ScopeBankAccount, ScopeCurrencyPool}

// ScopePolicy parametrizes the ledger engine for one scope kind.
type ScopePolicy struct {
	// HonorsFreeze reports whether entries of this kind may be frozen.
	HonorsFreeze bool
	// RequiresOwner reports whether the scope must resolve to an existing owner row.
	RequiresOwner bool
	// TracksTotals reports whether appends feed the bought/sold accumulators.
	TracksTotals bool
	// MirrorName is the table holding the current balance mirror.
	MirrorName string
	// EntryTable is the table holding the scope's history.
	EntryTable string
}

var scopePolicies = map[ScopeKind]ScopePolicy{
	ScopeCustomer: {
		HonorsFreeze:  true,
		RequiresOwner: true,
		MirrorName:    "customer_balances",
		EntryTable:    "customer_balance_history",
	},
	ScopeBankAccount: {
		HonorsFreeze:  true,
		RequiresOwner: true,
		MirrorName:    "bank_account_balances",
		EntryTable:    "bank_account_balance_history",
	},
	ScopeCurrencyPool: {
		TracksTotals: true,
		MirrorName:   "currency_pools",
		EntryTable:   "currency_pool_history",
	},
}

// PolicyFor returns the policy for kind.
func PolicyFor(kind ScopeKind) (ScopePolicy, error) {
	p, ok := scopePolicies[kind]
	if !ok {
		return ScopePolicy{}, fmt.Errorf("%w: unknown scope kind %q", ErrInvalidScopeKey, kind)
	}
	return p, nil
}

// ParseScopeKind parses a kind as used in URLs and CLI arguments.
// Dashes are accepted in place of underscores.
func ParseScopeKind(s string) (ScopeKind, error) {
	kind := ScopeKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, err := PolicyFor(kind); err != nil {
		return "", err
	}
	return kind, nil
}

// ScopeKey identifies one independent ledger.
//
// Customer scopes use OwnerID and Currency, bank account scopes use OwnerID
// (Currency is the account's own currency), pool scopes use Currency only.
type ScopeKey struct {
	Kind     ScopeKind
	OwnerID  string
	Currency string
}

// CustomerScope builds the scope of one customer's balance in one currency.
func CustomerScope(customerID, currency string) ScopeKey {
	return ScopeKey{Kind: ScopeCustomer, OwnerID: customerID, Currency: NormalizeCurrency(currency)}
}

// BankAccountScope builds the scope of one bank account.
func BankAccountScope(bankAccountID string) ScopeKey {
	return ScopeKey{Kind: ScopeBankAccount, OwnerID: bankAccountID}
}

// PoolScope builds the scope of one currency pool.
func PoolScope(currency string) ScopeKey {
	return ScopeKey{Kind: ScopeCurrencyPool, Currency: NormalizeCurrency(currency)}
}

// Policy returns the scope's policy. Callers are expected to have validated the key.
func (k ScopeKey) Policy() ScopePolicy {
	return scopePolicies[k.Kind]
}

// Validate checks that the key has the fields its kind requires.
func (k ScopeKey) Validate() error {
	if _, err := PolicyFor(k.Kind); err != nil {
		return err
	}

	switch k.Kind {
	case ScopeCustomer:
		if strings.TrimSpace(k.OwnerID) == "" {
			return fmt.Errorf("%w: customer id is required", ErrInvalidScopeKey)
		}
		return ValidateCurrency(k.Currency)
	case ScopeBankAccount:
		if strings.TrimSpace(k.OwnerID) == "" {
			return fmt.Errorf("%w: bank account id is required", ErrInvalidScopeKey)
		}
		if k.Currency != "" {
			return ValidateCurrency(k.Currency)
		}
		return nil
	default:
		return ValidateCurrency(k.Currency)
	}
}

// String renders the key in the form used for cache keys and event aggregate ids.
func (k ScopeKey) String() string {
	switch k.Kind {
	case ScopeCustomer:
		return fmt.Sprintf("%s:%s:%s", k.Kind, k.OwnerID, k.Currency)
	case ScopeBankAccount:
		return fmt.Sprintf("%s:%s", k.Kind, k.OwnerID)
	default:
		return fmt.Sprintf("%s:%s", k.Kind, k.Currency)
	}
}

// ParseScopeKey is the inverse of ScopeKey.String.
func ParseScopeKey(s string) (ScopeKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return ScopeKey{}, fmt.Errorf("%w: %q", ErrInvalidScopeKey, s)
	}

	kind, err := ParseScopeKind(parts[0])
	if err != nil {
		return ScopeKey{}, err
	}

	var key ScopeKey
	switch kind {
	case ScopeCustomer:
		if len(parts) != 3 {
			return ScopeKey{}, fmt.Errorf("%w: %q", ErrInvalidScopeKey, s)
		}
		key = CustomerScope(parts[1], parts[2])
	case ScopeBankAccount:
		if len(parts) != 2 {
			return ScopeKey{}, fmt.Errorf("%w: %q", ErrInvalidScopeKey, s)
		}
		key = BankAccountScope(parts[1])
	default:
		if len(parts) != 2 {
			return ScopeKey{}, fmt.Errorf("%w: %q", ErrInvalidScopeKey, s)
		}
		key = PoolScope(parts[1])
	}

	return key, key.Validate()
}

// Same reports whether two keys address the same ledger. Bank account keys
// compare by account id only.
func (k ScopeKey) Same(other ScopeKey) bool {
	if k.Kind != other.Kind {
		return false
	}
	switch k.Kind {
	case ScopeCustomer:
		return k.OwnerID == other.OwnerID && k.Currency == other.Currency
	case ScopeBankAccount:
		return k.OwnerID == other.OwnerID
	default:
		return k.Currency == other.Currency
	}
}
