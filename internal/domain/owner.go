package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer owns one ledger per currency.
type Customer struct {
	CreatedAt time.Time
	ID        string
	Name      string
	Phone     string
}

// BankAccount owns a single ledger in its own currency.
type BankAccount struct {
	CreatedAt     time.Time
	ID            string
	Name          string
	BankName      string
	AccountNumber string
	Currency      string
}

// Scope returns the bank account's ledger scope with its currency filled in.
func (b *BankAccount) Scope() ScopeKey {
	return ScopeKey{Kind: ScopeBankAccount, OwnerID: b.ID, Currency: b.Currency}
}

// Mirror is the denormalized current balance of a scope.
type Mirror struct {
	UpdatedAt time.Time
	Scope     ScopeKey
	Balance   decimal.Decimal
}

// RiskLevel classifies a pool position.
type RiskLevel string

const (
	RiskShort RiskLevel = "short"
	RiskFlat  RiskLevel = "flat"
	RiskLong  RiskLevel = "long"
)

// CurrencyPool is the desk's aggregate position in one currency. Pools are
// created implicitly on first use.
type CurrencyPool struct {
	UpdatedAt   time.Time
	Currency    string
	Balance     decimal.Decimal
	TotalBought decimal.Decimal
	TotalSold   decimal.Decimal
}

// RiskLevel derives the pool's risk level from its balance sign.
func (p *CurrencyPool) RiskLevel() RiskLevel {
	switch {
	case p.Balance.IsNegative():
		return RiskShort
	case p.Balance.IsZero():
		return RiskFlat
	default:
		return RiskLong
	}
}

// PoolTotals splits an appended amount into the bought and sold accumulators.
// Positive amounts count as bought, negative amounts as sold.
func PoolTotals(amount decimal.Decimal) (bought, sold decimal.Decimal) {
	if amount.IsNegative() {
		return decimal.Zero, amount.Abs()
	}
	return amount, decimal.Zero
}
