package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest drift accepted between BalanceAfter and
// BalanceBefore + Amount, and between linked entries.
var BalanceTolerance = decimal.New(1, -4)

// TransactionType tags the business event that produced an entry. Audit only.
type TransactionType string

const (
	TransactionOrder    TransactionType = "order"
	TransactionDocument TransactionType = "document"
	TransactionManual   TransactionType = "manual"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionOrder, TransactionDocument, TransactionManual:
		return true
	}
	return false
}

// Entry is one immutable movement in a scope's history.
type Entry struct {
	TransactionDate   time.Time
	CreatedAt         time.Time
	DeletedAt         *time.Time
	ReferenceID       *string
	TransactionNumber *string
	DeletedBy         *string
	Scope             ScopeKey
	Type              TransactionType
	CreatedBy         string
	Description       string
	BalanceBefore     decimal.Decimal
	Amount            decimal.Decimal
	BalanceAfter      decimal.Decimal
	ID                int64
	IsDeleted         bool
	IsFrozen          bool
}

// Before reports whether e sorts before other in ledger order:
// TransactionDate ascending, then ID ascending.
func (e *Entry) Before(other *Entry) bool {
	return positionBefore(e.TransactionDate, e.ID, other.TransactionDate, other.ID)
}

func positionBefore(date time.Time, id int64, otherDate time.Time, otherID int64) bool {
	if !date.Equal(otherDate) {
		return date.Before(otherDate)
	}
	return id < otherID
}

// CheckArithmetic verifies BalanceAfter == BalanceBefore + Amount.
func (e *Entry) CheckArithmetic() error {
	expected := e.BalanceBefore.Add(e.Amount)
	if !withinTolerance(expected, e.BalanceAfter) {
		return &CorruptionError{
			Scope:   e.Scope,
			EntryID: e.ID,
			Reason: fmt.Sprintf("balance_after %s != balance_before %s + amount %s",
				e.BalanceAfter, e.BalanceBefore, e.Amount),
		}
	}
	return nil
}

// Apply sets BalanceBefore to before and derives BalanceAfter. It reports
// whether either stored value changed.
func (e *Entry) Apply(before decimal.Decimal) bool {
	after := before.Add(e.Amount)
	changed := !e.BalanceBefore.Equal(before) || !e.BalanceAfter.Equal(after)
	e.BalanceBefore = before
	e.BalanceAfter = after
	return changed
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(BalanceTolerance)
}

// View selects which entries a consumer sees. Deleted and frozen are
// independent axes.
type View uint8

const (
	// IncludeDeleted keeps soft-deleted entries.
	IncludeDeleted View = 1 << iota
	// ExcludeFrozen drops frozen entries.
	ExcludeFrozen
)

const (
	// ViewCanonical is what the running-balance chain is computed over.
	ViewCanonical View = 0
	// ViewEffective drops frozen entries, for effective balances.
	ViewEffective = ExcludeFrozen
	// ViewAudit shows everything.
	ViewAudit = IncludeDeleted
)

// Includes reports whether e is visible in view v.
func (v View) Includes(e *Entry) bool {
	if e.IsDeleted && v&IncludeDeleted == 0 {
		return false
	}
	if e.IsFrozen && v&ExcludeFrozen != 0 {
		return false
	}
	return true
}

// Filter returns the entries visible in v, preserving order.
func (v View) Filter(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if v.Includes(e) {
			out = append(out, e)
		}
	}
	return out
}
