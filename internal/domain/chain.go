package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SortEntries orders entries by TransactionDate, then ID.
func SortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
}

// MutationPoint returns the index of the first entry positioned at or after
// (date, id). For a deleted entry this is where it used to be. Entries must be sorted.
func MutationPoint(entries []*Entry, date time.Time, id int64) int {
	return sort.Search(len(entries), func(i int) bool {
		return !positionBefore(entries[i].TransactionDate, entries[i].ID, date, id)
	})
}

// CascadeResult is the outcome of walking a scope forward from a mutation point.
type CascadeResult struct {
	// Changed holds the entries whose balances were rewritten.
	Changed []*Entry
	// Walked is the number of entries visited.
	Walked int
	// Balance is the running balance after the last entry, i.e. the new mirror value.
	Balance decimal.Decimal
	// StoredAt is when Balance was written to the mirror. Zero until the
	// caller persists it.
	StoredAt time.Time
}

// Cascade recomputes BalanceBefore/BalanceAfter for entries[from:].
//
// entries must be the scope's canonical entries in ledger order. Every entry
// of the prefix entries[:from] must start from its predecessor's BalanceAfter
// (the first from zero) and satisfy after = before + amount. Every walked
// entry other than dirty must satisfy the same identity before it is rewritten.
// dirty is the entry whose amount was just edited, or 0.
func Cascade(scope ScopeKey, entries []*Entry, from int, dirty int64) (CascadeResult, error) {
	if from < 0 || from > len(entries) {
		return CascadeResult{}, fmt.Errorf("cascade start %d out of range [0,%d]", from, len(entries))
	}

	running := decimal.Zero
	for i := 0; i < from; i++ {
		if err := checkLink(scope, entries[i], running); err != nil {
			return CascadeResult{}, err
		}
		if err := entries[i].CheckArithmetic(); err != nil {
			return CascadeResult{}, err
		}
		running = entries[i].BalanceAfter
	}

	result := CascadeResult{}
	for _, e := range entries[from:] {
		if e.ID != dirty {
			if err := e.CheckArithmetic(); err != nil {
				return CascadeResult{}, err
			}
		}
		if e.Apply(running) {
			result.Changed = append(result.Changed, e)
		}
		running = e.BalanceAfter
		result.Walked++
	}

	result.Balance = running
	return result, nil
}

func checkLink(scope ScopeKey, e *Entry, expectedBefore decimal.Decimal) error {
	if withinTolerance(e.BalanceBefore, expectedBefore) {
		return nil
	}
	return &CorruptionError{
		Scope:   scope,
		EntryID: e.ID,
		Reason:  fmt.Sprintf("balance_before %s does not continue from %s", e.BalanceBefore, expectedBefore),
	}
}

// Violation is one broken invariant found by VerifyChain.
type Violation struct {
	EntryID int64  `json:"entry_id"`
	Reason  string `json:"reason"`
}

// VerifyChain checks that every canonical entry starts from its predecessor's
// BalanceAfter (the first from zero) and that after = before + amount, without
// modifying anything. It reports every violation rather than stopping at the first.
func VerifyChain(scope ScopeKey, entries []*Entry) []Violation {
	var violations []Violation

	running := decimal.Zero
	for _, e := range entries {
		if err := checkLink(scope, e, running); err != nil {
			violations = append(violations, Violation{EntryID: e.ID, Reason: err.(*CorruptionError).Reason})
		}
		if err := e.CheckArithmetic(); err != nil {
			violations = append(violations, Violation{EntryID: e.ID, Reason: err.(*CorruptionError).Reason})
		}
		running = e.BalanceAfter
	}

	return violations
}

// Tail returns the canonical balance of a sorted canonical entry list: the last
// entry's BalanceAfter, or zero.
func Tail(entries []*Entry) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.Zero
	}
	return entries[len(entries)-1].BalanceAfter
}

// RunningBalance replays entries visible in view from zero, stopping after
// asOf when it is set. It never reads stored balances.
func RunningBalance(entries []*Entry, view View, asOf *time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if !view.Includes(e) {
			continue
		}
		if asOf != nil && e.TransactionDate.After(*asOf) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total
}

// BalanceAsOf returns the BalanceAfter of the latest canonical entry dated at
// or before asOf, or zero. Entries must be sorted.
func BalanceAsOf(entries []*Entry, asOf time.Time) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		if !ViewCanonical.Includes(e) {
			continue
		}
		if e.TransactionDate.After(asOf) {
			break
		}
		balance = e.BalanceAfter
	}
	return balance
}

// CheckMirror verifies that a scope's stored mirror equals its canonical tail.
func CheckMirror(scope ScopeKey, mirror, tail decimal.Decimal) error {
	if withinTolerance(mirror, tail) {
		return nil
	}
	return &CorruptionError{
		Scope:  scope,
		Reason: fmt.Sprintf("mirror %s does not match canonical tail %s", mirror, tail),
	}
}

// Rebuild rewrites every entry's balances from zero without checking the
// stored values first. It is the repair path for a scope that fails Cascade.
func Rebuild(entries []*Entry) CascadeResult {
	result := CascadeResult{}
	running := decimal.Zero
	for _, e := range entries {
		if e.Apply(running) {
			result.Changed = append(result.Changed, e)
		}
		running = e.BalanceAfter
		result.Walked++
	}
	result.Balance = running
	return result
}
