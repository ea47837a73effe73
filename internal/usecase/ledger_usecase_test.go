package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
	"github.com/iho/fxledger/internal/usecase/mocks"
)

const actor = "operator-1"

var (
	customerUSD = domain.CustomerScope("cust-1", "USD")
	bankEUR     = domain.BankAccountScope("bank-1")
	poolUSD     = domain.PoolScope("USD")
	day         = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type ledgerEnv struct {
	store     *mocks.FakeStore
	cache     *mocks.FakeBalanceCache
	ledger    *usecase.LedgerUseCase
	projector *usecase.ProjectorUseCase
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()

	store := mocks.NewFakeStore()
	store.AddCustomer(&domain.Customer{ID: "cust-1", Name: "Reza"})
	store.AddBankAccount(&domain.BankAccount{ID: "bank-1", Name: "Ops", Currency: "EUR"})

	cache := mocks.NewFakeBalanceCache()
	ledger := usecase.NewLedgerUseCase(
		store,
		store.Entries(),
		store.Mirrors(),
		store.Pools(),
		store.Customers(),
		store.BankAccounts(),
		store.Outbox(),
		store.Audit(),
		mocks.NewFakeIDGenerator(),
	).WithCache(cache, time.Minute)
	projector := usecase.NewProjectorUseCase(
		store.Entries(),
		store.Mirrors(),
		store.Pools(),
		store.Customers(),
		store.BankAccounts(),
	).WithCache(cache, time.Minute)

	return &ledgerEnv{store: store, cache: cache, ledger: ledger, projector: projector}
}

func (e *ledgerEnv) append(t *testing.T, scope domain.ScopeKey, amount string, at time.Time) *domain.Entry {
	t.Helper()
	entry, err := e.ledger.Append(context.Background(), usecase.AppendInput{
		Scope:           scope,
		Amount:          d(amount),
		Type:            domain.TransactionManual,
		TransactionDate: at,
		Actor:           actor,
	})
	require.NoError(t, err)
	return entry
}

// stored returns the persisted balances of an entry as (before, after).
func (e *ledgerEnv) stored(t *testing.T, kind domain.ScopeKind, id int64) (string, string) {
	t.Helper()
	entry, ok := e.store.Entry(kind, id)
	require.True(t, ok, "entry %d not stored", id)
	return entry.BalanceBefore.String(), entry.BalanceAfter.String()
}

func (e *ledgerEnv) current(t *testing.T, scope domain.ScopeKey) string {
	t.Helper()
	balance, err := e.projector.GetCurrentBalance(context.Background(), scope)
	require.NoError(t, err)
	return balance.String()
}

func (e *ledgerEnv) requireConsistent(t *testing.T, scope domain.ScopeKey) {
	t.Helper()
	report, err := e.ledger.Verify(context.Background(), scope)
	require.NoError(t, err)
	require.True(t, report.Consistent(), "violations: %+v mirror=%s tail=%s", report.Violations, report.Mirror, report.Tail)
}

func TestLedgerUseCase_BackdatedInsertShiftsLaterEntries(t *testing.T) {
	env := newLedgerEnv(t)

	first := env.append(t, customerUSD, "1000", day)
	assert.Equal(t, "1000", env.current(t, customerUSD))

	second := env.append(t, customerUSD, "-300", day.Add(time.Hour))
	assert.Equal(t, "700", env.current(t, customerUSD))

	backdated := env.append(t, customerUSD, "500", day.Add(-24*time.Hour))

	before, after := env.stored(t, domain.ScopeCustomer, backdated.ID)
	assert.Equal(t, []string{"0", "500"}, []string{before, after})
	before, after = env.stored(t, domain.ScopeCustomer, first.ID)
	assert.Equal(t, []string{"500", "1500"}, []string{before, after})
	before, after = env.stored(t, domain.ScopeCustomer, second.ID)
	assert.Equal(t, []string{"1500", "1200"}, []string{before, after})

	assert.Equal(t, "1200", env.current(t, customerUSD))
	env.requireConsistent(t, customerUSD)
}

func TestLedgerUseCase_SoftDeleteFirstEntryRelinksSurvivor(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	first := env.append(t, customerUSD, "100", day)
	second := env.append(t, customerUSD, "200", day.Add(time.Minute))

	deleted, err := env.ledger.SoftDelete(ctx, domain.ScopeCustomer, first.ID, actor)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedBy)
	assert.Equal(t, actor, *deleted.DeletedBy)

	before, after := env.stored(t, domain.ScopeCustomer, second.ID)
	assert.Equal(t, []string{"0", "200"}, []string{before, after})
	assert.Equal(t, "200", env.current(t, customerUSD))

	visible, err := env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD})
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	audit, err := env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, first.ID, audit[0].ID)

	env.requireConsistent(t, customerUSD)
}

func TestLedgerUseCase_DeleteOnlyEntryThenRestore(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	only := env.append(t, bankEUR, "750.25", day)
	assert.Equal(t, "750.25", env.current(t, bankEUR))

	_, err := env.ledger.SoftDelete(ctx, domain.ScopeBankAccount, only.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, "0", env.current(t, bankEUR))
	env.requireConsistent(t, bankEUR)

	restored, err := env.ledger.Restore(ctx, domain.ScopeBankAccount, only.ID, actor)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, "750.25", env.current(t, bankEUR))
	env.requireConsistent(t, bankEUR)
}

func TestLedgerUseCase_EditMiddleAmountCascades(t *testing.T) {
	env := newLedgerEnv(t)

	a := env.append(t, customerUSD, "100", day)
	b := env.append(t, customerUSD, "50", day.Add(time.Hour))
	c := env.append(t, customerUSD, "25", day.Add(2*time.Hour))
	assert.Equal(t, "175", env.current(t, customerUSD))

	edited, err := env.ledger.EditAmount(context.Background(), domain.ScopeCustomer, b.ID, d("80"), actor)
	require.NoError(t, err)
	assert.Equal(t, "80", edited.Amount.String())
	assert.True(t, edited.TransactionDate.Equal(b.TransactionDate))

	_, after := env.stored(t, domain.ScopeCustomer, a.ID)
	assert.Equal(t, "100", after)
	_, after = env.stored(t, domain.ScopeCustomer, b.ID)
	assert.Equal(t, "180", after)
	_, after = env.stored(t, domain.ScopeCustomer, c.ID)
	assert.Equal(t, "205", after)
	assert.Equal(t, "205", env.current(t, customerUSD))
	env.requireConsistent(t, customerUSD)
}

func TestLedgerUseCase_EditAmountRejectsAmountFinerThanStoredScale(t *testing.T) {
	env := newLedgerEnv(t)

	entry := env.append(t, customerUSD, "100", day)
	begins := env.store.Begins

	_, err := env.ledger.EditAmount(context.Background(), domain.ScopeCustomer, entry.ID, d("99.123456789"), actor)
	assert.ErrorIs(t, err, domain.ErrAmountTooPrecise)
	assert.Equal(t, begins, env.store.Begins)

	_, after := env.stored(t, domain.ScopeCustomer, entry.ID)
	assert.Equal(t, "100", after)
}

func TestLedgerUseCase_SameTimestampLandsAfterSiblings(t *testing.T) {
	env := newLedgerEnv(t)

	a := env.append(t, customerUSD, "10", day)
	later := env.append(t, customerUSD, "1", day.Add(time.Hour))
	b := env.append(t, customerUSD, "20", day)

	entries, err := env.ledger.ListForScope(context.Background(), usecase.ListEntriesInput{Scope: customerUSD})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{a.ID, b.ID, later.ID}, []int64{entries[0].ID, entries[1].ID, entries[2].ID})

	before, after := env.stored(t, domain.ScopeCustomer, b.ID)
	assert.Equal(t, []string{"10", "30"}, []string{before, after})
	assert.Equal(t, "31", env.current(t, customerUSD))
}

func TestLedgerUseCase_FrozenEntriesStayInCanonicalChain(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "100", day)
	disputed := env.append(t, customerUSD, "40", day.Add(time.Hour))
	env.append(t, customerUSD, "10", day.Add(2*time.Hour))

	frozen, err := env.ledger.SetFrozen(ctx, domain.ScopeCustomer, disputed.ID, true, actor)
	require.NoError(t, err)
	assert.True(t, frozen.IsFrozen)

	before, after := env.stored(t, domain.ScopeCustomer, disputed.ID)
	assert.Equal(t, []string{"100", "140"}, []string{before, after})
	assert.Equal(t, "150", env.current(t, customerUSD))

	effective, err := env.projector.GetEffectiveBalance(ctx, customerUSD, nil)
	require.NoError(t, err)
	assert.Equal(t, "110", effective.String())

	_, err = env.ledger.SetFrozen(ctx, domain.ScopeCustomer, disputed.ID, false, actor)
	require.NoError(t, err)
	effective, err = env.projector.GetEffectiveBalance(ctx, customerUSD, nil)
	require.NoError(t, err)
	assert.Equal(t, "150", effective.String())
}

func TestLedgerUseCase_PoolsRejectFreeze(t *testing.T) {
	env := newLedgerEnv(t)

	entry := env.append(t, poolUSD, "100", day)

	_, err := env.ledger.SetFrozen(context.Background(), domain.ScopeCurrencyPool, entry.ID, true, actor)
	assert.ErrorIs(t, err, domain.ErrFreezeNotSupported)
}

func TestLedgerUseCase_PoolTotalsAccumulateOnAppendOnly(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, poolUSD, "100", day)
	sell := env.append(t, poolUSD, "-40", day.Add(time.Hour))

	pool, err := env.projector.GetPool(ctx, "usd")
	require.NoError(t, err)
	assert.Equal(t, "60", pool.Balance.String())
	assert.Equal(t, "100", pool.TotalBought.String())
	assert.Equal(t, "40", pool.TotalSold.String())
	assert.Equal(t, domain.RiskLong, pool.RiskLevel())

	_, err = env.ledger.SoftDelete(ctx, domain.ScopeCurrencyPool, sell.ID, actor)
	require.NoError(t, err)

	pool, err = env.projector.GetPool(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, "100", pool.Balance.String())
	assert.Equal(t, "40", pool.TotalSold.String())
}

func TestLedgerUseCase_AppendRejectsUnknownOwners(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		scope   domain.ScopeKey
		wantErr error
	}{
		{name: "unknown customer", scope: domain.CustomerScope("ghost", "USD"), wantErr: domain.ErrInvalidScope},
		{name: "unknown bank account", scope: domain.BankAccountScope("ghost"), wantErr: domain.ErrInvalidScope},
		{name: "bank currency mismatch", scope: domain.ScopeKey{Kind: domain.ScopeBankAccount, OwnerID: "bank-1", Currency: "USD"}, wantErr: domain.ErrCurrencyMismatch},
		{name: "malformed currency", scope: domain.CustomerScope("cust-1", "US"), wantErr: domain.ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.Append(ctx, usecase.AppendInput{
				Scope:  tt.scope,
				Amount: d("1"),
				Type:   domain.TransactionOrder,
				Actor:  actor,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, env.store.Begins)
}

func TestLedgerUseCase_AppendValidation(t *testing.T) {
	env := newLedgerEnv(t)

	tests := []struct {
		name    string
		input   usecase.AppendInput
		wantErr error
	}{
		{
			name:    "zero amount",
			input:   usecase.AppendInput{Scope: customerUSD, Amount: decimal.Zero, Type: domain.TransactionManual, Actor: actor},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown type",
			input:   usecase.AppendInput{Scope: customerUSD, Amount: d("5"), Type: "transfer", Actor: actor},
			wantErr: domain.ErrInvalidTransactionType,
		},
		{
			name:    "missing actor",
			input:   usecase.AppendInput{Scope: customerUSD, Amount: d("5"), Type: domain.TransactionManual},
			wantErr: domain.ErrInvalidActor,
		},
		{
			name:    "amount too large",
			input:   usecase.AppendInput{Scope: customerUSD, Amount: d("-10000000000000000"), Type: domain.TransactionManual, Actor: actor},
			wantErr: domain.ErrAmountTooLarge,
		},
		{
			name:    "amount finer than stored scale",
			input:   usecase.AppendInput{Scope: customerUSD, Amount: d("0.000000004"), Type: domain.TransactionManual, Actor: actor},
			wantErr: domain.ErrAmountTooPrecise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.Append(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, env.store.Begins)
}

func TestLedgerUseCase_AppendDefaultsDateAndFillsBankCurrency(t *testing.T) {
	env := newLedgerEnv(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env.ledger.WithClock(func() time.Time { return now })

	ref := "ORD-42"
	entry, err := env.ledger.Append(context.Background(), usecase.AppendInput{
		Scope:       bankEUR,
		Amount:      d("-12.5"),
		Type:        domain.TransactionDocument,
		ReferenceID: &ref,
		Actor:       actor,
		Description: "wire fee",
	})
	require.NoError(t, err)

	assert.True(t, entry.TransactionDate.Equal(now))
	assert.Equal(t, "EUR", entry.Scope.Currency)
	assert.Equal(t, actor, entry.CreatedBy)
	assert.Equal(t, "-12.5", entry.BalanceAfter.String())
}

func TestLedgerUseCase_EntryNotFound(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	_, err := env.ledger.SoftDelete(ctx, domain.ScopeCustomer, 999, actor)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	entry := env.append(t, customerUSD, "10", day)

	_, err = env.ledger.Restore(ctx, domain.ScopeCustomer, entry.ID, actor)
	assert.ErrorIs(t, err, domain.ErrEntryNotDeleted)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = env.ledger.SoftDelete(ctx, domain.ScopeCustomer, entry.ID, actor)
	require.NoError(t, err)

	_, err = env.ledger.SoftDelete(ctx, domain.ScopeCustomer, entry.ID, actor)
	assert.ErrorIs(t, err, domain.ErrEntryAlreadyDeleted)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = env.ledger.EditAmount(ctx, domain.ScopeCustomer, entry.ID, d("3"), actor)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = env.ledger.SoftDelete(ctx, "vault", entry.ID, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidScopeKey)
}

func TestLedgerUseCase_MirrorDriftAbortsMutation(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	entry := env.append(t, customerUSD, "100", day)
	env.store.TamperMirror(customerUSD, d("99"))

	_, err := env.ledger.Append(ctx, usecase.AppendInput{
		Scope: customerUSD, Amount: d("1"), Type: domain.TransactionManual, Actor: actor,
	})
	require.ErrorIs(t, err, domain.ErrLedgerCorruption)

	_, err = env.ledger.EditAmount(ctx, domain.ScopeCustomer, entry.ID, d("5"), actor)
	require.ErrorIs(t, err, domain.ErrLedgerCorruption)

	entries, err := env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "100", entries[0].Amount.String())
	assert.Equal(t, "99", env.store.MirrorBalance(customerUSD).String())
}

func TestLedgerUseCase_BrokenChainRollsBackBackdatedInsert(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "100", day)
	middle := env.append(t, customerUSD, "50", day.Add(time.Hour))
	env.append(t, customerUSD, "25", day.Add(2*time.Hour))

	// Out-of-band write breaks the arithmetic of an entry in the walking set.
	env.store.Tamper(domain.ScopeCustomer, middle.ID, func(e *domain.Entry) {
		e.Amount = d("51")
	})

	_, err := env.ledger.Append(ctx, usecase.AppendInput{
		Scope:           customerUSD,
		Amount:          d("5"),
		Type:            domain.TransactionManual,
		TransactionDate: day.Add(30 * time.Minute),
		Actor:           actor,
	})

	var corruption *domain.CorruptionError
	require.ErrorAs(t, err, &corruption)
	assert.Equal(t, middle.ID, corruption.EntryID)

	entries, err := env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "175", env.store.MirrorBalance(customerUSD).String())
	assert.Len(t, filterEvents(env.store.OutboxEvents(), domain.EventTypeEntryAppended), 3)
}

func TestLedgerUseCase_RecomputeRepairsScope(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "100", day)
	b := env.append(t, customerUSD, "50", day.Add(time.Hour))
	env.append(t, customerUSD, "25", day.Add(2*time.Hour))

	env.store.Tamper(domain.ScopeCustomer, b.ID, func(e *domain.Entry) {
		e.BalanceBefore = d("0")
		e.BalanceAfter = d("50")
	})
	env.store.TamperMirror(customerUSD, d("1"))

	report, err := env.ledger.Verify(ctx, customerUSD)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.NotEmpty(t, report.Violations)

	result, err := env.ledger.Recompute(ctx, customerUSD, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 3, result.Walked)
	assert.True(t, result.MirrorDrifted())
	assert.Equal(t, "175", result.Balance.String())

	env.requireConsistent(t, customerUSD)
	assert.NotEmpty(t, filterEvents(env.store.OutboxEvents(), domain.EventTypeScopeRecomputed))

	// Recomputing a healthy scope is a no-op.
	events := len(env.store.OutboxEvents())
	result, err = env.ledger.Recompute(ctx, customerUSD, actor)
	require.NoError(t, err)
	assert.Zero(t, result.Changed)
	assert.False(t, result.MirrorDrifted())
	assert.Len(t, env.store.OutboxEvents(), events)
}

func TestLedgerUseCase_RecomputeAllCollectsFailures(t *testing.T) {
	store := mocks.NewFakeStore()
	store.AddCustomer(&domain.Customer{ID: "cust-1", Name: "Reza"})

	mirrors := store.Mirrors()
	ledger := usecase.NewLedgerUseCase(store, store.Entries(), mirrors, store.Pools(),
		store.Customers(), store.BankAccounts(), nil, nil, mocks.NewFakeIDGenerator())

	ctx := context.Background()
	for _, scope := range []domain.ScopeKey{customerUSD, domain.CustomerScope("cust-1", "EUR"), poolUSD} {
		_, err := ledger.Append(ctx, usecase.AppendInput{Scope: scope, Amount: d("10"), Type: domain.TransactionOrder, Actor: actor})
		require.NoError(t, err)
	}

	lockErr := errors.New("lock timeout")
	mirrors.LockFunc = func(_ context.Context, scope domain.ScopeKey) error {
		if scope.Same(poolUSD) {
			return lockErr
		}
		return nil
	}

	bulk, err := ledger.RecomputeAll(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, bulk.Results, 2)
	require.Len(t, bulk.Failures, 1)
	assert.True(t, bulk.Failures[0].Scope.Same(poolUSD))
	assert.ErrorIs(t, bulk.Failures[0].Err, lockErr)
}

func TestLedgerUseCase_VerifyAll(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "10", day)
	env.append(t, bankEUR, "20", day)
	env.append(t, poolUSD, "30", day)

	report, err := env.ledger.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scopes)
	assert.True(t, report.Consistent())

	env.store.TamperMirror(poolUSD, d("31"))

	report, err = env.ledger.VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Inconsistent, 1)
	assert.True(t, report.Inconsistent[0].Scope.Same(poolUSD))
	assert.Empty(t, report.Inconsistent[0].Violations)
}

func TestLedgerUseCase_ReplayMatchesBalanceAsOf(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	amounts := []string{"100", "-30", "12.75", "-0.25", "400", "-250"}
	offsets := []int{5, 1, 3, 0, 4, 2}
	var created []*domain.Entry
	for i, amount := range amounts {
		created = append(created, env.append(t, customerUSD, amount, day.Add(time.Duration(offsets[i])*time.Hour)))
	}

	_, err := env.ledger.SoftDelete(ctx, domain.ScopeCustomer, created[2].ID, actor)
	require.NoError(t, err)
	_, err = env.ledger.EditAmount(ctx, domain.ScopeCustomer, created[4].ID, d("-15"), actor)
	require.NoError(t, err)

	entries, err := env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD})
	require.NoError(t, err)

	for h := -1; h <= 6; h++ {
		asOf := day.Add(time.Duration(h)*time.Hour + 30*time.Minute)
		replayed := domain.RunningBalance(entries, domain.ViewCanonical, &asOf)

		got, err := env.projector.GetBalanceAsOf(ctx, customerUSD, asOf)
		require.NoError(t, err)
		assert.True(t, replayed.Equal(got), "as of %s: replay %s, stored %s", asOf, replayed, got)
	}

	result, err := env.ledger.Recompute(ctx, customerUSD, actor)
	require.NoError(t, err)
	assert.Zero(t, result.Changed)
}

func TestLedgerUseCase_WritesOutboxAndAudit(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := usecase.WithRequestID(context.Background(), "req-7")

	entry, err := env.ledger.Append(ctx, usecase.AppendInput{
		Scope: customerUSD, Amount: d("42"), Type: domain.TransactionOrder, Actor: actor,
	})
	require.NoError(t, err)

	events := env.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeEntryAppended, events[0].EventType)
	assert.Equal(t, customerUSD.String(), events[0].AggregateID)
	assert.Equal(t, string(domain.ScopeCustomer), events[0].AggregateType)
	assert.Equal(t, "42", events[0].Payload["current_balance"])
	assert.Equal(t, entry.ID, events[0].Payload["entry_id"])

	logs := env.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionEntryAppend, logs[0].Action)
	assert.Equal(t, actor, logs[0].Actor)
	assert.Equal(t, "req-7", logs[0].RequestID)
	assert.Nil(t, logs[0].BeforeState)

	_, err = env.ledger.SetFrozen(ctx, domain.ScopeCustomer, entry.ID, true, actor)
	require.NoError(t, err)

	logs = env.store.AuditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, domain.AuditActionEntryFreeze, logs[1].Action)
	assert.Equal(t, false, logs[1].BeforeState["is_frozen"])
	assert.Equal(t, true, logs[1].AfterState["is_frozen"])
	assert.Len(t, filterEvents(env.store.OutboxEvents(), domain.EventTypeEntryFrozen), 1)
}

func TestLedgerUseCase_RefreshesCacheAfterCommit(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "10", day)
	cached, ok, err := env.cache.GetBalance(ctx, customerUSD)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10", cached.String())

	env.append(t, customerUSD, "5", day.Add(time.Hour))
	cached, _, err = env.cache.GetBalance(ctx, customerUSD)
	require.NoError(t, err)
	assert.Equal(t, "15", cached.String())
	assert.Empty(t, env.cache.Invalidated)
	assert.Equal(t, "15", env.current(t, customerUSD))
}

func TestLedgerUseCase_InvalidatesCacheWhenRefreshFails(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "10", day)
	assert.Equal(t, "10", env.current(t, customerUSD))

	env.cache.SetErr = errors.New("redis down")
	env.append(t, customerUSD, "5", day.Add(time.Hour))
	assert.Contains(t, env.cache.Invalidated, customerUSD.String())

	_, ok, err := env.cache.GetBalance(ctx, customerUSD)
	require.NoError(t, err)
	assert.False(t, ok)

	env.cache.SetErr = nil
	assert.Equal(t, "15", env.current(t, customerUSD))
}

func TestLedgerUseCase_ListForScopeFilters(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "1", day)
	frozen := env.append(t, customerUSD, "2", day.Add(time.Hour))
	env.append(t, customerUSD, "3", day.Add(2*time.Hour))
	_, err := env.ledger.SetFrozen(ctx, domain.ScopeCustomer, frozen.ID, true, actor)
	require.NoError(t, err)

	from := day.Add(30 * time.Minute)
	entries, err := env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD, From: &from})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD, ExcludeFrozen: true})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, frozen.ID, entries[0].ID)

	to := day
	_, err = env.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: customerUSD, From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func filterEvents(events []*domain.OutboxEvent, eventType string) []*domain.OutboxEvent {
	var out []*domain.OutboxEvent
	for _, e := range events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestLedgerUseCase_RunsWithoutOutboxAndAudit(t *testing.T) {
	store := mocks.NewFakeStore()
	store.AddCustomer(&domain.Customer{ID: "cust-1", Name: "Reza"})
	ledger := usecase.NewLedgerUseCase(
		store, store.Entries(), store.Mirrors(), store.Pools(), store.Customers(), store.BankAccounts(),
		nil, nil, mocks.NewFakeIDGenerator(),
	)
	ctx := context.Background()

	entry, err := ledger.Append(ctx, usecase.AppendInput{
		Scope:           domain.CustomerScope("cust-1", "USD"),
		Amount:          decimal.NewFromInt(25),
		Type:            domain.TransactionManual,
		TransactionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Actor:           "teller",
	})
	require.NoError(t, err)
	assert.Equal(t, "25", entry.BalanceAfter.String())

	_, err = ledger.SoftDelete(ctx, domain.ScopeCustomer, entry.ID, "teller")
	require.NoError(t, err)

	logs, err := ledger.ListAuditLogs(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, store.OutboxEvents())
}
