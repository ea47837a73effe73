package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/fxledger/internal/adapter/repository/postgres"
	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
	"github.com/iho/fxledger/tests/testutil"
)

const actor = "integration"

var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

type stack struct {
	db        *testutil.TestDB
	ledger    *usecase.LedgerUseCase
	projector *usecase.ProjectorUseCase
}

func newStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.NewTestDB(t)
	db.TruncateAll(context.Background())

	pool := db.Pool
	entries := postgres.NewEntryRepository(pool)
	mirrors := postgres.NewMirrorRepository(pool)
	pools := postgres.NewPoolRepository(pool)
	customers := postgres.NewCustomerRepository(pool)
	accounts := postgres.NewBankAccountRepository(pool)

	ledger := usecase.NewLedgerUseCase(
		postgres.NewTxManager(pool),
		entries,
		mirrors,
		pools,
		customers,
		accounts,
		postgres.NewOutboxRepository(pool),
		postgres.NewAuditRepository(pool),
		postgres.NewULIDGenerator(),
	).
		WithRetrier(postgres.NewRetrier().WithMaxRetries(10).WithLogger(zerolog.Nop())).
		WithLogger(zerolog.Nop())

	projector := usecase.NewProjectorUseCase(entries, mirrors, pools, customers, accounts)

	return &stack{db: db, ledger: ledger, projector: projector}
}

func (s *stack) append(t *testing.T, scope domain.ScopeKey, amount string, at time.Time) *domain.Entry {
	t.Helper()
	entry, err := s.ledger.Append(context.Background(), usecase.AppendInput{
		Scope:           scope,
		Amount:          decimal.RequireFromString(amount),
		Type:            domain.TransactionManual,
		TransactionDate: at,
		Actor:           actor,
	})
	require.NoError(t, err)
	return entry
}

func (s *stack) balance(t *testing.T, scope domain.ScopeKey) string {
	t.Helper()
	got, err := s.projector.GetCurrentBalance(context.Background(), scope)
	require.NoError(t, err)
	return got.String()
}

func (s *stack) assertConsistent(t *testing.T) {
	t.Helper()
	report, err := s.ledger.VerifyAll(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "inconsistent scopes: %d", len(report.Inconsistent))
}

func TestBackdatedInsertCascades(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	customer := s.db.CreateTestCustomer(ctx, "Sara")
	scope := domain.CustomerScope(customer.ID, "USD")

	s.append(t, scope, "100", day)
	later := s.append(t, scope, "-30", day.Add(48*time.Hour))
	backdated := s.append(t, scope, "50", day.Add(24*time.Hour))

	assert.Equal(t, "100", backdated.BalanceBefore.String())
	assert.Equal(t, "120", s.balance(t, scope))

	list, err := s.ledger.ListForScope(ctx, usecase.ListEntriesInput{Scope: scope})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, later.ID, list[2].ID)
	assert.Equal(t, "150", list[2].BalanceBefore.String())

	asOf, err := s.projector.GetBalanceAsOf(ctx, scope, day.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "150", asOf.String())

	s.assertConsistent(t)
}

func TestSoftDeleteRestoreAndEdit(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	account := s.db.CreateTestBankAccount(ctx, "Float", "AED")
	scope := domain.BankAccountScope(account.ID)

	s.append(t, scope, "1000", day)
	middle := s.append(t, scope, "-200", day.Add(time.Hour))
	s.append(t, scope, "50", day.Add(2*time.Hour))

	_, err := s.ledger.SoftDelete(ctx, domain.ScopeBankAccount, middle.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, "1050", s.balance(t, scope))

	_, err = s.ledger.SoftDelete(ctx, domain.ScopeBankAccount, middle.ID, actor)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = s.ledger.Restore(ctx, domain.ScopeBankAccount, middle.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, "850", s.balance(t, scope))

	edited, err := s.ledger.EditAmount(ctx, domain.ScopeBankAccount, middle.ID, decimal.NewFromInt(-300), actor)
	require.NoError(t, err)
	assert.Equal(t, "700", edited.BalanceAfter.String())
	assert.Equal(t, "750", s.balance(t, scope))

	audit, err := postgres.NewAuditRepository(s.db.Pool).List(ctx, domain.AuditFilter{ScopeKind: domain.ScopeBankAccount})
	require.NoError(t, err)
	assert.Len(t, audit, 6)

	s.assertConsistent(t)
}

func TestFrozenEntryOnlyAffectsEffectiveBalance(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	customer := s.db.CreateTestCustomer(ctx, "Reza")
	scope := domain.CustomerScope(customer.ID, "EUR")

	s.append(t, scope, "100", day)
	disputed := s.append(t, scope, "40", day.Add(time.Hour))

	_, err := s.ledger.SetFrozen(ctx, domain.ScopeCustomer, disputed.ID, true, actor)
	require.NoError(t, err)

	assert.Equal(t, "140", s.balance(t, scope))
	effective, err := s.projector.GetEffectiveBalance(ctx, scope, nil)
	require.NoError(t, err)
	assert.Equal(t, "100", effective.String())
}

func TestPoolTotalsAndRisk(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	scope := domain.PoolScope("TRY")

	s.append(t, scope, "500", day)
	s.append(t, scope, "-800", day.Add(time.Hour))

	pool, err := s.projector.GetPool(ctx, "TRY")
	require.NoError(t, err)
	assert.Equal(t, "-300", pool.Balance.String())
	assert.Equal(t, "500", pool.TotalBought.String())
	assert.Equal(t, "800", pool.TotalSold.String())
	assert.Equal(t, domain.RiskShort, pool.RiskLevel())

	_, err = s.ledger.SetFrozen(ctx, domain.ScopeCurrencyPool, 1, true, actor)
	assert.ErrorIs(t, err, domain.ErrFreezeNotSupported)
}

func TestConcurrentAppendsToOneScope(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	customer := s.db.CreateTestCustomer(ctx, "Busy")
	scope := domain.CustomerScope(customer.ID, "IRR")

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Alternate between tail appends and backdated inserts.
			at := day.Add(time.Duration(writers-i) * time.Minute)
			_, err := s.ledger.Append(ctx, usecase.AppendInput{
				Scope:           scope,
				Amount:          decimal.NewFromInt(10),
				Type:            domain.TransactionOrder,
				TransactionDate: at,
				Actor:           actor,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, "400", s.balance(t, scope))
	s.assertConsistent(t)
}

func TestRecomputeRepairsTamperedChain(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	customer := s.db.CreateTestCustomer(ctx, "Tampered")
	scope := domain.CustomerScope(customer.ID, "USD")

	s.append(t, scope, "10", day)
	second := s.append(t, scope, "20", day.Add(time.Hour))

	_, err := s.db.Pool.Exec(ctx,
		`UPDATE customer_balance_history SET balance_before = 99, balance_after = 119 WHERE id = $1`, second.ID)
	require.NoError(t, err)

	report, err := s.ledger.Verify(ctx, scope)
	require.NoError(t, err)
	assert.False(t, report.Consistent())

	_, err = s.ledger.Append(ctx, usecase.AppendInput{
		Scope: scope, Amount: decimal.NewFromInt(1), Type: domain.TransactionManual, Actor: actor,
	})
	assert.ErrorIs(t, err, domain.ErrLedgerCorruption)

	result, err := s.ledger.Recompute(ctx, scope, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, "30", result.Balance.String())

	s.assertConsistent(t)
}
