package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
	"github.com/iho/fxledger/internal/usecase/mocks"
)

func TestProjectorUseCase_CurrentBalanceOfKnownOwnerWithoutHistory(t *testing.T) {
	env := newLedgerEnv(t)

	assert.Equal(t, "0", env.current(t, customerUSD))
	assert.Equal(t, "0", env.current(t, bankEUR))
}

func TestProjectorUseCase_CurrentBalanceRejectsUnknownOwner(t *testing.T) {
	env := newLedgerEnv(t)

	_, err := env.projector.GetCurrentBalance(context.Background(), domain.CustomerScope("ghost", "USD"))
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
}

func TestProjectorUseCase_CurrentBalanceServedFromCache(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "10", day)
	assert.Equal(t, "10", env.current(t, customerUSD))

	// A value only the cache knows proves the mirror was not consulted.
	require.NoError(t, env.cache.SetBalance(ctx, customerUSD, d("11"), time.Now().Add(time.Hour), time.Minute))
	assert.Equal(t, "11", env.current(t, customerUSD))
}

// interleavedMirrorRepo runs afterRead once, between reading a mirror row
// and handing it back.
type interleavedMirrorRepo struct {
	*mocks.FakeMirrorRepository
	once      sync.Once
	afterRead func()
}

func (r *interleavedMirrorRepo) Get(ctx context.Context, scope domain.ScopeKey) (*domain.Mirror, error) {
	m, err := r.FakeMirrorRepository.Get(ctx, scope)
	if r.afterRead != nil {
		r.once.Do(r.afterRead)
	}
	return m, err
}

func TestProjectorUseCase_StaleMirrorReadDoesNotOverwriteNewerCommit(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	tick := day
	env.ledger.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	mirrors := &interleavedMirrorRepo{FakeMirrorRepository: env.store.Mirrors()}
	projector := usecase.NewProjectorUseCase(
		env.store.Entries(),
		mirrors,
		env.store.Pools(),
		env.store.Customers(),
		env.store.BankAccounts(),
	).WithCache(env.cache, time.Minute)

	env.append(t, customerUSD, "100", day)
	// Expired entry: the next read goes to the mirror.
	require.NoError(t, env.cache.Invalidate(ctx, customerUSD))

	// A write commits after the reader loaded the mirror but before it
	// fills the cache.
	mirrors.afterRead = func() {
		env.append(t, customerUSD, "50", day.Add(time.Hour))
	}

	got, err := projector.GetCurrentBalance(ctx, customerUSD)
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())

	mirror, err := env.store.Mirrors().Get(ctx, customerUSD)
	require.NoError(t, err)
	require.NotNil(t, mirror)
	assert.Equal(t, "150", mirror.Balance.String())

	got, err = projector.GetCurrentBalance(ctx, customerUSD)
	require.NoError(t, err)
	assert.Equal(t, mirror.Balance.String(), got.String())
}

func TestProjectorUseCase_CacheErrorFallsBackToMirror(t *testing.T) {
	env := newLedgerEnv(t)

	env.append(t, customerUSD, "10", day)
	env.cache.GetErr = errors.New("redis down")

	assert.Equal(t, "10", env.current(t, customerUSD))
}

func TestProjectorUseCase_GetBalanceAsOf(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "100", day)
	env.append(t, customerUSD, "-40", day.Add(48*time.Hour))

	tests := []struct {
		name string
		asOf time.Time
		want string
	}{
		{name: "before any entry", asOf: day.Add(-time.Second), want: "0"},
		{name: "exactly at first entry", asOf: day, want: "100"},
		{name: "between entries", asOf: day.Add(24 * time.Hour), want: "100"},
		{name: "after all entries", asOf: day.Add(72 * time.Hour), want: "60"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.projector.GetBalanceAsOf(ctx, customerUSD, tt.asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := env.projector.GetBalanceAsOf(ctx, customerUSD, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestProjectorUseCase_GetStatement(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, bankEUR, "1000", day)
	inside1 := env.append(t, bankEUR, "-200", day.Add(24*time.Hour))
	inside2 := env.append(t, bankEUR, "50", day.Add(36*time.Hour))
	env.append(t, bankEUR, "5", day.Add(96*time.Hour))

	stmt, err := env.projector.GetStatement(ctx, bankEUR, day.Add(12*time.Hour), day.Add(48*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "EUR", stmt.Scope.Currency)
	assert.Equal(t, "1000", stmt.OpeningBalance.String())
	assert.Equal(t, "850", stmt.ClosingBalance.String())
	require.Len(t, stmt.Entries, 2)
	assert.Equal(t, inside1.ID, stmt.Entries[0].ID)
	assert.Equal(t, inside2.ID, stmt.Entries[1].ID)

	empty, err := env.projector.GetStatement(ctx, bankEUR, day.Add(200*time.Hour), day.Add(300*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.Equal(t, "855", empty.OpeningBalance.String())
	assert.Equal(t, "855", empty.ClosingBalance.String())

	_, err = env.projector.GetStatement(ctx, bankEUR, day.Add(time.Hour), day)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestProjectorUseCase_EffectiveBalanceAsOf(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	env.append(t, customerUSD, "100", day)
	disputed := env.append(t, customerUSD, "40", day.Add(time.Hour))
	env.append(t, customerUSD, "10", day.Add(2*time.Hour))
	_, err := env.ledger.SetFrozen(ctx, domain.ScopeCustomer, disputed.ID, true, actor)
	require.NoError(t, err)

	asOf := day.Add(90 * time.Minute)
	got, err := env.projector.GetEffectiveBalance(ctx, customerUSD, &asOf)
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())
}

func TestProjectorUseCase_GetPool(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	_, err := env.projector.GetPool(ctx, "GBP")
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)

	_, err = env.projector.GetPool(ctx, "XX")
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	env.append(t, domain.PoolScope("GBP"), "-25", day)

	pool, err := env.projector.GetPool(ctx, "gbp")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskShort, pool.RiskLevel())
	assert.Equal(t, "25", pool.TotalSold.String())

	pools, err := env.projector.ListPools(ctx)
	require.NoError(t, err)
	assert.Len(t, pools, 1)
}

func TestOwnerUseCase(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	store := env.store
	owners := usecase.NewOwnerUseCase(store.Customers(), store.BankAccounts(), store.Mirrors(), mocks.NewFakeIDGenerator())

	customer, err := owners.CreateCustomer(ctx, usecase.CreateCustomerInput{Name: "  Sara  ", Phone: "+98 912"})
	require.NoError(t, err)
	assert.Equal(t, "Sara", customer.Name)
	assert.NotEmpty(t, customer.ID)

	_, err = owners.CreateCustomer(ctx, usecase.CreateCustomerInput{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	account, err := owners.CreateBankAccount(ctx, usecase.CreateBankAccountInput{Name: "Float", BankName: "Melli", Currency: "aed"})
	require.NoError(t, err)
	assert.Equal(t, "AED", account.Currency)

	_, err = owners.CreateBankAccount(ctx, usecase.CreateBankAccountInput{Name: "Float", Currency: "XYZ"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	got, err := owners.GetBankAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	customers, err := owners.ListCustomers(ctx, usecase.ListInput{})
	require.NoError(t, err)
	assert.Len(t, customers, 2)

	accounts, err := owners.ListBankAccounts(ctx, usecase.ListInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	env.append(t, domain.CustomerScope(customer.ID, "USD"), "5", day)
	env.append(t, domain.CustomerScope(customer.ID, "EUR"), "-7", day)

	balances, err := owners.ListCustomerBalances(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "EUR", balances[0].Scope.Currency)
	assert.Equal(t, "-7", balances[0].Balance.String())

	_, err = owners.ListCustomerBalances(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}
