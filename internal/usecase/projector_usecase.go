package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
)

// ProjectorUseCase answers balance questions. It never writes to the ledger.
type ProjectorUseCase struct {
	entryRepo  EntryRepository
	mirrorRepo MirrorRepository
	poolRepo   PoolRepository
	resolver   scopeResolver

	cache    BalanceCache
	cacheTTL time.Duration
	metrics  MetricsRecorder
	logger   zerolog.Logger
}

// NewProjectorUseCase creates a new ProjectorUseCase.
func NewProjectorUseCase(
	entryRepo EntryRepository,
	mirrorRepo MirrorRepository,
	poolRepo PoolRepository,
	customerRepo CustomerRepository,
	bankAccountRepo BankAccountRepository,
) *ProjectorUseCase {
	return &ProjectorUseCase{
		entryRepo:  entryRepo,
		mirrorRepo: mirrorRepo,
		poolRepo:   poolRepo,
		resolver:   scopeResolver{customerRepo: customerRepo, bankAccountRepo: bankAccountRepo},
		cacheTTL:   DefaultBalanceCacheTTL,
		metrics:    noopMetrics{},
		logger:     zerolog.Nop(),
	}
}

// WithCache puts a balance cache in front of the mirror tables.
func (uc *ProjectorUseCase) WithCache(cache BalanceCache, ttl time.Duration) *ProjectorUseCase {
	uc.cache = cache
	if ttl > 0 {
		uc.cacheTTL = ttl
	}
	return uc
}

// WithMetrics sets the metrics recorder.
func (uc *ProjectorUseCase) WithMetrics(m MetricsRecorder) *ProjectorUseCase {
	if m != nil {
		uc.metrics = m
	}
	return uc
}

// WithLogger sets the logger.
func (uc *ProjectorUseCase) WithLogger(logger zerolog.Logger) *ProjectorUseCase {
	uc.logger = logger
	return uc
}

// GetCurrentBalance returns the scope's current balance: cache first, then
// the mirror. A known owner without history has a zero balance.
func (uc *ProjectorUseCase) GetCurrentBalance(ctx context.Context, scope domain.ScopeKey) (decimal.Decimal, error) {
	scope, err := uc.resolver.resolve(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}

	if uc.cache != nil {
		balance, ok, err := uc.cache.GetBalance(ctx, scope)
		if err != nil {
			uc.logger.Warn().Err(err).Str("scope", scope.String()).Msg("balance cache read failed")
		} else if ok {
			uc.metrics.ObserveBalanceRead("cache")
			return balance, nil
		}
	}

	mirror, err := uc.mirrorRepo.Get(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	var updatedAt time.Time
	if mirror != nil {
		balance = mirror.Balance
		updatedAt = mirror.UpdatedAt
	}
	uc.metrics.ObserveBalanceRead("mirror")

	// A writer may have committed since the mirror read; the cache keeps
	// whichever balance carries the later mirror timestamp.
	if uc.cache != nil {
		if err := uc.cache.SetBalance(ctx, scope, balance, updatedAt, uc.cacheTTL); err != nil {
			uc.logger.Warn().Err(err).Str("scope", scope.String()).Msg("balance cache write failed")
		}
	}

	return balance, nil
}

// GetBalanceAsOf returns the balance after the latest canonical entry dated at
// or before asOf, or zero.
func (uc *ProjectorUseCase) GetBalanceAsOf(ctx context.Context, scope domain.ScopeKey, asOf time.Time) (decimal.Decimal, error) {
	if asOf.IsZero() {
		return decimal.Zero, domain.ErrInvalidDate
	}

	scope, err := uc.resolver.resolve(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}

	return uc.entryRepo.GetBalanceAsOf(ctx, scope, asOf)
}

// GetEffectiveBalance replays the scope's non-frozen canonical entries from
// zero, up to asOf when set. Stored balances are not consulted.
func (uc *ProjectorUseCase) GetEffectiveBalance(ctx context.Context, scope domain.ScopeKey, asOf *time.Time) (decimal.Decimal, error) {
	scope, err := uc.resolver.resolve(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}

	entries, err := uc.entryRepo.ListCanonical(ctx, nil, scope)
	if err != nil {
		return decimal.Zero, err
	}

	return domain.RunningBalance(entries, domain.ViewEffective, asOf), nil
}

// Statement is a scope's history over a period.
type Statement struct {
	From           time.Time
	To             time.Time
	Scope          domain.ScopeKey
	Entries        []*domain.Entry
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
}

// GetStatement returns the canonical entries dated within [from, to] with the
// balance before the first and after the last.
func (uc *ProjectorUseCase) GetStatement(ctx context.Context, scope domain.ScopeKey, from, to time.Time) (*Statement, error) {
	if from.IsZero() || to.IsZero() {
		return nil, domain.ErrInvalidDate
	}
	if from.After(to) {
		return nil, domain.ErrInvalidDateRange
	}

	scope, err := uc.resolver.resolve(ctx, scope)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListCanonical(ctx, nil, scope)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{
		Scope:   scope,
		From:    from,
		To:      to,
		Entries: make([]*domain.Entry, 0),
	}

	for _, e := range entries {
		switch {
		case e.TransactionDate.Before(from):
			stmt.OpeningBalance = e.BalanceAfter
		case e.TransactionDate.After(to):
		default:
			stmt.Entries = append(stmt.Entries, e)
		}
	}

	stmt.ClosingBalance = stmt.OpeningBalance
	if n := len(stmt.Entries); n > 0 {
		stmt.ClosingBalance = stmt.Entries[n-1].BalanceAfter
	}

	return stmt, nil
}

// GetPool returns a currency pool with its accumulators.
func (uc *ProjectorUseCase) GetPool(ctx context.Context, currency string) (*domain.CurrencyPool, error) {
	currency = domain.NormalizeCurrency(currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	return uc.poolRepo.Get(ctx, currency)
}

// ListPools returns every pool that has been touched.
func (uc *ProjectorUseCase) ListPools(ctx context.Context) ([]*domain.CurrencyPool, error) {
	return uc.poolRepo.List(ctx)
}
