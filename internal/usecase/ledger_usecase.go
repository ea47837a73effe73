package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
)

// LedgerUseCase owns every write to a scope's history and keeps the running
// balance chain and the current-balance mirror consistent with it.
type LedgerUseCase struct {
	txManager  TransactionManager
	entryRepo  EntryRepository
	mirrorRepo MirrorRepository
	poolRepo   PoolRepository
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	resolver   scopeResolver

	retrier   Retrier
	cache     BalanceCache
	cacheTTL  time.Duration
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
	txTimeout time.Duration
}

// NewLedgerUseCase creates a new LedgerUseCase. outboxRepo and auditRepo may be nil.
func NewLedgerUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	mirrorRepo MirrorRepository,
	poolRepo PoolRepository,
	customerRepo CustomerRepository,
	bankAccountRepo BankAccountRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:  txManager,
		entryRepo:  entryRepo,
		mirrorRepo: mirrorRepo,
		poolRepo:   poolRepo,
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		idGen:      idGen,
		resolver:   scopeResolver{customerRepo: customerRepo, bankAccountRepo: bankAccountRepo},
		metrics:    noopMetrics{},
		logger:     zerolog.Nop(),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		cacheTTL:   DefaultBalanceCacheTTL,
		txTimeout:  DefaultTransactionTimeout,
	}
}

// WithRetrier sets the retrier used around every mutation transaction.
func (uc *LedgerUseCase) WithRetrier(retrier Retrier) *LedgerUseCase {
	uc.retrier = retrier
	return uc
}

// WithCache sets the balance cache refreshed after every commit.
func (uc *LedgerUseCase) WithCache(cache BalanceCache, ttl time.Duration) *LedgerUseCase {
	uc.cache = cache
	if ttl > 0 {
		uc.cacheTTL = ttl
	}
	return uc
}

// WithMetrics sets the metrics recorder.
func (uc *LedgerUseCase) WithMetrics(m MetricsRecorder) *LedgerUseCase {
	if m != nil {
		uc.metrics = m
	}
	return uc
}

// WithLogger sets the logger.
func (uc *LedgerUseCase) WithLogger(logger zerolog.Logger) *LedgerUseCase {
	uc.logger = logger
	return uc
}

// WithClock overrides the time source.
func (uc *LedgerUseCase) WithClock(now func() time.Time) *LedgerUseCase {
	uc.now = now
	return uc
}

// AppendInput represents input for appending an entry to a scope.
type AppendInput struct {
	// TransactionDate defaults to now when zero. Any past date is allowed.
	TransactionDate   time.Time
	ReferenceID       *string
	TransactionNumber *string
	Scope             domain.ScopeKey
	Type              domain.TransactionType
	Actor             string
	Description       string
	Amount            decimal.Decimal
}

func (in AppendInput) validate() error {
	if err := domain.ValidateEntryAmount(in.Amount); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTransactionType, in.Type)
	}
	if err := domain.ValidateActor(in.Actor); err != nil {
		return err
	}
	return domain.ValidateDescription(in.Description)
}

// Append records a new entry. Backdated entries are inserted at their ledger
// position and every later entry of the scope is re-linked.
func (uc *LedgerUseCase) Append(ctx context.Context, input AppendInput) (*domain.Entry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	scope, err := uc.resolver.resolve(ctx, input.Scope)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	var (
		entry  *domain.Entry
		result domain.CascadeResult
	)
	err = uc.retry(ctx, func() error {
		var err error
		entry, result, err = uc.appendOnce(ctx, scope, input)
		return err
	})
	uc.finish(ctx, "append", scope, result, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	uc.metrics.ObserveAppend(string(scope.Kind), string(input.Type))
	uc.logger.Info().
		Str("scope", scope.String()).
		Int64("entry_id", entry.ID).
		Str("amount", entry.Amount.String()).
		Int("cascade_len", result.Walked).
		Msg("entry appended")

	return entry, nil
}

func (uc *LedgerUseCase) appendOnce(ctx context.Context, scope domain.ScopeKey, input AppendInput) (*domain.Entry, domain.CascadeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}
	defer tx.Rollback(ctx)

	// 1. Serialize on the scope
	mirror, err := uc.mirrorRepo.Lock(ctx, tx, scope)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}

	now := uc.now()
	date := input.TransactionDate
	if date.IsZero() {
		date = now
	}

	entry := &domain.Entry{
		Scope:             scope,
		Type:              input.Type,
		ReferenceID:       input.ReferenceID,
		TransactionNumber: input.TransactionNumber,
		TransactionDate:   date.UTC(),
		Amount:            input.Amount,
		Description:       input.Description,
		CreatedBy:         input.Actor,
		CreatedAt:         now,
	}

	// 2. Check the mirror against the tail
	tail, err := uc.entryRepo.GetTail(ctx, tx, scope)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}

	tailBalance := decimal.Zero
	if tail != nil {
		tailBalance = tail.BalanceAfter
		if err := tail.CheckArithmetic(); err != nil {
			return nil, domain.CascadeResult{}, err
		}
	}
	if err := domain.CheckMirror(scope, mirror, tailBalance); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	// 3. Insert and cascade. Entries dated at or after the tail land at the end
	// because the new id is larger than every existing one.
	var result domain.CascadeResult
	if tail == nil || !entry.TransactionDate.Before(tail.TransactionDate) {
		entry.Apply(tailBalance)
		if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
			return nil, domain.CascadeResult{}, err
		}
		result = domain.CascadeResult{Walked: 1, Balance: entry.BalanceAfter}
	} else {
		entries, err := uc.entryRepo.ListCanonical(ctx, tx, scope)
		if err != nil {
			return nil, domain.CascadeResult{}, err
		}

		idx := domain.MutationPoint(entries, entry.TransactionDate, math.MaxInt64)
		before := decimal.Zero
		if idx > 0 {
			before = entries[idx-1].BalanceAfter
		}
		entry.Apply(before)

		if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
			return nil, domain.CascadeResult{}, err
		}

		entries = append(entries, nil)
		copy(entries[idx+1:], entries[idx:])
		entries[idx] = entry

		result, err = domain.Cascade(scope, entries, idx, 0)
		if err != nil {
			return nil, domain.CascadeResult{}, err
		}
		if err := uc.persistBalances(ctx, tx, scope.Kind, result.Changed); err != nil {
			return nil, domain.CascadeResult{}, err
		}
	}

	// 4. Mirror and pool accumulators
	if err := uc.mirrorRepo.Set(ctx, tx, scope, result.Balance, now); err != nil {
		return nil, domain.CascadeResult{}, err
	}
	result.StoredAt = now
	if scope.Policy().TracksTotals {
		bought, sold := domain.PoolTotals(entry.Amount)
		if err := uc.poolRepo.AddTotals(ctx, tx, scope.Currency, bought, sold, now); err != nil {
			return nil, domain.CascadeResult{}, err
		}
	}

	// 5. Outbox and audit
	event := domain.LedgerChangedEvent{
		EntryID: entry.ID,
		Amount:  entry.Amount.String(),
		Actor:   input.Actor,
	}
	if err := uc.recordEvent(ctx, tx, scope, domain.EventTypeEntryAppended, event, result, now); err != nil {
		return nil, domain.CascadeResult{}, err
	}
	if err := uc.recordAudit(ctx, tx, input.Actor, domain.AuditActionEntryAppend, scope,
		fmt.Sprint(entry.ID), nil, domain.EntryState(entry), now); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	return entry, result, nil
}

// SoftDelete hides an entry from the canonical chain and re-links the entries after it.
func (uc *LedgerUseCase) SoftDelete(ctx context.Context, kind domain.ScopeKind, entryID int64, actor string) (*domain.Entry, error) {
	return uc.mutateEntry(ctx, kind, entryID, actor, entryMutation{
		operation: "delete",
		eventType: domain.EventTypeEntryDeleted,
		action:    domain.AuditActionEntryDelete,
		check: func(e *domain.Entry, _ domain.ScopePolicy) error {
			if e.IsDeleted {
				return domain.ErrEntryAlreadyDeleted
			}
			return nil
		},
		apply: func(ctx context.Context, tx Transaction, e *domain.Entry, now time.Time) error {
			by := actor
			if err := uc.entryRepo.SetDeleted(ctx, tx, kind, e.ID, true, &by, &now); err != nil {
				return err
			}
			e.IsDeleted = true
			e.DeletedBy = &by
			e.DeletedAt = &now
			return nil
		},
	})
}

// Restore returns a soft-deleted entry to the canonical chain.
func (uc *LedgerUseCase) Restore(ctx context.Context, kind domain.ScopeKind, entryID int64, actor string) (*domain.Entry, error) {
	return uc.mutateEntry(ctx, kind, entryID, actor, entryMutation{
		operation: "restore",
		eventType: domain.EventTypeEntryRestored,
		action:    domain.AuditActionEntryRestore,
		check: func(e *domain.Entry, _ domain.ScopePolicy) error {
			if !e.IsDeleted {
				return domain.ErrEntryNotDeleted
			}
			return nil
		},
		apply: func(ctx context.Context, tx Transaction, e *domain.Entry, _ time.Time) error {
			if err := uc.entryRepo.SetDeleted(ctx, tx, kind, e.ID, false, nil, nil); err != nil {
				return err
			}
			e.IsDeleted = false
			e.DeletedBy = nil
			e.DeletedAt = nil
			return nil
		},
	})
}

// SetFrozen toggles the frozen flag. Frozen entries keep their place in the
// canonical chain and only drop out of effective balances.
func (uc *LedgerUseCase) SetFrozen(ctx context.Context, kind domain.ScopeKind, entryID int64, frozen bool, actor string) (*domain.Entry, error) {
	policy, err := domain.PolicyFor(kind)
	if err != nil {
		return nil, err
	}
	if !policy.HonorsFreeze {
		return nil, fmt.Errorf("%w: %s", domain.ErrFreezeNotSupported, kind)
	}

	eventType, action := domain.EventTypeEntryFrozen, domain.AuditActionEntryFreeze
	if !frozen {
		eventType, action = domain.EventTypeEntryUnfrozen, domain.AuditActionEntryUnfreeze
	}

	return uc.mutateEntry(ctx, kind, entryID, actor, entryMutation{
		operation: "freeze",
		eventType: eventType,
		action:    action,
		check: func(e *domain.Entry, _ domain.ScopePolicy) error {
			if e.IsDeleted {
				return domain.ErrEntryAlreadyDeleted
			}
			return nil
		},
		apply: func(ctx context.Context, tx Transaction, e *domain.Entry, _ time.Time) error {
			if err := uc.entryRepo.SetFrozen(ctx, tx, kind, e.ID, frozen); err != nil {
				return err
			}
			e.IsFrozen = frozen
			return nil
		},
	})
}

// EditAmount changes an entry's amount and re-links it and every later entry.
func (uc *LedgerUseCase) EditAmount(ctx context.Context, kind domain.ScopeKind, entryID int64, amount decimal.Decimal, actor string) (*domain.Entry, error) {
	if err := domain.ValidateEntryAmount(amount); err != nil {
		return nil, err
	}

	return uc.mutateEntry(ctx, kind, entryID, actor, entryMutation{
		operation: "edit_amount",
		eventType: domain.EventTypeEntryAmountEdited,
		action:    domain.AuditActionEntryEditAmount,
		dirty:     true,
		check: func(e *domain.Entry, _ domain.ScopePolicy) error {
			if e.IsDeleted {
				return domain.ErrEntryAlreadyDeleted
			}
			return nil
		},
		apply: func(ctx context.Context, tx Transaction, e *domain.Entry, _ time.Time) error {
			if err := uc.entryRepo.UpdateAmount(ctx, tx, kind, e.ID, amount); err != nil {
				return err
			}
			e.Amount = amount
			return nil
		},
	})
}

// entryMutation describes one change to an existing entry.
type entryMutation struct {
	check     func(e *domain.Entry, policy domain.ScopePolicy) error
	apply     func(ctx context.Context, tx Transaction, e *domain.Entry, now time.Time) error
	operation string
	eventType string
	action    domain.AuditAction
	// dirty exempts the mutated entry from the arithmetic check during the cascade.
	dirty bool
}

func (uc *LedgerUseCase) mutateEntry(ctx context.Context, kind domain.ScopeKind, entryID int64, actor string, m entryMutation) (*domain.Entry, error) {
	if _, err := domain.PolicyFor(kind); err != nil {
		return nil, err
	}
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	// The entry's scope decides which mirror row to lock.
	probe, err := uc.entryRepo.GetByID(ctx, kind, entryID)
	if err != nil {
		return nil, err
	}
	scope := probe.Scope

	start := time.Now()

	var (
		entry  *domain.Entry
		result domain.CascadeResult
	)
	err = uc.retry(ctx, func() error {
		var err error
		entry, result, err = uc.mutateOnce(ctx, scope, entryID, actor, m)
		return err
	})
	uc.finish(ctx, m.operation, scope, result, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("scope", scope.String()).
		Int64("entry_id", entry.ID).
		Str("operation", m.operation).
		Int("cascade_len", result.Walked).
		Msg("entry mutated")

	return entry, nil
}

func (uc *LedgerUseCase) mutateOnce(ctx context.Context, scope domain.ScopeKey, entryID int64, actor string, m entryMutation) (*domain.Entry, domain.CascadeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}
	defer tx.Rollback(ctx)

	mirror, err := uc.mirrorRepo.Lock(ctx, tx, scope)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}

	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, scope.Kind, entryID)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}
	if err := m.check(entry, scope.Policy()); err != nil {
		return nil, domain.CascadeResult{}, err
	}
	beforeState := domain.EntryState(entry)

	entries, err := uc.entryRepo.ListCanonical(ctx, tx, scope)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}
	if err := domain.CheckMirror(scope, mirror, domain.Tail(entries)); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	now := uc.now()
	if err := m.apply(ctx, tx, entry, now); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	entries = replaceEntry(entries, entry)

	var dirty int64
	if m.dirty {
		dirty = entry.ID
	}

	result, err := domain.Cascade(scope, entries, domain.MutationPoint(entries, entry.TransactionDate, entry.ID), dirty)
	if err != nil {
		return nil, domain.CascadeResult{}, err
	}
	if err := uc.persistBalances(ctx, tx, scope.Kind, result.Changed); err != nil {
		return nil, domain.CascadeResult{}, err
	}
	if err := uc.mirrorRepo.Set(ctx, tx, scope, result.Balance, now); err != nil {
		return nil, domain.CascadeResult{}, err
	}
	result.StoredAt = now

	event := domain.LedgerChangedEvent{
		EntryID: entry.ID,
		Amount:  entry.Amount.String(),
		Actor:   actor,
	}
	if err := uc.recordEvent(ctx, tx, scope, m.eventType, event, result, now); err != nil {
		return nil, domain.CascadeResult{}, err
	}
	if err := uc.recordAudit(ctx, tx, actor, m.action, scope,
		fmt.Sprint(entry.ID), beforeState, domain.EntryState(entry), now); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.CascadeResult{}, err
	}

	return entry, result, nil
}

// replaceEntry swaps entry into a canonical list by id, dropping it when it is
// no longer canonical, and keeps the list sorted.
func replaceEntry(entries []*domain.Entry, entry *domain.Entry) []*domain.Entry {
	out := make([]*domain.Entry, 0, len(entries)+1)
	for _, e := range entries {
		if e.ID != entry.ID {
			out = append(out, e)
		}
	}
	if domain.ViewCanonical.Includes(entry) {
		out = append(out, entry)
	}
	domain.SortEntries(out)
	return out
}

func (uc *LedgerUseCase) persistBalances(ctx context.Context, tx Transaction, kind domain.ScopeKind, changed []*domain.Entry) error {
	for _, e := range changed {
		if err := uc.entryRepo.UpdateBalances(ctx, tx, kind, e.ID, e.BalanceBefore, e.BalanceAfter); err != nil {
			return err
		}
	}
	return nil
}

// ListEntriesInput represents input for listing a scope's entries.
type ListEntriesInput struct {
	From           *time.Time
	To             *time.Time
	Scope          domain.ScopeKey
	IncludeDeleted bool
	ExcludeFrozen  bool
	Limit          int
	Offset         int
}

// ListForScope lists a scope's entries in ledger order.
func (uc *LedgerUseCase) ListForScope(ctx context.Context, input ListEntriesInput) ([]*domain.Entry, error) {
	scope, err := uc.resolver.resolve(ctx, input.Scope)
	if err != nil {
		return nil, err
	}
	if input.From != nil && input.To != nil && input.From.After(*input.To) {
		return nil, domain.ErrInvalidDateRange
	}

	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	if input.Limit > maxListLimit {
		input.Limit = maxListLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	view := domain.ViewCanonical
	if input.IncludeDeleted {
		view |= domain.IncludeDeleted
	}
	if input.ExcludeFrozen {
		view |= domain.ExcludeFrozen
	}

	return uc.entryRepo.List(ctx, EntryQuery{
		Scope:  scope,
		View:   view,
		From:   input.From,
		To:     input.To,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
}

// ListAuditLogs returns audit rows, newest first.
func (uc *LedgerUseCase) ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	if uc.auditRepo == nil {
		return []*domain.AuditLog{}, nil
	}
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.auditRepo.List(ctx, filter)
}

// RecomputeResult reports what a full rebuild of one scope changed.
type RecomputeResult struct {
	Scope        domain.ScopeKey
	MirrorBefore decimal.Decimal
	Balance      decimal.Decimal
	Changed      int
	Walked       int

	storedAt time.Time
}

// MirrorDrifted reports whether the stored mirror disagreed with the rebuilt tail.
func (r *RecomputeResult) MirrorDrifted() bool {
	return !r.MirrorBefore.Equal(r.Balance)
}

// Recompute rebuilds a scope's chain from zero, rewriting stale links and the
// mirror. It is the only operation allowed to repair a corrupted scope.
func (uc *LedgerUseCase) Recompute(ctx context.Context, scope domain.ScopeKey, actor string) (*RecomputeResult, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	scope, err := uc.resolver.resolve(ctx, scope)
	if err != nil {
		return nil, err
	}

	return uc.recompute(ctx, scope, actor)
}

func (uc *LedgerUseCase) recompute(ctx context.Context, scope domain.ScopeKey, actor string) (*RecomputeResult, error) {
	start := time.Now()

	var out *RecomputeResult
	err := uc.retry(ctx, func() error {
		var err error
		out, err = uc.recomputeOnce(ctx, scope, actor)
		return err
	})

	var result domain.CascadeResult
	if out != nil {
		result.Walked = out.Walked
		result.Balance = out.Balance
		result.StoredAt = out.storedAt
	}
	uc.finish(ctx, "recompute", scope, result, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	event := uc.logger.Info()
	if out.MirrorDrifted() || out.Changed > 0 {
		event = uc.logger.Warn()
	}
	event.
		Str("scope", scope.String()).
		Int("changed", out.Changed).
		Str("mirror_before", out.MirrorBefore.String()).
		Str("balance", out.Balance.String()).
		Msg("scope recomputed")

	return out, nil
}

func (uc *LedgerUseCase) recomputeOnce(ctx context.Context, scope domain.ScopeKey, actor string) (*RecomputeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	mirror, err := uc.mirrorRepo.Lock(ctx, tx, scope)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListCanonical(ctx, tx, scope)
	if err != nil {
		return nil, err
	}

	result := domain.Rebuild(entries)
	if err := uc.persistBalances(ctx, tx, scope.Kind, result.Changed); err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.mirrorRepo.Set(ctx, tx, scope, result.Balance, now); err != nil {
		return nil, err
	}

	out := &RecomputeResult{
		Scope:        scope,
		MirrorBefore: mirror,
		Balance:      result.Balance,
		Changed:      len(result.Changed),
		Walked:       result.Walked,
		storedAt:     now,
	}

	// A clean scope is left without an event or audit row.
	if out.Changed > 0 || out.MirrorDrifted() {
		if err := uc.recordEvent(ctx, tx, scope, domain.EventTypeScopeRecomputed,
			domain.LedgerChangedEvent{Actor: actor}, result, now); err != nil {
			return nil, err
		}
		if err := uc.recordAudit(ctx, tx, actor, domain.AuditActionScopeRecompute, scope, scope.String(),
			domain.JSON{"mirror": mirror.String()},
			domain.JSON{"mirror": result.Balance.String(), "changed": out.Changed}, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return out, nil
}

// ScopeFailure is a scope a bulk operation could not process.
type ScopeFailure struct {
	Err   error
	Scope domain.ScopeKey
}

// BulkResult collects per-scope outcomes of RecomputeAll.
type BulkResult struct {
	Results  []*RecomputeResult
	Failures []ScopeFailure
}

// RecomputeAll rebuilds every scope that has entries, one transaction per
// scope. A failing scope does not stop the others.
func (uc *LedgerUseCase) RecomputeAll(ctx context.Context, actor string) (*BulkResult, error) {
	if err := domain.ValidateActor(actor); err != nil {
		return nil, err
	}

	bulk := &BulkResult{}
	for _, kind := range domain.ScopeKinds {
		scopes, err := uc.entryRepo.ListScopes(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s scopes: %w", kind, err)
		}

		for _, scope := range scopes {
			if err := ctx.Err(); err != nil {
				return bulk, err
			}

			result, err := uc.recompute(ctx, scope, actor)
			if err != nil {
				bulk.Failures = append(bulk.Failures, ScopeFailure{Scope: scope, Err: err})
				continue
			}
			bulk.Results = append(bulk.Results, result)
		}
	}

	return bulk, nil
}

// ScopeReport is the read-only consistency check of one scope.
type ScopeReport struct {
	Scope      domain.ScopeKey
	Mirror     decimal.Decimal
	Tail       decimal.Decimal
	Violations []domain.Violation
	Entries    int
	HasMirror  bool
}

// Consistent reports whether the chain is intact and the mirror matches it.
func (r *ScopeReport) Consistent() bool {
	return len(r.Violations) == 0 && domain.CheckMirror(r.Scope, r.Mirror, r.Tail) == nil
}

// Verify checks a scope's chain and mirror without modifying anything.
func (uc *LedgerUseCase) Verify(ctx context.Context, scope domain.ScopeKey) (*ScopeReport, error) {
	scope, err := uc.resolver.resolve(ctx, scope)
	if err != nil {
		return nil, err
	}
	return uc.verify(ctx, scope)
}

func (uc *LedgerUseCase) verify(ctx context.Context, scope domain.ScopeKey) (*ScopeReport, error) {
	entries, err := uc.entryRepo.ListCanonical(ctx, nil, scope)
	if err != nil {
		return nil, err
	}

	mirror, err := uc.mirrorRepo.Get(ctx, scope)
	if err != nil {
		return nil, err
	}

	report := &ScopeReport{
		Scope:      scope,
		Tail:       domain.Tail(entries),
		Violations: domain.VerifyChain(scope, entries),
		Entries:    len(entries),
	}
	if mirror != nil {
		report.Mirror = mirror.Balance
		report.HasMirror = true
	}

	if !report.Consistent() {
		uc.metrics.ObserveCorruption(string(scope.Kind))
		uc.logger.Error().
			Str("scope", scope.String()).
			Int("violations", len(report.Violations)).
			Str("mirror", report.Mirror.String()).
			Str("tail", report.Tail.String()).
			Msg("scope failed consistency check")
	}

	return report, nil
}

// ConsistencyReport summarizes VerifyAll.
type ConsistencyReport struct {
	CheckedAt    time.Time
	Inconsistent []*ScopeReport
	Scopes       int
}

// Consistent reports whether every checked scope passed.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.Inconsistent) == 0
}

// VerifyAll checks every scope that has entries.
func (uc *LedgerUseCase) VerifyAll(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{CheckedAt: uc.now()}

	for _, kind := range domain.ScopeKinds {
		scopes, err := uc.entryRepo.ListScopes(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s scopes: %w", kind, err)
		}

		for _, scope := range scopes {
			scopeReport, err := uc.verify(ctx, scope)
			if err != nil {
				return nil, fmt.Errorf("failed to verify %s: %w", scope, err)
			}
			report.Scopes++
			if !scopeReport.Consistent() {
				report.Inconsistent = append(report.Inconsistent, scopeReport)
			}
		}
	}

	return report, nil
}

func (uc *LedgerUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}
	return uc.retrier.Retry(ctx, op)
}

// finish records metrics and, after a commit, caches the committed balance.
// Readers that loaded the mirror before the commit cannot overwrite it because
// their mirror timestamp is older.
func (uc *LedgerUseCase) finish(ctx context.Context, operation string, scope domain.ScopeKey, result domain.CascadeResult, took time.Duration, err error) {
	kind := string(scope.Kind)
	uc.metrics.ObserveMutation(operation, kind, result.Walked, took, err)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLedgerCorruption):
		uc.metrics.ObserveCorruption(kind)
		uc.logger.Error().Err(err).Str("scope", scope.String()).Str("operation", operation).Msg("ledger corruption detected")
		return
	case errors.Is(err, domain.ErrConcurrencyConflict):
		uc.metrics.ObserveConflict(kind)
		uc.logger.Warn().Err(err).Str("scope", scope.String()).Str("operation", operation).Msg("mutation abandoned")
		return
	default:
		return
	}

	if scope.Kind == domain.ScopeCurrencyPool {
		uc.metrics.SetPoolBalance(scope.Currency, result.Balance.InexactFloat64())
	}

	if uc.cache == nil {
		return
	}
	if err := uc.cache.SetBalance(ctx, scope, result.Balance, result.StoredAt, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Str("scope", scope.String()).Msg("failed to refresh balance cache")
		if err := uc.cache.Invalidate(ctx, scope); err != nil {
			uc.logger.Warn().Err(err).Str("scope", scope.String()).Msg("failed to invalidate balance cache")
		}
	}
}

func (uc *LedgerUseCase) recordEvent(
	ctx context.Context,
	tx Transaction,
	scope domain.ScopeKey,
	eventType string,
	payload domain.LedgerChangedEvent,
	result domain.CascadeResult,
	now time.Time,
) error {
	if uc.outboxRepo == nil {
		return nil
	}

	payload.Scope = scope.String()
	payload.CurrentBalance = result.Balance.String()
	payload.CascadeLength = result.Walked
	payload.EventAt = now.Format(time.RFC3339Nano)

	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   scope.String(),
		AggregateType: string(scope.Kind),
		EventType:     eventType,
		Payload:       payload.Map(),
		CreatedAt:     now,
	})
}

func (uc *LedgerUseCase) recordAudit(
	ctx context.Context,
	tx Transaction,
	actor string,
	action domain.AuditAction,
	scope domain.ScopeKey,
	resourceID string,
	before, after domain.JSON,
	now time.Time,
) error {
	if uc.auditRepo == nil {
		return nil
	}

	return uc.auditRepo.CreateTx(ctx, tx, &domain.AuditLog{
		Actor:       actor,
		Action:      action,
		ScopeKind:   scope.Kind,
		ResourceID:  resourceID,
		RequestID:   RequestIDFromContext(ctx),
		BeforeState: before,
		AfterState:  after,
		Status:      domain.AuditStatusSuccess,
		CreatedAt:   now,
	})
}
