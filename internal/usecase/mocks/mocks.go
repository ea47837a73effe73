package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
)

// FakeStore is an in-memory ledger backend. Begin snapshots the state and a
// Rollback without a prior Commit restores it, so failed mutations leave
// nothing behind just like a database transaction would.
type FakeStore struct {
	mu        sync.Mutex
	entries   map[domain.ScopeKind]map[int64]domain.Entry
	nextID    map[domain.ScopeKind]int64
	mirrors   map[string]domain.Mirror
	pools     map[string]domain.CurrencyPool
	customers map[string]*domain.Customer
	banks     map[string]*domain.BankAccount
	outbox    []*domain.OutboxEvent
	audit     []*domain.AuditLog

	BeginFunc  func(ctx context.Context) error
	CommitFunc func(ctx context.Context) error
	Begins     int
}

func NewFakeStore() *FakeStore {
	s := &FakeStore{
		entries:   make(map[domain.ScopeKind]map[int64]domain.Entry),
		nextID:    make(map[domain.ScopeKind]int64),
		mirrors:   make(map[string]domain.Mirror),
		pools:     make(map[string]domain.CurrencyPool),
		customers: make(map[string]*domain.Customer),
		banks:     make(map[string]*domain.BankAccount),
	}
	for _, kind := range domain.ScopeKinds {
		s.entries[kind] = make(map[int64]domain.Entry)
	}
	return s
}

type fakeSnapshot struct {
	entries map[domain.ScopeKind]map[int64]domain.Entry
	nextID  map[domain.ScopeKind]int64
	mirrors map[string]domain.Mirror
	pools   map[string]domain.CurrencyPool
	outbox  int
	audit   int
}

func (s *FakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		entries: make(map[domain.ScopeKind]map[int64]domain.Entry),
		nextID:  make(map[domain.ScopeKind]int64),
		mirrors: make(map[string]domain.Mirror),
		pools:   make(map[string]domain.CurrencyPool),
		outbox:  len(s.outbox),
		audit:   len(s.audit),
	}
	for kind, byID := range s.entries {
		snap.entries[kind] = make(map[int64]domain.Entry, len(byID))
		for id, e := range byID {
			snap.entries[kind][id] = e
		}
	}
	for k, v := range s.nextID {
		snap.nextID[k] = v
	}
	for k, v := range s.mirrors {
		snap.mirrors[k] = v
	}
	for k, v := range s.pools {
		snap.pools[k] = v
	}
	return snap
}

func (s *FakeStore) restore(snap fakeSnapshot) {
	s.entries = snap.entries
	s.nextID = snap.nextID
	s.mirrors = snap.mirrors
	s.pools = snap.pools
	s.outbox = s.outbox[:snap.outbox]
	s.audit = s.audit[:snap.audit]
}

// Begin implements usecase.TransactionManager.
func (s *FakeStore) Begin(ctx context.Context) (usecase.Transaction, error) {
	if s.BeginFunc != nil {
		if err := s.BeginFunc(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Begins++
	return &FakeTx{store: s, snap: s.snapshot()}, nil
}

// FakeTx is a transaction on a FakeStore.
type FakeTx struct {
	store     *FakeStore
	snap      fakeSnapshot
	committed bool
	done      bool
}

func (t *FakeTx) Commit(ctx context.Context) error {
	if t.store.CommitFunc != nil {
		if err := t.store.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.committed = true
	t.done = true
	return nil
}

func (t *FakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.restore(t.snap)
	return nil
}

// Test helpers

// AddCustomer registers a customer directly.
func (s *FakeStore) AddCustomer(c *domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// AddBankAccount registers a bank account directly.
func (s *FakeStore) AddBankAccount(b *domain.BankAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[b.ID] = b
}

// Entry returns a copy of a stored entry.
func (s *FakeStore) Entry(kind domain.ScopeKind, id int64) (domain.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[kind][id]
	return e, ok
}

// Tamper edits a stored entry in place, bypassing every check.
func (s *FakeStore) Tamper(kind domain.ScopeKind, id int64, fn func(e *domain.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[kind][id]
	fn(&e)
	s.entries[kind][id] = e
}

// MirrorBalance returns the stored mirror of scope, or zero.
func (s *FakeStore) MirrorBalance(scope domain.ScopeKey) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirrors[scope.String()].Balance
}

// TamperMirror overwrites the stored mirror of scope.
func (s *FakeStore) TamperMirror(scope domain.ScopeKey, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mirrors[scope.String()]
	m.Scope = scope
	m.Balance = balance
	s.mirrors[scope.String()] = m
}

// OutboxEvents returns every event written so far.
func (s *FakeStore) OutboxEvents() []*domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), s.outbox...)
}

// AuditLogs returns every audit row written so far.
func (s *FakeStore) AuditLogs() []*domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.AuditLog(nil), s.audit...)
}

func (s *FakeStore) scopeEntries(scope domain.ScopeKey, view domain.View) []*domain.Entry {
	var out []*domain.Entry
	for _, e := range s.entries[scope.Kind] {
		if !e.Scope.Same(scope) || !view.Includes(&e) {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	domain.SortEntries(out)
	return out
}

// Repositories

// Entries returns the store as a usecase.EntryRepository.
func (s *FakeStore) Entries() *FakeEntryRepository { return &FakeEntryRepository{s: s} }

// Mirrors returns the store as a usecase.MirrorRepository.
func (s *FakeStore) Mirrors() *FakeMirrorRepository { return &FakeMirrorRepository{s: s} }

// Pools returns the store as a usecase.PoolRepository.
func (s *FakeStore) Pools() *FakePoolRepository { return &FakePoolRepository{s: s} }

// Customers returns the store as a usecase.CustomerRepository.
func (s *FakeStore) Customers() *FakeCustomerRepository { return &FakeCustomerRepository{s: s} }

// BankAccounts returns the store as a usecase.BankAccountRepository.
func (s *FakeStore) BankAccounts() *FakeBankAccountRepository {
	return &FakeBankAccountRepository{s: s}
}

// Outbox returns the store as a usecase.OutboxRepository.
func (s *FakeStore) Outbox() *FakeOutboxRepository { return &FakeOutboxRepository{s: s} }

// Audit returns the store as a usecase.AuditRepository.
func (s *FakeStore) Audit() *FakeAuditRepository { return &FakeAuditRepository{s: s} }

// FakeEntryRepository is an in-memory usecase.EntryRepository.
type FakeEntryRepository struct {
	s *FakeStore

	CreateFunc func(ctx context.Context, entry *domain.Entry) error
}

func (r *FakeEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if r.CreateFunc != nil {
		if err := r.CreateFunc(ctx, entry); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID[entry.Scope.Kind]++
	entry.ID = r.s.nextID[entry.Scope.Kind]
	r.s.entries[entry.Scope.Kind][entry.ID] = *entry
	return nil
}

func (r *FakeEntryRepository) GetByID(ctx context.Context, kind domain.ScopeKind, id int64) (*domain.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[kind][id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return &e, nil
}

func (r *FakeEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64) (*domain.Entry, error) {
	return r.GetByID(ctx, kind, id)
}

func (r *FakeEntryRepository) GetTail(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey) (*domain.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := r.s.scopeEntries(scope, domain.ViewCanonical)
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[len(entries)-1], nil
}

func (r *FakeEntryRepository) ListCanonical(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey) ([]*domain.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.scopeEntries(scope, domain.ViewCanonical), nil
}

func (r *FakeEntryRepository) List(ctx context.Context, query usecase.EntryQuery) ([]*domain.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.Entry
	for _, e := range r.s.scopeEntries(query.Scope, query.View) {
		if query.From != nil && e.TransactionDate.Before(*query.From) {
			continue
		}
		if query.To != nil && e.TransactionDate.After(*query.To) {
			continue
		}
		out = append(out, e)
	}

	if query.Offset >= len(out) {
		return []*domain.Entry{}, nil
	}
	out = out[query.Offset:]
	if query.Limit > 0 && query.Limit < len(out) {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *FakeEntryRepository) update(kind domain.ScopeKind, id int64, fn func(e *domain.Entry)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[kind][id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	fn(&e)
	r.s.entries[kind][id] = e
	return nil
}

func (r *FakeEntryRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, before, after decimal.Decimal) error {
	return r.update(kind, id, func(e *domain.Entry) {
		e.BalanceBefore = before
		e.BalanceAfter = after
	})
}

func (r *FakeEntryRepository) UpdateAmount(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, amount decimal.Decimal) error {
	return r.update(kind, id, func(e *domain.Entry) {
		e.Amount = amount
	})
}

func (r *FakeEntryRepository) SetDeleted(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, deleted bool, by *string, at *time.Time) error {
	return r.update(kind, id, func(e *domain.Entry) {
		e.IsDeleted = deleted
		e.DeletedBy = by
		e.DeletedAt = at
	})
}

func (r *FakeEntryRepository) SetFrozen(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, frozen bool) error {
	return r.update(kind, id, func(e *domain.Entry) {
		e.IsFrozen = frozen
	})
}

func (r *FakeEntryRepository) GetBalanceAsOf(ctx context.Context, scope domain.ScopeKey, asOf time.Time) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return domain.BalanceAsOf(r.s.scopeEntries(scope, domain.ViewCanonical), asOf), nil
}

func (r *FakeEntryRepository) ListScopes(ctx context.Context, kind domain.ScopeKind) ([]domain.ScopeKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[string]domain.ScopeKey)
	for _, e := range r.s.entries[kind] {
		seen[e.Scope.String()] = e.Scope
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scopes := make([]domain.ScopeKey, 0, len(keys))
	for _, k := range keys {
		scopes = append(scopes, seen[k])
	}
	return scopes, nil
}

// FakeMirrorRepository is an in-memory usecase.MirrorRepository.
type FakeMirrorRepository struct {
	s *FakeStore

	LockFunc func(ctx context.Context, scope domain.ScopeKey) error
}

func (r *FakeMirrorRepository) Lock(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey) (decimal.Decimal, error) {
	if r.LockFunc != nil {
		if err := r.LockFunc(ctx, scope); err != nil {
			return decimal.Zero, err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mirrors[scope.String()]
	if !ok {
		m = domain.Mirror{Scope: scope, Balance: decimal.Zero}
		r.s.mirrors[scope.String()] = m
	}
	return m.Balance, nil
}

func (r *FakeMirrorRepository) Set(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey, balance decimal.Decimal, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.mirrors[scope.String()] = domain.Mirror{Scope: scope, Balance: balance, UpdatedAt: updatedAt}
	return nil
}

func (r *FakeMirrorRepository) Get(ctx context.Context, scope domain.ScopeKey) (*domain.Mirror, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mirrors[scope.String()]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *FakeMirrorRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Mirror, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Mirror
	for _, m := range r.s.mirrors {
		if m.Scope.Kind == domain.ScopeCustomer && m.Scope.OwnerID == customerID {
			cp := m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Currency < out[j].Scope.Currency })
	return out, nil
}

// FakePoolRepository is an in-memory usecase.PoolRepository. Pool balances
// are read from the pool scope's mirror.
type FakePoolRepository struct {
	s *FakeStore
}

func (r *FakePoolRepository) AddTotals(ctx context.Context, tx usecase.Transaction, currency string, bought, sold decimal.Decimal, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.pools[currency]
	p.Currency = currency
	p.TotalBought = p.TotalBought.Add(bought)
	p.TotalSold = p.TotalSold.Add(sold)
	p.UpdatedAt = updatedAt
	r.s.pools[currency] = p
	return nil
}

func (r *FakePoolRepository) pool(currency string) (*domain.CurrencyPool, bool) {
	p, hasTotals := r.s.pools[currency]
	m, hasMirror := r.s.mirrors[domain.PoolScope(currency).String()]
	if !hasTotals && !hasMirror {
		return nil, false
	}
	p.Currency = currency
	p.Balance = m.Balance
	return &p, true
}

func (r *FakePoolRepository) Get(ctx context.Context, currency string) (*domain.CurrencyPool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.pool(currency)
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	return p, nil
}

func (r *FakePoolRepository) List(ctx context.Context) ([]*domain.CurrencyPool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.CurrencyPool
	for currency := range r.s.pools {
		if p, ok := r.pool(currency); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// FakeCustomerRepository is an in-memory usecase.CustomerRepository.
type FakeCustomerRepository struct {
	s *FakeStore
}

func (r *FakeCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	r.s.AddCustomer(customer)
	return nil
}

func (r *FakeCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.customers[id]; ok {
		return c, nil
	}
	return nil, domain.ErrCustomerNotFound
}

func (r *FakeCustomerRepository) List(ctx context.Context, limit, offset int) ([]*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.Customer, 0, len(r.s.customers))
	for _, c := range r.s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

// FakeBankAccountRepository is an in-memory usecase.BankAccountRepository.
type FakeBankAccountRepository struct {
	s *FakeStore
}

func (r *FakeBankAccountRepository) Create(ctx context.Context, account *domain.BankAccount) error {
	r.s.AddBankAccount(account)
	return nil
}

func (r *FakeBankAccountRepository) GetByID(ctx context.Context, id string) (*domain.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.banks[id]; ok {
		return b, nil
	}
	return nil, domain.ErrBankAccountNotFound
}

func (r *FakeBankAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.BankAccount, 0, len(r.s.banks))
	for _, b := range r.s.banks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// FakeOutboxRepository is an in-memory usecase.OutboxRepository.
type FakeOutboxRepository struct {
	s *FakeStore
}

func (r *FakeOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outbox = append(r.s.outbox, event)
	return nil
}

func (r *FakeOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range r.s.outbox {
		if !e.Published {
			out = append(out, e)
		}
	}
	return page(out, limit, 0), nil
}

func (r *FakeOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.outbox {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

func (r *FakeOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.outbox[:0]
	for _, e := range r.s.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return nil
}

// FakeAuditRepository is an in-memory usecase.AuditRepository.
type FakeAuditRepository struct {
	s *FakeStore
}

func (r *FakeAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == "" {
		log.ID = fmt.Sprintf("audit-%d", len(r.s.audit)+1)
	}
	r.s.audit = append(r.s.audit, log)
	return nil
}

func (r *FakeAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.AuditLog
	for _, l := range r.s.audit {
		if filter.Actor != "" && l.Actor != filter.Actor {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.ScopeKind != "" && l.ScopeKind != filter.ScopeKind {
			continue
		}
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

// FakeIDGenerator returns sequential ids.
type FakeIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewFakeIDGenerator() *FakeIDGenerator {
	return &FakeIDGenerator{}
}

func (m *FakeIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%d", m.counter)
}

// FakeBalanceCache is an in-memory usecase.BalanceCache that keeps the
// version rule of the Redis cache.
type FakeBalanceCache struct {
	mu       sync.Mutex
	balances map[string]cachedBalance

	GetErr      error
	SetErr      error
	Invalidated []string
}

type cachedBalance struct {
	balance   decimal.Decimal
	updatedAt time.Time
}

func NewFakeBalanceCache() *FakeBalanceCache {
	return &FakeBalanceCache{balances: make(map[string]cachedBalance)}
}

func (c *FakeBalanceCache) GetBalance(ctx context.Context, scope domain.ScopeKey) (decimal.Decimal, bool, error) {
	if c.GetErr != nil {
		return decimal.Zero, false, c.GetErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[scope.String()]
	return b.balance, ok, nil
}

func (c *FakeBalanceCache) SetBalance(ctx context.Context, scope domain.ScopeKey, balance decimal.Decimal, updatedAt time.Time, ttl time.Duration) error {
	if c.SetErr != nil {
		return c.SetErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.balances[scope.String()]; ok && cur.updatedAt.After(updatedAt) {
		return nil
	}
	c.balances[scope.String()] = cachedBalance{balance: balance, updatedAt: updatedAt}
	return nil
}

func (c *FakeBalanceCache) Invalidate(ctx context.Context, scope domain.ScopeKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.balances, scope.String())
	c.Invalidated = append(c.Invalidated, scope.String())
	return nil
}

// FakeIdempotencyStore is an in-memory usecase.IdempotencyStore.
type FakeIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewFakeIdempotencyStore() *FakeIdempotencyStore {
	return &FakeIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *FakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *FakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *FakeIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Stored returns the value held for key.
func (m *FakeIdempotencyStore) Stored(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}
