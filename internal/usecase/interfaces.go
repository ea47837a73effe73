package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
)

// EntryQuery selects entries of one scope for listing.
type EntryQuery struct {
	From   *time.Time
	To     *time.Time
	Scope  domain.ScopeKey
	View   domain.View
	Limit  int
	Offset int
}

// EntryRepository defines data access for ledger entries. Entries of each
// scope kind live in their own table, so ids are only unique per kind.
type EntryRepository interface {
	// Create inserts entry and assigns its ID.
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	GetByID(ctx context.Context, kind domain.ScopeKind, id int64) (*domain.Entry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, kind domain.ScopeKind, id int64) (*domain.Entry, error)
	// GetTail returns the latest canonical entry of scope, or nil when there is none.
	GetTail(ctx context.Context, tx Transaction, scope domain.ScopeKey) (*domain.Entry, error)
	// ListCanonical returns all non-deleted entries of scope in ledger order.
	// A nil tx reads outside any transaction.
	ListCanonical(ctx context.Context, tx Transaction, scope domain.ScopeKey) ([]*domain.Entry, error)
	List(ctx context.Context, query EntryQuery) ([]*domain.Entry, error)
	UpdateBalances(ctx context.Context, tx Transaction, kind domain.ScopeKind, id int64, before, after decimal.Decimal) error
	UpdateAmount(ctx context.Context, tx Transaction, kind domain.ScopeKind, id int64, amount decimal.Decimal) error
	SetDeleted(ctx context.Context, tx Transaction, kind domain.ScopeKind, id int64, deleted bool, by *string, at *time.Time) error
	SetFrozen(ctx context.Context, tx Transaction, kind domain.ScopeKind, id int64, frozen bool) error
	GetBalanceAsOf(ctx context.Context, scope domain.ScopeKey, asOf time.Time) (decimal.Decimal, error)
	// ListScopes returns every scope of kind that has at least one entry.
	ListScopes(ctx context.Context, kind domain.ScopeKind) ([]domain.ScopeKey, error)
}

// MirrorRepository defines data access for current-balance mirrors.
type MirrorRepository interface {
	// Lock creates the scope's mirror row if missing and locks it for the
	// rest of tx, serializing mutations of the same scope.
	Lock(ctx context.Context, tx Transaction, scope domain.ScopeKey) (decimal.Decimal, error)
	Set(ctx context.Context, tx Transaction, scope domain.ScopeKey, balance decimal.Decimal, updatedAt time.Time) error
	// Get returns nil when the scope has no mirror row yet.
	Get(ctx context.Context, scope domain.ScopeKey) (*domain.Mirror, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.Mirror, error)
}

// PoolRepository defines data access for currency pool accumulators.
type PoolRepository interface {
	AddTotals(ctx context.Context, tx Transaction, currency string, bought, sold decimal.Decimal, updatedAt time.Time) error
	Get(ctx context.Context, currency string) (*domain.CurrencyPool, error)
	List(ctx context.Context) ([]*domain.CurrencyPool, error)
}

// CustomerRepository defines data access for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Customer, error)
}

// BankAccountRepository defines data access for bank accounts.
type BankAccountRepository interface {
	Create(ctx context.Context, account *domain.BankAccount) error
	GetByID(ctx context.Context, id string) (*domain.BankAccount, error)
	List(ctx context.Context, limit, offset int) ([]*domain.BankAccount, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BalanceCache caches current balances in front of the mirror tables.
type BalanceCache interface {
	// GetBalance reports ok=false on a miss.
	GetBalance(ctx context.Context, scope domain.ScopeKey) (balance decimal.Decimal, ok bool, err error)
	// SetBalance stores balance as of the mirror row's updatedAt and must not
	// replace a cached balance with a later updatedAt. A zero updatedAt is
	// older than any stored row.
	SetBalance(ctx context.Context, scope domain.ScopeKey, balance decimal.Decimal, updatedAt time.Time, ttl time.Duration) error
	Invalidate(ctx context.Context, scope domain.ScopeKey) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key whose request failed.
	Release(ctx context.Context, key string) error
}

// MetricsRecorder receives ledger instrumentation. *metrics.Metrics implements it.
type MetricsRecorder interface {
	ObserveMutation(operation, scopeKind string, walked int, duration time.Duration, err error)
	ObserveAppend(scopeKind, transactionType string)
	ObserveCorruption(scopeKind string)
	ObserveConflict(scopeKind string)
	SetPoolBalance(currency string, balance float64)
	ObserveBalanceRead(source string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMutation(string, string, int, time.Duration, error) {}
func (noopMetrics) ObserveAppend(string, string)                              {}
func (noopMetrics) ObserveCorruption(string)                                  {}
func (noopMetrics) ObserveConflict(string)                                    {}
func (noopMetrics) SetPoolBalance(string, float64)                            {}
func (noopMetrics) ObserveBalanceRead(string)                                 {}
