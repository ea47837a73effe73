package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
	"github.com/iho/fxledger/internal/usecase"
)

// historyColumns describes how a scope kind's history table stores its key.
type historyColumns struct {
	// scope lists the key columns in insert order.
	scope []string
	// owner and currency are select expressions yielding the key parts.
	owner    string
	currency string
	args     func(domain.ScopeKey) []any
}

var historyLayouts = map[domain.ScopeKind]historyColumns{
	domain.ScopeCustomer: {
		scope:    []string{"customer_id", "currency"},
		owner:    "customer_id",
		currency: "currency",
		args:     func(k domain.ScopeKey) []any { return []any{k.OwnerID, k.Currency} },
	},
	domain.ScopeBankAccount: {
		scope:    []string{"bank_account_id"},
		owner:    "bank_account_id",
		currency: "''::text",
		args:     func(k domain.ScopeKey) []any { return []any{k.OwnerID} },
	},
	domain.ScopeCurrencyPool: {
		scope:    []string{"currency"},
		owner:    "''::text",
		currency: "currency",
		args:     func(k domain.ScopeKey) []any { return []any{k.Currency} },
	},
}

type historyTable struct {
	historyColumns
	kind domain.ScopeKind
	name string
}

func tableFor(kind domain.ScopeKind) (historyTable, error) {
	policy, err := domain.PolicyFor(kind)
	if err != nil {
		return historyTable{}, err
	}
	return historyTable{historyColumns: historyLayouts[kind], kind: kind, name: policy.EntryTable}, nil
}

func (t historyTable) selectList() string {
	return fmt.Sprintf(`id, %s, %s, transaction_date, reference_id, transaction_number, type,
		balance_before, amount, balance_after, description, created_by, created_at,
		is_deleted, deleted_at, deleted_by, is_frozen`, t.owner, t.currency)
}

// scopeFilter renders "col = $n AND ..." for scope, appending its values to args.
func (t historyTable) scopeFilter(scope domain.ScopeKey, args *sqlArgs) string {
	values := t.args(scope)
	parts := make([]string, len(t.scope))
	for i, col := range t.scope {
		parts[i] = col + " = " + args.add(values[i])
	}
	return strings.Join(parts, " AND ")
}

func (t historyTable) scan(row pgx.Row) (*domain.Entry, error) {
	var (
		e                        domain.Entry
		owner, currency, txType  string
		before, amount, after    pgtype.Numeric
		txDate, createdAt, delAt pgtype.Timestamptz
	)

	err := row.Scan(
		&e.ID,
		&owner,
		&currency,
		&txDate,
		&e.ReferenceID,
		&e.TransactionNumber,
		&txType,
		&before,
		&amount,
		&after,
		&e.Description,
		&e.CreatedBy,
		&createdAt,
		&e.IsDeleted,
		&delAt,
		&e.DeletedBy,
		&e.IsFrozen,
	)
	if err != nil {
		return nil, err
	}

	e.Scope = domain.ScopeKey{Kind: t.kind, OwnerID: owner, Currency: currency}
	e.Type = domain.TransactionType(txType)
	e.TransactionDate = txDate.Time
	e.CreatedAt = createdAt.Time
	e.DeletedAt = pgTimestamptzToPtr(delAt)
	e.BalanceBefore = numericToDecimal(before)
	e.Amount = numericToDecimal(amount)
	e.BalanceAfter = numericToDecimal(after)

	return &e, nil
}

// EntryRepository implements usecase.EntryRepository over the per-kind
// history tables.
type EntryRepository struct {
	db generated.DBTX
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create inserts entry and assigns its ID.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	t, err := tableFor(entry.Scope.Kind)
	if err != nil {
		return err
	}

	var args sqlArgs
	placeholders := make([]string, 0, len(t.scope)+12)
	for _, v := range t.args(entry.Scope) {
		placeholders = append(placeholders, args.add(v))
	}
	for _, v := range []any{
		timeToPgTimestamptz(entry.TransactionDate),
		entry.ReferenceID,
		entry.TransactionNumber,
		string(entry.Type),
		decimalToNumeric(entry.BalanceBefore),
		decimalToNumeric(entry.Amount),
		decimalToNumeric(entry.BalanceAfter),
		entry.Description,
		entry.CreatedBy,
		timeToPgTimestamptz(entry.CreatedAt),
		entry.IsDeleted,
		entry.IsFrozen,
	} {
		placeholders = append(placeholders, args.add(v))
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s, transaction_date, reference_id, transaction_number, type,
		balance_before, amount, balance_after, description, created_by, created_at, is_deleted, is_frozen)
		VALUES (%s) RETURNING id`,
		t.name, strings.Join(t.scope, ", "), strings.Join(placeholders, ", "))

	return dbtx(tx, r.db).QueryRow(ctx, query, args...).Scan(&entry.ID)
}

// GetByID retrieves an entry outside any transaction.
func (r *EntryRepository) GetByID(ctx context.Context, kind domain.ScopeKind, id int64) (*domain.Entry, error) {
	return r.getByID(ctx, r.db, kind, id, false)
}

// GetByIDForUpdate retrieves an entry and locks its row for the rest of tx.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64) (*domain.Entry, error) {
	return r.getByID(ctx, dbtx(tx, r.db), kind, id, true)
}

func (r *EntryRepository) getByID(ctx context.Context, db generated.DBTX, kind domain.ScopeKind, id int64, lock bool) (*domain.Entry, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, t.selectList(), t.name)
	if lock {
		query += ` FOR UPDATE`
	}

	entry, err := t.scan(db.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, domain.ErrEntryNotFound
	}
	return entry, err
}

// GetTail returns the latest canonical entry of scope, or nil when there is none.
func (r *EntryRepository) GetTail(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey) (*domain.Entry, error) {
	t, err := tableFor(scope.Kind)
	if err != nil {
		return nil, err
	}

	var args sqlArgs
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND NOT is_deleted
		ORDER BY transaction_date DESC, id DESC LIMIT 1`,
		t.selectList(), t.name, t.scopeFilter(scope, &args))

	entry, err := t.scan(dbtx(tx, r.db).QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, nil
	}
	return entry, err
}

// ListCanonical returns all non-deleted entries of scope in ledger order.
func (r *EntryRepository) ListCanonical(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey) ([]*domain.Entry, error) {
	return r.list(ctx, dbtx(tx, r.db), usecase.EntryQuery{Scope: scope, View: domain.ViewCanonical})
}

// List returns the entries of one scope visible in query.View, in ledger order.
func (r *EntryRepository) List(ctx context.Context, query usecase.EntryQuery) ([]*domain.Entry, error) {
	return r.list(ctx, r.db, query)
}

func (r *EntryRepository) list(ctx context.Context, db generated.DBTX, q usecase.EntryQuery) ([]*domain.Entry, error) {
	t, err := tableFor(q.Scope.Kind)
	if err != nil {
		return nil, err
	}

	var args sqlArgs
	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT %s FROM %s WHERE %s`, t.selectList(), t.name, t.scopeFilter(q.Scope, &args))

	if q.View&domain.IncludeDeleted == 0 {
		sb.WriteString(` AND NOT is_deleted`)
	}
	if q.View&domain.ExcludeFrozen != 0 {
		sb.WriteString(` AND NOT is_frozen`)
	}
	if q.From != nil {
		sb.WriteString(` AND transaction_date >= ` + args.add(timeToPgTimestamptz(*q.From)))
	}
	if q.To != nil {
		sb.WriteString(` AND transaction_date <= ` + args.add(timeToPgTimestamptz(*q.To)))
	}
	sb.WriteString(` ORDER BY transaction_date, id`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ` + args.add(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(` OFFSET ` + args.add(q.Offset))
	}

	rows, err := db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.Entry, 0)
	for rows.Next() {
		entry, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// UpdateBalances rewrites the derived balances of one entry.
func (r *EntryRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, before, after decimal.Decimal) error {
	return r.update(ctx, tx, kind, id, `balance_before = $2, balance_after = $3`,
		decimalToNumeric(before), decimalToNumeric(after))
}

// UpdateAmount changes an entry's amount. Balances are left to the caller's cascade.
func (r *EntryRepository) UpdateAmount(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, amount decimal.Decimal) error {
	return r.update(ctx, tx, kind, id, `amount = $2`, decimalToNumeric(amount))
}

// SetDeleted flips the soft-delete flag and its bookkeeping columns.
func (r *EntryRepository) SetDeleted(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, deleted bool, by *string, at *time.Time) error {
	return r.update(ctx, tx, kind, id, `is_deleted = $2, deleted_by = $3, deleted_at = $4`,
		deleted, by, timePtrToPgTimestamptz(at))
}

// SetFrozen flips the frozen flag.
func (r *EntryRepository) SetFrozen(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, frozen bool) error {
	return r.update(ctx, tx, kind, id, `is_frozen = $2`, frozen)
}

func (r *EntryRepository) update(ctx context.Context, tx usecase.Transaction, kind domain.ScopeKind, id int64, set string, values ...any) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, t.name, set)
	tag, err := dbtx(tx, r.db).Exec(ctx, query, append([]any{id}, values...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// GetBalanceAsOf returns BalanceAfter of the latest non-deleted entry dated
// at or before asOf, or zero.
func (r *EntryRepository) GetBalanceAsOf(ctx context.Context, scope domain.ScopeKey, asOf time.Time) (decimal.Decimal, error) {
	t, err := tableFor(scope.Kind)
	if err != nil {
		return decimal.Zero, err
	}

	var args sqlArgs
	filter := t.scopeFilter(scope, &args)
	query := fmt.Sprintf(`SELECT balance_after FROM %s
		WHERE %s AND NOT is_deleted AND transaction_date <= %s
		ORDER BY transaction_date DESC, id DESC LIMIT 1`,
		t.name, filter, args.add(timeToPgTimestamptz(asOf)))

	var balance pgtype.Numeric
	err = r.db.QueryRow(ctx, query, args...).Scan(&balance)
	if isNoRows(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(balance), nil
}

// ListScopes returns every scope of kind that has at least one entry.
func (r *EntryRepository) ListScopes(ctx context.Context, kind domain.ScopeKind) ([]domain.ScopeKey, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s, %s FROM %s ORDER BY 1, 2`, t.owner, t.currency, t.name)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []domain.ScopeKey
	for rows.Next() {
		var owner, currency string
		if err := rows.Scan(&owner, &currency); err != nil {
			return nil, err
		}
		scopes = append(scopes, domain.ScopeKey{Kind: kind, OwnerID: owner, Currency: currency})
	}

	return scopes, rows.Err()
}
