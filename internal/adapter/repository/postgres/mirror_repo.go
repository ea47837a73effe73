package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
	"github.com/iho/fxledger/internal/usecase"
)

// MirrorRepository implements usecase.MirrorRepository. Pool mirrors are the
// balance column of currency_pools.
type MirrorRepository struct {
	db      generated.DBTX
	queries *generated.Queries
}

// NewMirrorRepository creates a new MirrorRepository.
func NewMirrorRepository(pool *pgxpool.Pool) *MirrorRepository {
	return newMirrorRepository(pool)
}

func newMirrorRepository(db generated.DBTX) *MirrorRepository {
	return &MirrorRepository{db: db, queries: generated.New(db)}
}

// Lock creates the scope's mirror row if missing and locks it for the rest of tx.
func (r *MirrorRepository) Lock(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey) (decimal.Decimal, error) {
	queries := generated.New(dbtx(tx, r.db))

	var (
		balance pgtype.Numeric
		err     error
	)

	switch scope.Kind {
	case domain.ScopeCustomer:
		if err = queries.EnsureCustomerBalance(ctx, generated.EnsureCustomerBalanceParams{
			CustomerID: scope.OwnerID,
			Currency:   scope.Currency,
		}); err == nil {
			balance, err = queries.LockCustomerBalance(ctx, generated.LockCustomerBalanceParams{
				CustomerID: scope.OwnerID,
				Currency:   scope.Currency,
			})
		}
	case domain.ScopeBankAccount:
		if err = queries.EnsureBankAccountBalance(ctx, scope.OwnerID); err == nil {
			balance, err = queries.LockBankAccountBalance(ctx, scope.OwnerID)
		}
	case domain.ScopeCurrencyPool:
		if err = queries.EnsureCurrencyPool(ctx, scope.Currency); err == nil {
			balance, err = queries.LockCurrencyPool(ctx, scope.Currency)
		}
	default:
		return decimal.Zero, unknownKind(scope.Kind)
	}

	if err != nil {
		return decimal.Zero, fmt.Errorf("lock %s mirror: %w", scope, err)
	}
	return numericToDecimal(balance), nil
}

// Set overwrites the scope's mirror. The row must exist, which Lock guarantees.
func (r *MirrorRepository) Set(ctx context.Context, tx usecase.Transaction, scope domain.ScopeKey, balance decimal.Decimal, updatedAt time.Time) error {
	queries := generated.New(dbtx(tx, r.db))
	value := decimalToNumeric(balance)
	at := timeToPgTimestamptz(updatedAt)

	switch scope.Kind {
	case domain.ScopeCustomer:
		return queries.UpdateCustomerBalance(ctx, generated.UpdateCustomerBalanceParams{
			CustomerID: scope.OwnerID,
			Currency:   scope.Currency,
			Balance:    value,
			UpdatedAt:  at,
		})
	case domain.ScopeBankAccount:
		return queries.UpdateBankAccountBalance(ctx, generated.UpdateBankAccountBalanceParams{
			BankAccountID: scope.OwnerID,
			Balance:       value,
			UpdatedAt:     at,
		})
	case domain.ScopeCurrencyPool:
		return queries.UpdateCurrencyPoolBalance(ctx, generated.UpdateCurrencyPoolBalanceParams{
			Currency:  scope.Currency,
			Balance:   value,
			UpdatedAt: at,
		})
	default:
		return unknownKind(scope.Kind)
	}
}

// Get returns nil when the scope has no mirror row yet.
func (r *MirrorRepository) Get(ctx context.Context, scope domain.ScopeKey) (*domain.Mirror, error) {
	var (
		balance   pgtype.Numeric
		updatedAt pgtype.Timestamptz
		err       error
	)

	switch scope.Kind {
	case domain.ScopeCustomer:
		var row generated.CustomerBalance
		row, err = r.queries.GetCustomerBalance(ctx, generated.GetCustomerBalanceParams{
			CustomerID: scope.OwnerID,
			Currency:   scope.Currency,
		})
		balance, updatedAt = row.Balance, row.UpdatedAt
	case domain.ScopeBankAccount:
		var row generated.BankAccountBalance
		row, err = r.queries.GetBankAccountBalance(ctx, scope.OwnerID)
		balance, updatedAt = row.Balance, row.UpdatedAt
	case domain.ScopeCurrencyPool:
		var row generated.CurrencyPool
		row, err = r.queries.GetCurrencyPool(ctx, scope.Currency)
		balance, updatedAt = row.Balance, row.UpdatedAt
	default:
		return nil, unknownKind(scope.Kind)
	}

	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.Mirror{
		Scope:     scope,
		Balance:   numericToDecimal(balance),
		UpdatedAt: updatedAt.Time,
	}, nil
}

// ListByCustomer returns the customer's mirrors ordered by currency.
func (r *MirrorRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Mirror, error) {
	rows, err := r.queries.ListCustomerBalances(ctx, customerID)
	if err != nil {
		return nil, err
	}

	mirrors := make([]*domain.Mirror, 0, len(rows))
	for _, row := range rows {
		mirrors = append(mirrors, &domain.Mirror{
			Scope:     domain.CustomerScope(row.CustomerID, row.Currency),
			Balance:   numericToDecimal(row.Balance),
			UpdatedAt: row.UpdatedAt.Time,
		})
	}

	return mirrors, nil
}

func unknownKind(kind domain.ScopeKind) error {
	return fmt.Errorf("%w: unknown scope kind %q", domain.ErrInvalidScopeKey, kind)
}
