package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
	"github.com/iho/fxledger/internal/usecase"
)

// PoolRepository implements usecase.PoolRepository.
type PoolRepository struct {
	db      generated.DBTX
	queries *generated.Queries
}

// NewPoolRepository creates a new PoolRepository.
func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return newPoolRepository(pool)
}

func newPoolRepository(db generated.DBTX) *PoolRepository {
	return &PoolRepository{db: db, queries: generated.New(db)}
}

// AddTotals adds to the pool's bought and sold accumulators. The pool row
// is created by the mirror lock taken earlier in tx.
func (r *PoolRepository) AddTotals(ctx context.Context, tx usecase.Transaction, currency string, bought, sold decimal.Decimal, updatedAt time.Time) error {
	return generated.New(dbtx(tx, r.db)).AddCurrencyPoolTotals(ctx, generated.AddCurrencyPoolTotalsParams{
		Currency:    currency,
		TotalBought: decimalToNumeric(bought),
		TotalSold:   decimalToNumeric(sold),
		UpdatedAt:   timeToPgTimestamptz(updatedAt),
	})
}

// Get retrieves a pool by currency.
func (r *PoolRepository) Get(ctx context.Context, currency string) (*domain.CurrencyPool, error) {
	row, err := r.queries.GetCurrencyPool(ctx, currency)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPoolNotFound
		}
		return nil, err
	}

	return rowToPool(row), nil
}

// List returns every pool ordered by currency.
func (r *PoolRepository) List(ctx context.Context) ([]*domain.CurrencyPool, error) {
	rows, err := r.queries.ListCurrencyPools(ctx)
	if err != nil {
		return nil, err
	}

	pools := make([]*domain.CurrencyPool, 0, len(rows))
	for _, row := range rows {
		pools = append(pools, rowToPool(row))
	}

	return pools, nil
}

func rowToPool(row generated.CurrencyPool) *domain.CurrencyPool {
	return &domain.CurrencyPool{
		Currency:    row.Currency,
		Balance:     numericToDecimal(row.Balance),
		TotalBought: numericToDecimal(row.TotalBought),
		TotalSold:   numericToDecimal(row.TotalSold),
		UpdatedAt:   row.UpdatedAt.Time,
	}
}
