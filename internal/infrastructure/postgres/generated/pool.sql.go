package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const ensureCurrencyPool = `-- name: EnsureCurrencyPool :exec
INSERT INTO currency_pools (currency, balance, total_bought, total_sold, updated_at)
VALUES ($1, 0, 0, 0, NOW())
ON CONFLICT (currency) DO NOTHING
`

func (q *Queries) EnsureCurrencyPool(ctx context.Context, currency string) error {
	_, err := q.db.Exec(ctx, ensureCurrencyPool, currency)
	return err
}

const lockCurrencyPool = `-- name: LockCurrencyPool :one
SELECT balance FROM currency_pools
WHERE currency = $1
FOR UPDATE
`

func (q *Queries) LockCurrencyPool(ctx context.Context, currency string) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, lockCurrencyPool, currency)
	var balance pgtype.Numeric
	err := row.Scan(&balance)
	return balance, err
}

const updateCurrencyPoolBalance = `-- name: UpdateCurrencyPoolBalance :exec
UPDATE currency_pools
SET balance = $2, updated_at = $3
WHERE currency = $1
`

type UpdateCurrencyPoolBalanceParams struct {
	Currency  string             `json:"currency"`
	Balance   pgtype.Numeric     `json:"balance"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateCurrencyPoolBalance(ctx context.Context, arg UpdateCurrencyPoolBalanceParams) error {
	_, err := q.db.Exec(ctx, updateCurrencyPoolBalance, arg.Currency, arg.Balance, arg.UpdatedAt)
	return err
}

const addCurrencyPoolTotals = `-- name: AddCurrencyPoolTotals :exec
UPDATE currency_pools
SET total_bought = total_bought + $2,
    total_sold = total_sold + $3,
    updated_at = $4
WHERE currency = $1
`

type AddCurrencyPoolTotalsParams struct {
	Currency    string             `json:"currency"`
	TotalBought pgtype.Numeric     `json:"total_bought"`
	TotalSold   pgtype.Numeric     `json:"total_sold"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) AddCurrencyPoolTotals(ctx context.Context, arg AddCurrencyPoolTotalsParams) error {
	_, err := q.db.Exec(ctx, addCurrencyPoolTotals,
		arg.Currency,
		arg.TotalBought,
		arg.TotalSold,
		arg.UpdatedAt,
	)
	return err
}

const getCurrencyPool = `-- name: GetCurrencyPool :one
SELECT currency, balance, total_bought, total_sold, updated_at FROM currency_pools
WHERE currency = $1
`

func (q *Queries) GetCurrencyPool(ctx context.Context, currency string) (CurrencyPool, error) {
	row := q.db.QueryRow(ctx, getCurrencyPool, currency)
	var i CurrencyPool
	err := row.Scan(
		&i.Currency,
		&i.Balance,
		&i.TotalBought,
		&i.TotalSold,
		&i.UpdatedAt,
	)
	return i, err
}

const listCurrencyPools = `-- name: ListCurrencyPools :many
SELECT currency, balance, total_bought, total_sold, updated_at FROM currency_pools
ORDER BY currency
`

func (q *Queries) ListCurrencyPools(ctx context.Context) ([]CurrencyPool, error) {
	rows, err := q.db.Query(ctx, listCurrencyPools)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CurrencyPool
	for rows.Next() {
		var i CurrencyPool
		if err := rows.Scan(
			&i.Currency,
			&i.Balance,
			&i.TotalBought,
			&i.TotalSold,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
