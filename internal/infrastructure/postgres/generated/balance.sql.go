package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const ensureCustomerBalance = `-- name: EnsureCustomerBalance :exec
INSERT INTO customer_balances (customer_id, currency, balance, updated_at)
VALUES ($1, $2, 0, NOW())
ON CONFLICT (customer_id, currency) DO NOTHING
`

type EnsureCustomerBalanceParams struct {
	CustomerID string `json:"customer_id"`
	Currency   string `json:"currency"`
}

func (q *Queries) EnsureCustomerBalance(ctx context.Context, arg EnsureCustomerBalanceParams) error {
	_, err := q.db.Exec(ctx, ensureCustomerBalance, arg.CustomerID, arg.Currency)
	return err
}

const lockCustomerBalance = `-- name: LockCustomerBalance :one
SELECT balance FROM customer_balances
WHERE customer_id = $1 AND currency = $2
FOR UPDATE
`

type LockCustomerBalanceParams struct {
	CustomerID string `json:"customer_id"`
	Currency   string `json:"currency"`
}

func (q *Queries) LockCustomerBalance(ctx context.Context, arg LockCustomerBalanceParams) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, lockCustomerBalance, arg.CustomerID, arg.Currency)
	var balance pgtype.Numeric
	err := row.Scan(&balance)
	return balance, err
}

const updateCustomerBalance = `-- name: UpdateCustomerBalance :exec
UPDATE customer_balances
SET balance = $3, updated_at = $4
WHERE customer_id = $1 AND currency = $2
`

type UpdateCustomerBalanceParams struct {
	CustomerID string             `json:"customer_id"`
	Currency   string             `json:"currency"`
	Balance    pgtype.Numeric     `json:"balance"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateCustomerBalance(ctx context.Context, arg UpdateCustomerBalanceParams) error {
	_, err := q.db.Exec(ctx, updateCustomerBalance,
		arg.CustomerID,
		arg.Currency,
		arg.Balance,
		arg.UpdatedAt,
	)
	return err
}

const getCustomerBalance = `-- name: GetCustomerBalance :one
SELECT customer_id, currency, balance, updated_at FROM customer_balances
WHERE customer_id = $1 AND currency = $2
`

type GetCustomerBalanceParams struct {
	CustomerID string `json:"customer_id"`
	Currency   string `json:"currency"`
}

func (q *Queries) GetCustomerBalance(ctx context.Context, arg GetCustomerBalanceParams) (CustomerBalance, error) {
	row := q.db.QueryRow(ctx, getCustomerBalance, arg.CustomerID, arg.Currency)
	var i CustomerBalance
	err := row.Scan(
		&i.CustomerID,
		&i.Currency,
		&i.Balance,
		&i.UpdatedAt,
	)
	return i, err
}

const listCustomerBalances = `-- name: ListCustomerBalances :many
SELECT customer_id, currency, balance, updated_at FROM customer_balances
WHERE customer_id = $1
ORDER BY currency
`

func (q *Queries) ListCustomerBalances(ctx context.Context, customerID string) ([]CustomerBalance, error) {
	rows, err := q.db.Query(ctx, listCustomerBalances, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CustomerBalance
	for rows.Next() {
		var i CustomerBalance
		if err := rows.Scan(
			&i.CustomerID,
			&i.Currency,
			&i.Balance,
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

const ensureBankAccountBalance = `-- name: EnsureBankAccountBalance :exec
INSERT INTO bank_account_balances (bank_account_id, balance, updated_at)
VALUES ($1, 0, NOW())
ON CONFLICT (bank_account_id) DO NOTHING
`

func (q *Queries) EnsureBankAccountBalance(ctx context.Context, bankAccountID string) error {
	_, err := q.db.Exec(ctx, ensureBankAccountBalance, bankAccountID)
	return err
}

const lockBankAccountBalance = `-- name: LockBankAccountBalance :one
SELECT balance FROM bank_account_balances
WHERE bank_account_id = $1
FOR UPDATE
`

func (q *Queries) LockBankAccountBalance(ctx context.Context, bankAccountID string) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, lockBankAccountBalance, bankAccountID)
	var balance pgtype.Numeric
	err := row.Scan(&balance)
	return balance, err
}

const updateBankAccountBalance = `-- name: UpdateBankAccountBalance :exec
UPDATE bank_account_balances
SET balance = $2, updated_at = $3
WHERE bank_account_id = $1
`

type UpdateBankAccountBalanceParams struct {
	BankAccountID string             `json:"bank_account_id"`
	Balance       pgtype.Numeric     `json:"balance"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateBankAccountBalance(ctx context.Context, arg UpdateBankAccountBalanceParams) error {
	_, err := q.db.Exec(ctx, updateBankAccountBalance, arg.BankAccountID, arg.Balance, arg.UpdatedAt)
	return err
}

const getBankAccountBalance = `-- name: GetBankAccountBalance :one
SELECT bank_account_id, balance, updated_at FROM bank_account_balances
WHERE bank_account_id = $1
`

func (q *Queries) GetBankAccountBalance(ctx context.Context, bankAccountID string) (BankAccountBalance, error) {
	row := q.db.QueryRow(ctx, getBankAccountBalance, bankAccountID)
	var i BankAccountBalance
	err := row.Scan(&i.BankAccountID, &i.Balance, &i.UpdatedAt)
	return i, err
}
