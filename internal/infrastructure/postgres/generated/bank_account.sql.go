package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createBankAccount = `-- name: CreateBankAccount :exec
INSERT INTO bank_accounts (id, name, bank_name, account_number, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreateBankAccountParams struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	BankName      string             `json:"bank_name"`
	AccountNumber string             `json:"account_number"`
	Currency      string             `json:"currency"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateBankAccount(ctx context.Context, arg CreateBankAccountParams) error {
	_, err := q.db.Exec(ctx, createBankAccount,
		arg.ID,
		arg.Name,
		arg.BankName,
		arg.AccountNumber,
		arg.Currency,
		arg.CreatedAt,
	)
	return err
}

const getBankAccountByID = `-- name: GetBankAccountByID :one
SELECT id, name, bank_name, account_number, currency, created_at FROM bank_accounts WHERE id = $1
`

func (q *Queries) GetBankAccountByID(ctx context.Context, id string) (BankAccount, error) {
	row := q.db.QueryRow(ctx, getBankAccountByID, id)
	var i BankAccount
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.BankName,
		&i.AccountNumber,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}

const listBankAccounts = `-- name: ListBankAccounts :many
SELECT id, name, bank_name, account_number, currency, created_at FROM bank_accounts
ORDER BY created_at, id
LIMIT $1 OFFSET $2
`

type ListBankAccountsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListBankAccounts(ctx context.Context, arg ListBankAccountsParams) ([]BankAccount, error) {
	rows, err := q.db.Query(ctx, listBankAccounts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BankAccount
	for rows.Next() {
		var i BankAccount
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.BankName,
			&i.AccountNumber,
			&i.Currency,
			&i.CreatedAt,
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
