package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres/generated"
)

// BankAccountRepository implements usecase.BankAccountRepository.
type BankAccountRepository struct {
	queries *generated.Queries
}

// NewBankAccountRepository creates a new BankAccountRepository.
func NewBankAccountRepository(pool *pgxpool.Pool) *BankAccountRepository {
	return newBankAccountRepository(pool)
}

func newBankAccountRepository(db generated.DBTX) *BankAccountRepository {
	return &BankAccountRepository{queries: generated.New(db)}
}

// Create creates a new bank account.
func (r *BankAccountRepository) Create(ctx context.Context, account *domain.BankAccount) error {
	return r.queries.CreateBankAccount(ctx, generated.CreateBankAccountParams{
		ID:            account.ID,
		Name:          account.Name,
		BankName:      account.BankName,
		AccountNumber: account.AccountNumber,
		Currency:      account.Currency,
		CreatedAt:     timeToPgTimestamptz(account.CreatedAt),
	})
}

// GetByID retrieves a bank account by ID.
func (r *BankAccountRepository) GetByID(ctx context.Context, id string) (*domain.BankAccount, error) {
	row, err := r.queries.GetBankAccountByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBankAccountNotFound
		}
		return nil, err
	}

	return rowToBankAccount(row), nil
}

// List lists bank accounts with pagination.
func (r *BankAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.BankAccount, error) {
	rows, err := r.queries.ListBankAccounts(ctx, generated.ListBankAccountsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.BankAccount, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToBankAccount(row))
	}

	return accounts, nil
}

func rowToBankAccount(row generated.BankAccount) *domain.BankAccount {
	return &domain.BankAccount{
		ID:            row.ID,
		Name:          row.Name,
		BankName:      row.BankName,
		AccountNumber: row.AccountNumber,
		Currency:      row.Currency,
		CreatedAt:     row.CreatedAt.Time,
	}
}
