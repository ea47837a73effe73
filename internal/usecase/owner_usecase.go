package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/iho/fxledger/internal/domain"
)

// OwnerUseCase manages the customers and bank accounts that own ledger scopes.
type OwnerUseCase struct {
	customerRepo    CustomerRepository
	bankAccountRepo BankAccountRepository
	mirrorRepo      MirrorRepository
	idGen           IDGenerator
}

// NewOwnerUseCase creates a new OwnerUseCase.
func NewOwnerUseCase(
	customerRepo CustomerRepository,
	bankAccountRepo BankAccountRepository,
	mirrorRepo MirrorRepository,
	idGen IDGenerator,
) *OwnerUseCase {
	return &OwnerUseCase{
		customerRepo:    customerRepo,
		bankAccountRepo: bankAccountRepo,
		mirrorRepo:      mirrorRepo,
		idGen:           idGen,
	}
}

// CreateCustomerInput represents input for creating a customer.
type CreateCustomerInput struct {
	Name  string
	Phone string
}

// CreateCustomer creates a new customer.
func (uc *OwnerUseCase) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*domain.Customer, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}

	customer := &domain.Customer{
		ID:        uc.idGen.Generate(),
		Name:      strings.TrimSpace(input.Name),
		Phone:     strings.TrimSpace(input.Phone),
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}

	return customer, nil
}

// GetCustomer retrieves a customer by ID.
func (uc *OwnerUseCase) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return uc.customerRepo.GetByID(ctx, id)
}

// ListInput represents pagination input.
type ListInput struct {
	Limit  int
	Offset int
}

// ListCustomers lists customers with pagination.
func (uc *OwnerUseCase) ListCustomers(ctx context.Context, input ListInput) ([]*domain.Customer, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.customerRepo.List(ctx, limit, offset)
}

// ListCustomerBalances returns the customer's mirror in every currency it has touched.
func (uc *OwnerUseCase) ListCustomerBalances(ctx context.Context, customerID string) ([]*domain.Mirror, error) {
	if _, err := uc.customerRepo.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return uc.mirrorRepo.ListByCustomer(ctx, customerID)
}

// CreateBankAccountInput represents input for creating a bank account.
type CreateBankAccountInput struct {
	Name          string
	BankName      string
	AccountNumber string
	Currency      string
}

// CreateBankAccount creates a new bank account. Its currency is fixed for life.
func (uc *OwnerUseCase) CreateBankAccount(ctx context.Context, input CreateBankAccountInput) (*domain.BankAccount, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	account := &domain.BankAccount{
		ID:            uc.idGen.Generate(),
		Name:          strings.TrimSpace(input.Name),
		BankName:      strings.TrimSpace(input.BankName),
		AccountNumber: strings.TrimSpace(input.AccountNumber),
		Currency:      domain.NormalizeCurrency(input.Currency),
		CreatedAt:     time.Now().UTC(),
	}

	if err := uc.bankAccountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetBankAccount retrieves a bank account by ID.
func (uc *OwnerUseCase) GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	return uc.bankAccountRepo.GetByID(ctx, id)
}

// ListBankAccounts lists bank accounts with pagination.
func (uc *OwnerUseCase) ListBankAccounts(ctx context.Context, input ListInput) ([]*domain.BankAccount, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.bankAccountRepo.List(ctx, limit, offset)
}
