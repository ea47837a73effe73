package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
)

// CreateCustomerRequest represents a request to create a customer.
type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateCustomerRequest) ToUseCaseInput() usecase.CreateCustomerInput {
	return usecase.CreateCustomerInput{Name: r.Name, Phone: r.Phone}
}

// CreateBankAccountRequest represents a request to create a bank account.
type CreateBankAccountRequest struct {
	Name          string `json:"name"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Currency      string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateBankAccountRequest) ToUseCaseInput() usecase.CreateBankAccountInput {
	return usecase.CreateBankAccountInput{
		Name:          r.Name,
		BankName:      r.BankName,
		AccountNumber: r.AccountNumber,
		Currency:      r.Currency,
	}
}

// AppendEntryRequest represents a request to record a balance movement.
// Amount is signed: positive credits the scope, negative debits it.
type AppendEntryRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Type              string          `json:"type"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	ReferenceID       *string         `json:"reference_id,omitempty"`
	TransactionNumber *string         `json:"transaction_number,omitempty"`
	Description       string          `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input for scope, recorded by actor.
func (r *AppendEntryRequest) ToUseCaseInput(scope domain.ScopeKey, actor string) usecase.AppendInput {
	in := usecase.AppendInput{
		Scope:             scope,
		Amount:            r.Amount,
		Type:              domain.TransactionType(r.Type),
		ReferenceID:       r.ReferenceID,
		TransactionNumber: r.TransactionNumber,
		Description:       r.Description,
		Actor:             actor,
	}
	if in.Type == "" {
		in.Type = domain.TransactionManual
	}
	if r.TransactionDate != nil {
		in.TransactionDate = *r.TransactionDate
	}
	return in
}

// SetFrozenRequest toggles an entry's frozen flag.
type SetFrozenRequest struct {
	Frozen bool `json:"frozen"`
}

// EditAmountRequest replaces an entry's amount.
type EditAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RecomputeRequest selects the scope to rebuild. An empty scope rebuilds all.
type RecomputeRequest struct {
	Scope string `json:"scope,omitempty"`
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
