package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/fxledger/internal/adapter/http/dto"
	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
)

// OwnerService defines the behavior needed by OwnerHandler.
type OwnerService interface {
	CreateCustomer(ctx context.Context, input usecase.CreateCustomerInput) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, input usecase.ListInput) ([]*domain.Customer, error)
	ListCustomerBalances(ctx context.Context, customerID string) ([]*domain.Mirror, error)
	CreateBankAccount(ctx context.Context, input usecase.CreateBankAccountInput) (*domain.BankAccount, error)
	GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context, input usecase.ListInput) ([]*domain.BankAccount, error)
}

// OwnerHandler handles customer and bank account HTTP requests.
type OwnerHandler struct {
	ownerUC OwnerService
}

// NewOwnerHandler creates a new OwnerHandler.
func NewOwnerHandler(ownerUC OwnerService) *OwnerHandler {
	return &OwnerHandler{ownerUC: ownerUC}
}

// CreateCustomer creates a new customer.
func (h *OwnerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	customer, err := h.ownerUC.CreateCustomer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to create customer", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CustomerFromDomain(customer))
}

// GetCustomer retrieves a customer by ID.
func (h *OwnerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.ownerUC.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get customer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CustomerFromDomain(customer))
}

// ListCustomers lists customers.
func (h *OwnerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.ownerUC.ListCustomers(r.Context(), usecase.ListInput{
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list customers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CustomersFromDomain(customers))
}

// ListCustomerBalances returns the customer's balance in every currency.
func (h *OwnerHandler) ListCustomerBalances(w http.ResponseWriter, r *http.Request) {
	mirrors, err := h.ownerUC.ListCustomerBalances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MirrorsFromDomain(mirrors))
}

// CreateBankAccount creates a new bank account.
func (h *OwnerHandler) CreateBankAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.ownerUC.CreateBankAccount(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to create bank account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.BankAccountFromDomain(account))
}

// GetBankAccount retrieves a bank account by ID.
func (h *OwnerHandler) GetBankAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ownerUC.GetBankAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get bank account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BankAccountFromDomain(account))
}

// ListBankAccounts lists bank accounts.
func (h *OwnerHandler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ownerUC.ListBankAccounts(r.Context(), usecase.ListInput{
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list bank accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BankAccountsFromDomain(accounts))
}
