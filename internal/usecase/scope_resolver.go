package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iho/fxledger/internal/domain"
)

// scopeResolver checks that a scope key addresses an existing ledger owner.
type scopeResolver struct {
	customerRepo    CustomerRepository
	bankAccountRepo BankAccountRepository
}

// resolve validates scope and returns it in canonical form. Bank account
// scopes come back with the account's currency filled in.
func (r scopeResolver) resolve(ctx context.Context, scope domain.ScopeKey) (domain.ScopeKey, error) {
	if err := scope.Validate(); err != nil {
		return domain.ScopeKey{}, err
	}

	switch scope.Kind {
	case domain.ScopeCustomer:
		if _, err := r.customerRepo.GetByID(ctx, scope.OwnerID); err != nil {
			if errors.Is(err, domain.ErrCustomerNotFound) {
				return domain.ScopeKey{}, fmt.Errorf("%w: customer %s", domain.ErrInvalidScope, scope.OwnerID)
			}
			return domain.ScopeKey{}, err
		}
		return scope, nil

	case domain.ScopeBankAccount:
		account, err := r.bankAccountRepo.GetByID(ctx, scope.OwnerID)
		if err != nil {
			if errors.Is(err, domain.ErrBankAccountNotFound) {
				return domain.ScopeKey{}, fmt.Errorf("%w: bank account %s", domain.ErrInvalidScope, scope.OwnerID)
			}
			return domain.ScopeKey{}, err
		}
		if scope.Currency != "" && scope.Currency != account.Currency {
			return domain.ScopeKey{}, fmt.Errorf("%w: account is %s, got %s",
				domain.ErrCurrencyMismatch, account.Currency, scope.Currency)
		}
		return account.Scope(), nil

	default:
		return scope, nil
	}
}
