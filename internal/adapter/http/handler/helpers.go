package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/iho/fxledger/internal/adapter/http/dto"
	"github.com/iho/fxledger/internal/domain"
)

// ActorHeader names the operator performing a mutation.
const ActorHeader = "X-Actor"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status and writes it. Server-side failures
// are logged since the caller only sees a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().
			Err(err).
			Bool("corruption", errors.Is(err, domain.ErrLedgerCorruption)).
			Str("path", r.URL.Path).
			Msg(message)
	}
	writeError(w, status, message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidScope),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrBankAccountNotFound),
		errors.Is(err, domain.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidActor):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidScopeKey),
		errors.Is(err, domain.ErrFreezeNotSupported),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrAmountTooPrecise),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidDescription),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseTimeQuery parses an optional RFC3339 query parameter.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, fmt.Errorf("invalid %q (use RFC3339): %w", key, err)
	}
	return &t, nil
}

func parseBoolQuery(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

// ScopeFunc extracts the ledger scope a route addresses.
type ScopeFunc func(r *http.Request) (domain.ScopeKey, error)

// CustomerScope reads /customers/{id}/ledgers/{currency}.
func CustomerScope(r *http.Request) (domain.ScopeKey, error) {
	key := domain.CustomerScope(chi.URLParam(r, "id"), chi.URLParam(r, "currency"))
	return key, key.Validate()
}

// BankAccountScope reads /bank-accounts/{id}.
func BankAccountScope(r *http.Request) (domain.ScopeKey, error) {
	key := domain.BankAccountScope(chi.URLParam(r, "id"))
	return key, key.Validate()
}

// PoolScope reads /pools/{currency}.
func PoolScope(r *http.Request) (domain.ScopeKey, error) {
	key := domain.PoolScope(chi.URLParam(r, "currency"))
	return key, key.Validate()
}
