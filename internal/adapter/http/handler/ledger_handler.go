package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/adapter/http/dto"
	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
)

// LedgerService defines the ledger mutations and checks LedgerHandler needs.
type LedgerService interface {
	Append(ctx context.Context, input usecase.AppendInput) (*domain.Entry, error)
	ListForScope(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error)
	SoftDelete(ctx context.Context, kind domain.ScopeKind, entryID int64, actor string) (*domain.Entry, error)
	Restore(ctx context.Context, kind domain.ScopeKind, entryID int64, actor string) (*domain.Entry, error)
	SetFrozen(ctx context.Context, kind domain.ScopeKind, entryID int64, frozen bool, actor string) (*domain.Entry, error)
	EditAmount(ctx context.Context, kind domain.ScopeKind, entryID int64, amount decimal.Decimal, actor string) (*domain.Entry, error)
	Recompute(ctx context.Context, scope domain.ScopeKey, actor string) (*usecase.RecomputeResult, error)
	RecomputeAll(ctx context.Context, actor string) (*usecase.BulkResult, error)
	Verify(ctx context.Context, scope domain.ScopeKey) (*usecase.ScopeReport, error)
	VerifyAll(ctx context.Context) (*usecase.ConsistencyReport, error)
	ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// BalanceService defines the balance reads LedgerHandler needs.
type BalanceService interface {
	GetCurrentBalance(ctx context.Context, scope domain.ScopeKey) (decimal.Decimal, error)
	GetBalanceAsOf(ctx context.Context, scope domain.ScopeKey, asOf time.Time) (decimal.Decimal, error)
	GetEffectiveBalance(ctx context.Context, scope domain.ScopeKey, asOf *time.Time) (decimal.Decimal, error)
	GetStatement(ctx context.Context, scope domain.ScopeKey, from, to time.Time) (*usecase.Statement, error)
	GetPool(ctx context.Context, currency string) (*domain.CurrencyPool, error)
	ListPools(ctx context.Context) ([]*domain.CurrencyPool, error)
}

// LedgerHandler handles ledger entry and balance HTTP requests.
type LedgerHandler struct {
	ledgerUC  LedgerService
	balanceUC BalanceService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService, balanceUC BalanceService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC, balanceUC: balanceUC}
}

// Append returns a handler recording an entry in the scope selected by scopeOf.
func (h *LedgerHandler) Append(scopeOf ScopeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeOf(r)
		if err != nil {
			writeDomainError(w, r, "invalid scope", err)
			return
		}

		var req dto.AppendEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}

		entry, err := h.ledgerUC.Append(r.Context(), req.ToUseCaseInput(scope, actor(r)))
		if err != nil {
			writeDomainError(w, r, "failed to append entry", err)
			return
		}

		writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
	}
}

// List returns a handler listing the scope's entries in ledger order.
// Query: from, to (RFC3339), include_deleted, exclude_frozen, limit, offset.
func (h *LedgerHandler) List(scopeOf ScopeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeOf(r)
		if err != nil {
			writeDomainError(w, r, "invalid scope", err)
			return
		}

		from, err := parseTimeQuery(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query", err.Error())
			return
		}
		to, err := parseTimeQuery(r, "to")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query", err.Error())
			return
		}

		entries, err := h.ledgerUC.ListForScope(r.Context(), usecase.ListEntriesInput{
			Scope:          scope,
			From:           from,
			To:             to,
			IncludeDeleted: parseBoolQuery(r, "include_deleted"),
			ExcludeFrozen:  parseBoolQuery(r, "exclude_frozen"),
			Limit:          parseIntQuery(r, "limit", 100),
			Offset:         parseIntQuery(r, "offset", 0),
		})
		if err != nil {
			writeDomainError(w, r, "failed to list entries", err)
			return
		}

		writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
	}
}

// Balance returns a handler reading the scope's balance. Without parameters
// it is the current balance; as_of replays history up to that instant and
// effective=true excludes frozen entries.
func (h *LedgerHandler) Balance(scopeOf ScopeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeOf(r)
		if err != nil {
			writeDomainError(w, r, "invalid scope", err)
			return
		}

		asOf, err := parseTimeQuery(r, "as_of")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query", err.Error())
			return
		}
		effective := parseBoolQuery(r, "effective")

		var balance decimal.Decimal
		switch {
		case effective:
			balance, err = h.balanceUC.GetEffectiveBalance(r.Context(), scope, asOf)
		case asOf != nil:
			balance, err = h.balanceUC.GetBalanceAsOf(r.Context(), scope, *asOf)
		default:
			balance, err = h.balanceUC.GetCurrentBalance(r.Context(), scope)
		}
		if err != nil {
			writeDomainError(w, r, "failed to get balance", err)
			return
		}

		writeJSON(w, http.StatusOK, dto.BalanceResponse{
			Scope:     dto.ScopeFromDomain(scope),
			Balance:   balance,
			AsOf:      asOf,
			Effective: effective,
		})
	}
}

// Statement returns a handler producing the scope's statement for [from, to].
func (h *LedgerHandler) Statement(scopeOf ScopeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeOf(r)
		if err != nil {
			writeDomainError(w, r, "invalid scope", err)
			return
		}

		from, err := parseTimeQuery(r, "from")
		if err != nil || from == nil {
			writeError(w, http.StatusBadRequest, "missing or invalid 'from' (use RFC3339)", "")
			return
		}
		to, err := parseTimeQuery(r, "to")
		if err != nil || to == nil {
			writeError(w, http.StatusBadRequest, "missing or invalid 'to' (use RFC3339)", "")
			return
		}

		stmt, err := h.balanceUC.GetStatement(r.Context(), scope, *from, *to)
		if err != nil {
			writeDomainError(w, r, "failed to build statement", err)
			return
		}

		writeJSON(w, http.StatusOK, dto.StatementFromUseCase(stmt))
	}
}

// GetPool returns a currency pool with its totals and risk level.
func (h *LedgerHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.balanceUC.GetPool(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		writeDomainError(w, r, "failed to get pool", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PoolFromDomain(pool))
}

// ListPools lists every currency pool.
func (h *LedgerHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.balanceUC.ListPools(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to list pools", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PoolsFromDomain(pools))
}

// entryRef reads /entries/{kind}/{id}.
func entryRef(r *http.Request) (domain.ScopeKind, int64, error) {
	kind, err := domain.ParseScopeKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, domain.ErrEntryNotFound
	}
	return kind, id, nil
}

// DeleteEntry soft-deletes an entry.
func (h *LedgerHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, err := entryRef(r)
	if err != nil {
		writeDomainError(w, r, "invalid entry reference", err)
		return
	}

	entry, err := h.ledgerUC.SoftDelete(r.Context(), kind, id, actor(r))
	if err != nil {
		writeDomainError(w, r, "failed to delete entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// RestoreEntry brings a soft-deleted entry back into the chain.
func (h *LedgerHandler) RestoreEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, err := entryRef(r)
	if err != nil {
		writeDomainError(w, r, "invalid entry reference", err)
		return
	}

	entry, err := h.ledgerUC.Restore(r.Context(), kind, id, actor(r))
	if err != nil {
		writeDomainError(w, r, "failed to restore entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// SetFrozen freezes or unfreezes an entry.
func (h *LedgerHandler) SetFrozen(w http.ResponseWriter, r *http.Request) {
	kind, id, err := entryRef(r)
	if err != nil {
		writeDomainError(w, r, "invalid entry reference", err)
		return
	}

	var req dto.SetFrozenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.ledgerUC.SetFrozen(r.Context(), kind, id, req.Frozen, actor(r))
	if err != nil {
		writeDomainError(w, r, "failed to update frozen flag", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// EditAmount replaces an entry's amount.
func (h *LedgerHandler) EditAmount(w http.ResponseWriter, r *http.Request) {
	kind, id, err := entryRef(r)
	if err != nil {
		writeDomainError(w, r, "invalid entry reference", err)
		return
	}

	var req dto.EditAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.ledgerUC.EditAmount(r.Context(), kind, id, req.Amount, actor(r))
	if err != nil {
		writeDomainError(w, r, "failed to edit amount", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Consistency checks one scope (?scope=<key>) or every scope.
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("scope"); raw != "" {
		scope, err := domain.ParseScopeKey(raw)
		if err != nil {
			writeDomainError(w, r, "invalid scope", err)
			return
		}
		report, err := h.ledgerUC.Verify(r.Context(), scope)
		if err != nil {
			writeDomainError(w, r, "failed to verify scope", err)
			return
		}
		writeJSON(w, http.StatusOK, dto.ScopeReportFromUseCase(report))
		return
	}

	report, err := h.ledgerUC.VerifyAll(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to verify ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromUseCase(report))
}

// Recompute rebuilds one scope, or every scope when the body names none.
func (h *LedgerHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req dto.RecomputeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	if req.Scope == "" {
		bulk, err := h.ledgerUC.RecomputeAll(r.Context(), actor(r))
		if err != nil {
			writeDomainError(w, r, "failed to recompute ledger", err)
			return
		}
		writeJSON(w, http.StatusOK, dto.BulkRecomputeFromUseCase(bulk))
		return
	}

	scope, err := domain.ParseScopeKey(req.Scope)
	if err != nil {
		writeDomainError(w, r, "invalid scope", err)
		return
	}

	result, err := h.ledgerUC.Recompute(r.Context(), scope, actor(r))
	if err != nil {
		writeDomainError(w, r, "failed to recompute scope", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecomputeFromUseCase(result))
}

// AuditLogs lists audit rows filtered by actor, action, scope_kind, resource_id.
func (h *LedgerHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := h.ledgerUC.ListAuditLogs(r.Context(), domain.AuditFilter{
		Actor:      q.Get("actor"),
		Action:     domain.AuditAction(q.Get("action")),
		ScopeKind:  domain.ScopeKind(q.Get("scope_kind")),
		ResourceID: q.Get("resource_id"),
		Limit:      parseIntQuery(r, "limit", 50),
		Offset:     parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list audit logs", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}
