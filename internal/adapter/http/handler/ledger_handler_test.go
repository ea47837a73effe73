package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
)

// stubLedger implements LedgerService; unset methods panic via the nil embed.
type stubLedger struct {
	LedgerService

	appendFn    func(input usecase.AppendInput) (*domain.Entry, error)
	setFrozenFn func(kind domain.ScopeKind, id int64, frozen bool, actor string) (*domain.Entry, error)
	deleteFn    func(kind domain.ScopeKind, id int64, actor string) (*domain.Entry, error)
	recomputeFn func(scope domain.ScopeKey) (*usecase.RecomputeResult, error)
	bulkFn      func() (*usecase.BulkResult, error)
	verifyFn    func(scope domain.ScopeKey) (*usecase.ScopeReport, error)
	auditFn     func(filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

func (s *stubLedger) Append(_ context.Context, input usecase.AppendInput) (*domain.Entry, error) {
	return s.appendFn(input)
}

func (s *stubLedger) SetFrozen(_ context.Context, kind domain.ScopeKind, id int64, frozen bool, actor string) (*domain.Entry, error) {
	return s.setFrozenFn(kind, id, frozen, actor)
}

func (s *stubLedger) SoftDelete(_ context.Context, kind domain.ScopeKind, id int64, actor string) (*domain.Entry, error) {
	return s.deleteFn(kind, id, actor)
}

func (s *stubLedger) Recompute(_ context.Context, scope domain.ScopeKey, _ string) (*usecase.RecomputeResult, error) {
	return s.recomputeFn(scope)
}

func (s *stubLedger) RecomputeAll(context.Context, string) (*usecase.BulkResult, error) {
	return s.bulkFn()
}

func (s *stubLedger) Verify(_ context.Context, scope domain.ScopeKey) (*usecase.ScopeReport, error) {
	return s.verifyFn(scope)
}

func (s *stubLedger) ListAuditLogs(_ context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	return s.auditFn(filter)
}

type stubBalances struct {
	BalanceService

	current   decimal.Decimal
	asOf      decimal.Decimal
	effective decimal.Decimal
	gotAsOf   *time.Time
}

func (s *stubBalances) GetCurrentBalance(context.Context, domain.ScopeKey) (decimal.Decimal, error) {
	return s.current, nil
}

func (s *stubBalances) GetBalanceAsOf(_ context.Context, _ domain.ScopeKey, at time.Time) (decimal.Decimal, error) {
	s.gotAsOf = &at
	return s.asOf, nil
}

func (s *stubBalances) GetEffectiveBalance(_ context.Context, _ domain.ScopeKey, at *time.Time) (decimal.Decimal, error) {
	s.gotAsOf = at
	return s.effective, nil
}

func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(ActorHeader, "teller-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLedgerHandler_AppendPassesScopeAndActor(t *testing.T) {
	var got usecase.AppendInput
	ledger := &stubLedger{appendFn: func(input usecase.AppendInput) (*domain.Entry, error) {
		got = input
		return &domain.Entry{ID: 9, Scope: input.Scope, Amount: input.Amount, Type: input.Type}, nil
	}}
	h := NewLedgerHandler(ledger, &stubBalances{})

	rec := serve(t, "/customers/{id}/ledgers/{currency}/entries", h.Append(CustomerScope),
		http.MethodPost, "/customers/C1/ledgers/usd/entries",
		`{"amount":"-12.50","description":"cash out"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "customer:C1:USD", got.Scope.String())
	assert.Equal(t, "teller-1", got.Actor)
	assert.Equal(t, domain.TransactionManual, got.Type)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-12.5")))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 9, body["id"])
}

func TestLedgerHandler_AppendMapsDomainErrors(t *testing.T) {
	ledger := &stubLedger{appendFn: func(usecase.AppendInput) (*domain.Entry, error) {
		return nil, domain.ErrBankAccountNotFound
	}}
	h := NewLedgerHandler(ledger, &stubBalances{})

	rec := serve(t, "/bank-accounts/{id}/entries", h.Append(BankAccountScope),
		http.MethodPost, "/bank-accounts/nope/entries", `{"amount":"1"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerHandler_AppendRejectsBadBody(t *testing.T) {
	h := NewLedgerHandler(&stubLedger{}, &stubBalances{})

	rec := serve(t, "/pools/{currency}/entries", h.Append(PoolScope),
		http.MethodPost, "/pools/USD/entries", `{"amount":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_BalanceVariants(t *testing.T) {
	balances := &stubBalances{
		current:   decimal.NewFromInt(100),
		asOf:      decimal.NewFromInt(60),
		effective: decimal.NewFromInt(80),
	}
	h := NewLedgerHandler(&stubLedger{}, balances)
	pattern := "/pools/{currency}/balance"

	tests := []struct {
		name      string
		query     string
		balance   string
		effective bool
	}{
		{"current", "", "100", false},
		{"as of", "?as_of=2024-01-01T00:00:00Z", "60", false},
		{"effective", "?effective=true", "80", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, pattern, h.Balance(PoolScope), http.MethodGet, "/pools/USD/balance"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var body struct {
				Balance   string `json:"balance"`
				Effective bool   `json:"effective"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.balance, body.Balance)
			assert.Equal(t, tt.effective, body.Effective)
		})
	}

	rec := serve(t, pattern, h.Balance(PoolScope), http.MethodGet, "/pools/USD/balance?as_of=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_StatementRequiresRange(t *testing.T) {
	h := NewLedgerHandler(&stubLedger{}, &stubBalances{})

	rec := serve(t, "/pools/{currency}/statement", h.Statement(PoolScope),
		http.MethodGet, "/pools/USD/statement?from=2024-01-01T00:00:00Z", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_EntryReference(t *testing.T) {
	var gotKind domain.ScopeKind
	var gotID int64
	ledger := &stubLedger{
		setFrozenFn: func(kind domain.ScopeKind, id int64, frozen bool, actor string) (*domain.Entry, error) {
			gotKind, gotID = kind, id
			if kind == domain.ScopeCurrencyPool {
				return nil, domain.ErrFreezeNotSupported
			}
			return &domain.Entry{ID: id, IsFrozen: frozen}, nil
		},
	}
	h := NewLedgerHandler(ledger, &stubBalances{})
	pattern := "/entries/{kind}/{id}/frozen"

	rec := serve(t, pattern, h.SetFrozen, http.MethodPut, "/entries/bank-account/42/frozen", `{"frozen":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ScopeBankAccount, gotKind)
	assert.EqualValues(t, 42, gotID)

	rec = serve(t, pattern, h.SetFrozen, http.MethodPut, "/entries/currency_pool/1/frozen", `{"frozen":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, pattern, h.SetFrozen, http.MethodPut, "/entries/customer/abc/frozen", `{"frozen":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, pattern, h.SetFrozen, http.MethodPut, "/entries/wallet/1/frozen", `{"frozen":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_DeleteAlreadyDeleted(t *testing.T) {
	ledger := &stubLedger{deleteFn: func(domain.ScopeKind, int64, string) (*domain.Entry, error) {
		return nil, domain.ErrEntryAlreadyDeleted
	}}
	h := NewLedgerHandler(ledger, &stubBalances{})

	rec := serve(t, "/entries/{kind}/{id}", h.DeleteEntry, http.MethodDelete, "/entries/customer/3", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerHandler_RecomputeOneOrAll(t *testing.T) {
	var recomputed string
	ledger := &stubLedger{
		recomputeFn: func(scope domain.ScopeKey) (*usecase.RecomputeResult, error) {
			recomputed = scope.String()
			return &usecase.RecomputeResult{Scope: scope, Balance: decimal.NewFromInt(5), Changed: 2}, nil
		},
		bulkFn: func() (*usecase.BulkResult, error) {
			return &usecase.BulkResult{}, nil
		},
	}
	h := NewLedgerHandler(ledger, &stubBalances{})

	rec := serve(t, "/ledger/recompute", h.Recompute, http.MethodPost, "/ledger/recompute", `{"scope":"currency_pool:EUR"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "currency_pool:EUR", recomputed)
	assert.Contains(t, rec.Body.String(), `"changed":2`)

	rec = serve(t, "/ledger/recompute", h.Recompute, http.MethodPost, "/ledger/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"results"`)

	rec = serve(t, "/ledger/recompute", h.Recompute, http.MethodPost, "/ledger/recompute", `{"scope":"nonsense"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerHandler_ConsistencySingleScope(t *testing.T) {
	ledger := &stubLedger{verifyFn: func(scope domain.ScopeKey) (*usecase.ScopeReport, error) {
		return &usecase.ScopeReport{Scope: scope, Mirror: decimal.NewFromInt(1), Tail: decimal.NewFromInt(1), HasMirror: true}, nil
	}}
	h := NewLedgerHandler(ledger, &stubBalances{})

	rec := serve(t, "/ledger/consistency", h.Consistency, http.MethodGet, "/ledger/consistency?scope=bank_account:B1", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "bank_account:B1")
}

func TestLedgerHandler_AuditLogsFilter(t *testing.T) {
	var got domain.AuditFilter
	ledger := &stubLedger{auditFn: func(filter domain.AuditFilter) ([]*domain.AuditLog, error) {
		got = filter
		return []*domain.AuditLog{}, nil
	}}
	h := NewLedgerHandler(ledger, &stubBalances{})

	rec := serve(t, "/audit-logs", h.AuditLogs, http.MethodGet, "/audit-logs?actor=ops&scope_kind=customer&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", got.Actor)
	assert.Equal(t, domain.ScopeCustomer, got.ScopeKind)
	assert.Equal(t, 5, got.Limit)
}
