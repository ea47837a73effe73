package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/usecase"
)

// CustomerResponse represents a customer in API responses.
type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerFromDomain converts a domain customer to response.
func CustomerFromDomain(c *domain.Customer) *CustomerResponse {
	return &CustomerResponse{ID: c.ID, Name: c.Name, Phone: c.Phone, CreatedAt: c.CreatedAt}
}

// CustomersFromDomain converts domain customers to responses.
func CustomersFromDomain(customers []*domain.Customer) []*CustomerResponse {
	result := make([]*CustomerResponse, len(customers))
	for i, c := range customers {
		result[i] = CustomerFromDomain(c)
	}
	return result
}

// BankAccountResponse represents a bank account in API responses.
type BankAccountResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	BankName      string    `json:"bank_name,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// BankAccountFromDomain converts a domain bank account to response.
func BankAccountFromDomain(b *domain.BankAccount) *BankAccountResponse {
	return &BankAccountResponse{
		ID:            b.ID,
		Name:          b.Name,
		BankName:      b.BankName,
		AccountNumber: b.AccountNumber,
		Currency:      b.Currency,
		CreatedAt:     b.CreatedAt,
	}
}

// BankAccountsFromDomain converts domain bank accounts to responses.
func BankAccountsFromDomain(accounts []*domain.BankAccount) []*BankAccountResponse {
	result := make([]*BankAccountResponse, len(accounts))
	for i, b := range accounts {
		result[i] = BankAccountFromDomain(b)
	}
	return result
}

// ScopeResponse identifies a ledger.
type ScopeResponse struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	OwnerID  string `json:"owner_id,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// ScopeFromDomain converts a scope key to response.
func ScopeFromDomain(k domain.ScopeKey) ScopeResponse {
	return ScopeResponse{Key: k.String(), Kind: string(k.Kind), OwnerID: k.OwnerID, Currency: k.Currency}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID                int64           `json:"id"`
	Scope             ScopeResponse   `json:"scope"`
	Type              string          `json:"type"`
	ReferenceID       *string         `json:"reference_id,omitempty"`
	TransactionNumber *string         `json:"transaction_number,omitempty"`
	TransactionDate   time.Time       `json:"transaction_date"`
	BalanceBefore     decimal.Decimal `json:"balance_before"`
	Amount            decimal.Decimal `json:"amount"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	Description       string          `json:"description,omitempty"`
	CreatedBy         string          `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	IsDeleted         bool            `json:"is_deleted"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy         *string         `json:"deleted_by,omitempty"`
	IsFrozen          bool            `json:"is_frozen"`
}

// EntryFromDomain converts a domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:                e.ID,
		Scope:             ScopeFromDomain(e.Scope),
		Type:              string(e.Type),
		ReferenceID:       e.ReferenceID,
		TransactionNumber: e.TransactionNumber,
		TransactionDate:   e.TransactionDate,
		BalanceBefore:     e.BalanceBefore,
		Amount:            e.Amount,
		BalanceAfter:      e.BalanceAfter,
		Description:       e.Description,
		CreatedBy:         e.CreatedBy,
		CreatedAt:         e.CreatedAt,
		IsDeleted:         e.IsDeleted,
		DeletedAt:         e.DeletedAt,
		DeletedBy:         e.DeletedBy,
		IsFrozen:          e.IsFrozen,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// BalanceResponse is a single balance read.
type BalanceResponse struct {
	Scope     ScopeResponse   `json:"scope"`
	Balance   decimal.Decimal `json:"balance"`
	AsOf      *time.Time      `json:"as_of,omitempty"`
	Effective bool            `json:"effective"`
}

// MirrorResponse is a stored current balance.
type MirrorResponse struct {
	Scope     ScopeResponse   `json:"scope"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MirrorsFromDomain converts mirrors to responses.
func MirrorsFromDomain(mirrors []*domain.Mirror) []*MirrorResponse {
	result := make([]*MirrorResponse, len(mirrors))
	for i, m := range mirrors {
		result[i] = &MirrorResponse{Scope: ScopeFromDomain(m.Scope), Balance: m.Balance, UpdatedAt: m.UpdatedAt}
	}
	return result
}

// StatementResponse is a scope's activity over a date range.
type StatementResponse struct {
	Scope          ScopeResponse    `json:"scope"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance decimal.Decimal  `json:"closing_balance"`
	Entries        []*EntryResponse `json:"entries"`
}

// StatementFromUseCase converts a statement to response.
func StatementFromUseCase(s *usecase.Statement) *StatementResponse {
	return &StatementResponse{
		Scope:          ScopeFromDomain(s.Scope),
		From:           s.From,
		To:             s.To,
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
		Entries:        EntriesFromDomain(s.Entries),
	}
}

// PoolResponse represents a currency pool in API responses.
type PoolResponse struct {
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	TotalBought decimal.Decimal `json:"total_bought"`
	TotalSold   decimal.Decimal `json:"total_sold"`
	RiskLevel   string          `json:"risk_level"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PoolFromDomain converts a domain pool to response.
func PoolFromDomain(p *domain.CurrencyPool) *PoolResponse {
	return &PoolResponse{
		Currency:    p.Currency,
		Balance:     p.Balance,
		TotalBought: p.TotalBought,
		TotalSold:   p.TotalSold,
		RiskLevel:   string(p.RiskLevel()),
		UpdatedAt:   p.UpdatedAt,
	}
}

// PoolsFromDomain converts domain pools to responses.
func PoolsFromDomain(pools []*domain.CurrencyPool) []*PoolResponse {
	result := make([]*PoolResponse, len(pools))
	for i, p := range pools {
		result[i] = PoolFromDomain(p)
	}
	return result
}

// ScopeReportResponse is one scope's consistency check.
type ScopeReportResponse struct {
	Scope      ScopeResponse      `json:"scope"`
	Consistent bool               `json:"consistent"`
	Mirror     decimal.Decimal    `json:"mirror"`
	Tail       decimal.Decimal    `json:"tail"`
	Entries    int                `json:"entries"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// ScopeReportFromUseCase converts a scope report to response.
func ScopeReportFromUseCase(r *usecase.ScopeReport) *ScopeReportResponse {
	return &ScopeReportResponse{
		Scope:      ScopeFromDomain(r.Scope),
		Consistent: r.Consistent(),
		Mirror:     r.Mirror,
		Tail:       r.Tail,
		Entries:    r.Entries,
		Violations: r.Violations,
	}
}

// ConsistencyResponse summarizes a check over every scope.
type ConsistencyResponse struct {
	CheckedAt    time.Time              `json:"checked_at"`
	Consistent   bool                   `json:"consistent"`
	Scopes       int                    `json:"scopes"`
	Inconsistent []*ScopeReportResponse `json:"inconsistent"`
}

// ConsistencyFromUseCase converts a consistency report to response.
func ConsistencyFromUseCase(r *usecase.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		CheckedAt:    r.CheckedAt,
		Consistent:   r.Consistent(),
		Scopes:       r.Scopes,
		Inconsistent: make([]*ScopeReportResponse, len(r.Inconsistent)),
	}
	for i, s := range r.Inconsistent {
		resp.Inconsistent[i] = ScopeReportFromUseCase(s)
	}
	return resp
}

// RecomputeResponse reports one rebuilt scope.
type RecomputeResponse struct {
	Scope        ScopeResponse   `json:"scope"`
	MirrorBefore decimal.Decimal `json:"mirror_before"`
	Balance      decimal.Decimal `json:"balance"`
	Changed      int             `json:"changed"`
	Walked       int             `json:"walked"`
}

// RecomputeFromUseCase converts a recompute result to response.
func RecomputeFromUseCase(r *usecase.RecomputeResult) *RecomputeResponse {
	return &RecomputeResponse{
		Scope:        ScopeFromDomain(r.Scope),
		MirrorBefore: r.MirrorBefore,
		Balance:      r.Balance,
		Changed:      r.Changed,
		Walked:       r.Walked,
	}
}

// ScopeFailureResponse is a scope a bulk recompute could not rebuild.
type ScopeFailureResponse struct {
	Scope ScopeResponse `json:"scope"`
	Error string        `json:"error"`
}

// BulkRecomputeResponse reports a recompute over every scope.
type BulkRecomputeResponse struct {
	Results  []*RecomputeResponse    `json:"results"`
	Failures []*ScopeFailureResponse `json:"failures"`
}

// BulkRecomputeFromUseCase converts a bulk result to response.
func BulkRecomputeFromUseCase(b *usecase.BulkResult) *BulkRecomputeResponse {
	resp := &BulkRecomputeResponse{
		Results:  make([]*RecomputeResponse, len(b.Results)),
		Failures: make([]*ScopeFailureResponse, len(b.Failures)),
	}
	for i, r := range b.Results {
		resp.Results[i] = RecomputeFromUseCase(r)
	}
	for i, f := range b.Failures {
		resp.Failures[i] = &ScopeFailureResponse{Scope: ScopeFromDomain(f.Scope), Error: f.Err.Error()}
	}
	return resp
}

// AuditLogResponse represents an audit row in API responses.
type AuditLogResponse struct {
	ID           string      `json:"id"`
	Actor        string      `json:"actor"`
	Action       string      `json:"action"`
	ScopeKind    string      `json:"scope_kind"`
	ResourceID   string      `json:"resource_id"`
	RequestID    string      `json:"request_id,omitempty"`
	BeforeState  domain.JSON `json:"before_state,omitempty"`
	AfterState   domain.JSON `json:"after_state,omitempty"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AuditLogsFromDomain converts audit rows to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	result := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		result[i] = &AuditLogResponse{
			ID:           l.ID,
			Actor:        l.Actor,
			Action:       string(l.Action),
			ScopeKind:    string(l.ScopeKind),
			ResourceID:   l.ResourceID,
			RequestID:    l.RequestID,
			BeforeState:  l.BeforeState,
			AfterState:   l.AfterState,
			Status:       string(l.Status),
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		}
	}
	return result
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
