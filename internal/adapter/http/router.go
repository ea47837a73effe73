package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/fxledger/internal/adapter/http/handler"
	"github.com/iho/fxledger/internal/adapter/http/middleware"
	"github.com/iho/fxledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	OwnerHandler  *handler.OwnerHandler
	LedgerHandler *handler.LedgerHandler
	HealthHandler *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration

	// Optional.
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Logger         *zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	owners := cfg.OwnerHandler
	ledger := cfg.LedgerHandler

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", owners.CreateCustomer)
			r.Get("/", owners.ListCustomers)
			r.Get("/{id}", owners.GetCustomer)
			r.Get("/{id}/balances", owners.ListCustomerBalances)

			r.Route("/{id}/ledgers/{currency}", func(r chi.Router) {
				r.Post("/entries", ledger.Append(handler.CustomerScope))
				r.Get("/entries", ledger.List(handler.CustomerScope))
				r.Get("/balance", ledger.Balance(handler.CustomerScope))
				r.Get("/statement", ledger.Statement(handler.CustomerScope))
			})
		})

		r.Route("/bank-accounts", func(r chi.Router) {
			r.Post("/", owners.CreateBankAccount)
			r.Get("/", owners.ListBankAccounts)
			r.Get("/{id}", owners.GetBankAccount)
			r.Post("/{id}/entries", ledger.Append(handler.BankAccountScope))
			r.Get("/{id}/entries", ledger.List(handler.BankAccountScope))
			r.Get("/{id}/balance", ledger.Balance(handler.BankAccountScope))
			r.Get("/{id}/statement", ledger.Statement(handler.BankAccountScope))
		})

		r.Route("/pools", func(r chi.Router) {
			r.Get("/", ledger.ListPools)
			r.Get("/{currency}", ledger.GetPool)
			r.Post("/{currency}/entries", ledger.Append(handler.PoolScope))
			r.Get("/{currency}/entries", ledger.List(handler.PoolScope))
			r.Get("/{currency}/balance", ledger.Balance(handler.PoolScope))
			r.Get("/{currency}/statement", ledger.Statement(handler.PoolScope))
		})

		r.Route("/entries/{kind}/{id}", func(r chi.Router) {
			r.Delete("/", ledger.DeleteEntry)
			r.Post("/restore", ledger.RestoreEntry)
			r.Put("/frozen", ledger.SetFrozen)
			r.Patch("/amount", ledger.EditAmount)
		})

		r.Get("/ledger/consistency", ledger.Consistency)
		r.Post("/ledger/recompute", ledger.Recompute)
		r.Get("/audit-logs", ledger.AuditLogs)
	})

	return r
}
