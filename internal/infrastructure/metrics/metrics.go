package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesAppended     *prometheus.CounterVec
	Mutations           *prometheus.CounterVec
	MutationDuration    *prometheus.HistogramVec
	CascadeLength       *prometheus.HistogramVec
	LedgerCorruptions   *prometheus.CounterVec
	ConcurrencyConflict *prometheus.CounterVec
	PoolBalance         *prometheus.GaugeVec

	// Projection metrics
	BalanceReads *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// Database metrics
	DBConnections *prometheus.GaugeVec
}

// NewWithRegisterer creates all metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxledger_entries_appended_total",
				Help: "Total number of ledger entries appended",
			},
			[]string{"scope_kind", "transaction_type"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxledger_mutations_total",
				Help: "Total ledger mutations by operation and outcome",
			},
			[]string{"operation", "scope_kind", "status"},
		),
		MutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxledger_mutation_duration_seconds",
				Help:    "Duration of ledger mutations including cascade",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "scope_kind"},
		),
		CascadeLength: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxledger_cascade_length",
				Help:    "Number of entries walked by a cascade",
				Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"scope_kind"},
		),
		LedgerCorruptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxledger_ledger_corruptions_total",
				Help: "Total invariant violations detected",
			},
			[]string{"scope_kind"},
		),
		ConcurrencyConflict: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxledger_concurrency_conflicts_total",
				Help: "Total mutations abandoned after exhausting retries",
			},
			[]string{"scope_kind"},
		),
		PoolBalance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxledger_pool_balance",
				Help: "Current currency pool balance",
			},
			[]string{"currency"},
		),
		BalanceReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxledger_balance_reads_total",
				Help: "Current balance reads by source",
			},
			[]string{"source"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxledger_events_published_total",
				Help: "Outbox events published by status",
			},
			[]string{"event_type", "status"},
		),
		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxledger_db_connections",
				Help: "Database pool connections by state",
			},
			[]string{"state"},
		),
	}
}

// The helpers below accept a nil receiver so callers can run without metrics.

// ObserveMutation records one finished ledger mutation.
func (m *Metrics) ObserveMutation(operation, scopeKind string, walked int, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.Mutations.WithLabelValues(operation, scopeKind, status).Inc()
	if err == nil {
		m.MutationDuration.WithLabelValues(operation, scopeKind).Observe(duration.Seconds())
		m.CascadeLength.WithLabelValues(scopeKind).Observe(float64(walked))
	}
}

// ObserveAppend counts an appended entry.
func (m *Metrics) ObserveAppend(scopeKind, transactionType string) {
	if m == nil {
		return
	}
	m.EntriesAppended.WithLabelValues(scopeKind, transactionType).Inc()
}

// ObserveCorruption counts a detected invariant violation.
func (m *Metrics) ObserveCorruption(scopeKind string) {
	if m == nil {
		return
	}
	m.LedgerCorruptions.WithLabelValues(scopeKind).Inc()
}

// ObserveConflict counts a mutation abandoned on concurrency conflicts.
func (m *Metrics) ObserveConflict(scopeKind string) {
	if m == nil {
		return
	}
	m.ConcurrencyConflict.WithLabelValues(scopeKind).Inc()
}

// SetPoolBalance publishes a pool's current balance.
func (m *Metrics) SetPoolBalance(currency string, balance float64) {
	if m == nil {
		return
	}
	m.PoolBalance.WithLabelValues(currency).Set(balance)
}

// ObserveBalanceRead counts a current-balance read served from source.
func (m *Metrics) ObserveBalanceRead(source string) {
	if m == nil {
		return
	}
	m.BalanceReads.WithLabelValues(source).Inc()
}

// ObservePublish counts an outbox publish attempt.
func (m *Metrics) ObservePublish(eventType string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}

// SetDBConnections publishes pool connection counts.
func (m *Metrics) SetDBConnections(total, idle int32) {
	if m == nil {
		return
	}
	m.DBConnections.WithLabelValues("total").Set(float64(total))
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
}
