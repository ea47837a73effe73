package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running cascades from blocking a scope
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultBalanceCacheTTL is how long current balances stay cached
	DefaultBalanceCacheTTL = 5 * time.Minute

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	defaultListLimit = 100
	maxListLimit     = 1000
)
