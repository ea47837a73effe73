package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/fxledger/internal/domain"
)

// SQLSTATEs that another attempt can clear.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
)

// Retrier implements usecase.Retrier for ledger mutations.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
}

// NewRetrier allows three re-runs within ten seconds.
func NewRetrier() *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     1 * time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          log.Logger,
	}
}

// WithMaxRetries overrides how many times a conflicting operation is re-run.
func (r *Retrier) WithMaxRetries(n int) *Retrier {
	if n >= 0 {
		r.maxRetries = n
	}
	return r
}

// WithLogger sets the logger used to report retries.
func (r *Retrier) WithLogger(logger zerolog.Logger) *Retrier {
	r.logger = logger
	return r
}

// Retry re-runs operation while it fails with a lock or serialization
// conflict. A conflict that outlives maxRetries re-runs is reported as
// domain.ErrConcurrencyConflict wrapping the last PostgreSQL error.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval
	policy.MaxInterval = r.maxInterval
	policy.MaxElapsedTime = r.maxElapsedTime

	attempt := func() error {
		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	retries := 0
	notify := func(err error, wait time.Duration) {
		retries++
		r.logger.Warn().
			Err(err).
			Str("pg_code", pgCode(err)).
			Int("retry", retries).
			Dur("wait", wait).
			Msg("scope write conflicted, retrying")
	}

	err := backoff.RetryNotify(attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxRetries)), ctx),
		notify)
	if err != nil && isRetryableError(err) {
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}
	return err
}

func isRetryableError(err error) bool {
	switch pgCode(err) {
	case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
		return true
	}
	return false
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
