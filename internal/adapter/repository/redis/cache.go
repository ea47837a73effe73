package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/fxledger/internal/domain"
)

// setIfNewer stores a balance unless the cached one belongs to a later
// mirror version. Versions are microseconds since the epoch, 0 for a scope
// that had no mirror row yet.
var setIfNewer = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version'))
local version = tonumber(ARGV[2])
if current ~= nil and current > version then
  return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'version', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// BalanceCache implements usecase.BalanceCache using Redis. Each scope is a
// hash holding the mirror balance and the mirror version it was read at.
type BalanceCache struct {
	client redis.Cmdable
	prefix string
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client redis.Cmdable) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "fxledger:balance:",
	}
}

func (c *BalanceCache) key(scope domain.ScopeKey) string {
	return c.prefix + scope.String()
}

// GetBalance returns the cached balance of scope. A miss is not an error.
func (c *BalanceCache) GetBalance(ctx context.Context, scope domain.ScopeKey) (decimal.Decimal, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(scope), "balance").Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		// Drop the garbage so the next read repopulates from the mirror.
		_ = c.client.Del(ctx, c.key(scope)).Err()
		return decimal.Zero, false, fmt.Errorf("decode cached balance for %s: %w", scope, err)
	}

	return balance, true, nil
}

// SetBalance stores balance for scope as of the mirror's updatedAt. It is a
// no-op when the cache already holds a later version.
func (c *BalanceCache) SetBalance(ctx context.Context, scope domain.ScopeKey, balance decimal.Decimal, updatedAt time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("balance cache ttl must be positive, got %s", ttl)
	}
	return setIfNewer.Run(ctx, c.client, []string{c.key(scope)},
		balance.String(), mirrorVersion(updatedAt), ttl.Milliseconds()).Err()
}

// Invalidate removes the cached balance of scope.
func (c *BalanceCache) Invalidate(ctx context.Context, scope domain.ScopeKey) error {
	return c.client.Del(ctx, c.key(scope)).Err()
}

func mirrorVersion(updatedAt time.Time) int64 {
	if updatedAt.IsZero() {
		return 0
	}
	return updatedAt.UnixMicro()
}
