package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// connectAttempts bounds how often the initial ping is retried.
const connectAttempts = 3

// NewClient parses redisURL and returns a client that has answered a ping.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 100 * time.Millisecond
	exp.MaxInterval = time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(exp, connectAttempts-1), ctx)

	ping := func() error {
		return client.Ping(ctx).Err()
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("addr", opts.Addr).Dur("backoff", wait).Msg("redis not ready, retrying")
	}

	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected to redis")
	return client, nil
}
