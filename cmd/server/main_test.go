package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/config"
	"github.com/iho/fxledger/internal/infrastructure/eventpublisher"
)

func TestNewRateLimiterDisabledByDefault(t *testing.T) {
	assert.Nil(t, newRateLimiter(&config.Config{}))
	assert.NotNil(t, newRateLimiter(&config.Config{RateLimitRPS: 5, RateLimitBurst: 10}))
}

func TestNewHTTPServerUsesConfig(t *testing.T) {
	cfg := &config.Config{
		HTTPPort:         "9090",
		HTTPReadTimeout:  2 * time.Second,
		HTTPWriteTimeout: 3 * time.Second,
		HTTPIdleTimeout:  4 * time.Second,
	}

	srv := newHTTPServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.ReadTimeout)
	assert.Equal(t, 3*time.Second, srv.WriteTimeout)
	assert.Equal(t, 4*time.Second, srv.IdleTimeout)
}

func TestNewPublisherFallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	pub, closeFn, err := newPublisher(&config.Config{}, zerolog.New(&buf))
	require.NoError(t, err)
	defer closeFn()

	_, ok := pub.(*eventpublisher.LogPublisher)
	require.True(t, ok, "expected log publisher, got %T", pub)

	err = pub.Publish(context.Background(), &domain.OutboxEvent{
		ID:        "evt-1",
		EventType: domain.EventTypeEntryAppended,
		Payload:   map[string]any{"amount": "10"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "evt-1")
}

func TestPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ping := pingRedis(client)
	require.NoError(t, ping(context.Background()))

	mr.Close()
	assert.Error(t, ping(context.Background()))
}
