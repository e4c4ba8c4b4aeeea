package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/logx"
)

// unreachable points at a closed port so every command fails fast.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestDedupFallsThroughWhenRedisIsDown(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	calls := 0
	h := Dedup(rdb, "search", logx.Discard())(func(context.Context, events.Envelope) error {
		calls++
		return nil
	})

	env := events.Envelope{EventID: "e-1", EventType: events.SellProduct}
	assert.NoError(t, h(context.Background(), env))
	assert.NoError(t, h(context.Background(), env))
	assert.Equal(t, 2, calls)
}

func TestDedupKeepsHandlerError(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	boom := errors.New("db down")
	h := Dedup(rdb, "product", logx.Discard())(func(context.Context, events.Envelope) error { return boom })

	assert.ErrorIs(t, h(context.Background(), events.Envelope{EventID: "e-2"}), boom)
}
