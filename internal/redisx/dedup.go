package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/events"
)

// Dedup skips events whose id this service already applied. The marker is
// written only after the handler succeeded, so a failed attempt is retried.
// Redis being down never blocks consumption: handlers are idempotent and
// the marker is only a shortcut.
func Dedup(rdb redis.Cmdable, service string, log *logrus.Entry) events.Middleware {
	return func(next events.Handler) events.Handler {
		return func(ctx context.Context, env events.Envelope) error {
			if env.EventID == "" {
				return next(ctx, env)
			}
			key := fmt.Sprintf(KeyDedup, service, env.EventID)
			n, err := rdb.Exists(ctx, key).Result()
			seen := n > 0
			if err != nil {
				log.WithError(err).Warn("dedup lookup failed")
			}
			if seen {
				log.WithField("event_id", env.EventID).Debug("duplicate event skipped")
				return nil
			}
			if err := next(ctx, env); err != nil {
				return err
			}
			if err := rdb.Set(ctx, key, "1", TTLDedup).Err(); err != nil {
				log.WithError(err).Warn("dedup mark failed")
			}
			return nil
		}
	}
}
