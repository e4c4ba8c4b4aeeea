package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-market-saga/internal/app"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/httpx"
	"github.com/ariefcatur/go-market-saga/internal/orders"
	"github.com/ariefcatur/go-market-saga/internal/postgres"
	"github.com/ariefcatur/go-market-saga/internal/replica"
)

func main() {
	app.Main(app.Command(events.TopicOrder, "places, pays and cancels orders", setup))
}

func setup(ctx context.Context, rt *app.Runtime, mux *chi.Mux, router *events.Router, g *errgroup.Group) error {
	products := &replica.PGStore{DB: rt.DB}
	replica.NewConsumer(products, nil, rt.Log).RegisterNewProduct(router)

	svc := orders.NewService(
		&orders.PGRepository{DB: rt.DB},
		orders.ReplicaInventory{Store: products},
		postgres.Scope{DB: rt.DB},
		rt.Events,
		rt.Log,
	)
	(&httpx.OrdersHandler{Orders: svc, Log: rt.Log}).Register(mux, httpx.RequireAuth(rt.Identifier()))

	if ttl := rt.Config.OrderPendingTTL; ttl > 0 {
		g.Go(func() error {
			expireStale(ctx, svc, ttl, rt.Log)
			return nil
		})
	}
	return nil
}

func expireStale(ctx context.Context, svc *orders.Service, ttl time.Duration, log *logrus.Entry) {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	log.WithField("ttl", ttl.String()).Info("stale order expiry enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := svc.ExpireStale(ctx, ttl); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("expire stale orders")
			}
		}
	}
}
