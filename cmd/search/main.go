package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-market-saga/internal/app"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/httpx"
	"github.com/ariefcatur/go-market-saga/internal/redisx"
	"github.com/ariefcatur/go-market-saga/internal/replica"
)

func main() {
	app.Main(app.Command(events.TopicSearch, "searches the replicated product catalogue", setup))
}

func setup(_ context.Context, rt *app.Runtime, mux *chi.Mux, router *events.Router, _ *errgroup.Group) error {
	store := &replica.PGStore{DB: rt.DB}
	cache := redisx.NewSearchCache(rt.Redis, rt.Config.SearchCacheTTL)
	replica.NewConsumer(store, cache, rt.Log).RegisterAll(router)

	searcher := replica.NewSearcher(store, cache, rt.Log)
	(&httpx.SearchHandler{Searcher: searcher, Log: rt.Log}).Register(mux, httpx.RequireAuth(rt.Identifier()))
	return nil
}
