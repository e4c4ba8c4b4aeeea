package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-market-saga/internal/app"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/httpx"
	"github.com/ariefcatur/go-market-saga/internal/product"
)

func main() {
	app.Main(app.Command(events.TopicProduct, "owns the product catalogue and its lifecycle", setup))
}

func setup(_ context.Context, rt *app.Runtime, mux *chi.Mux, router *events.Router, _ *errgroup.Group) error {
	svc := product.NewService(&product.PGStore{DB: rt.DB}, rt.Events, rt.Log)
	product.NewConsumer(svc, rt.Log).Register(router)
	(&httpx.ProductsHandler{Products: svc, Log: rt.Log}).Register(mux, httpx.RequireAuth(rt.Identifier()))
	return nil
}
