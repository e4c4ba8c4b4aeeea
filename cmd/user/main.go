package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-market-saga/internal/app"
	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/httpx"
	"github.com/ariefcatur/go-market-saga/internal/users"
)

func main() {
	app.Main(app.Command(events.TopicUser, "signs users up and in and validates their tokens", setup))
}

// The user service decides tokens itself; it neither calls out nor
// consumes events yet.
func setup(_ context.Context, rt *app.Runtime, mux *chi.Mux, _ *events.Router, _ *errgroup.Group) error {
	secret, err := rt.Config.SigningSecret()
	if err != nil {
		return err
	}
	svc := users.NewService(&users.PGStore{DB: rt.DB}, auth.NewIssuer(secret, rt.Config.JWTExpiresIn))
	validator := auth.NewValidator(secret, svc)

	(&httpx.UsersHandler{Users: svc, Validator: validator, Log: rt.Log}).Register(mux, httpx.RequireAuth(validator))
	return nil
}
