package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/authclient"
	"github.com/ariefcatur/go-market-saga/internal/users"
)

// TokenValidator decides tokens for the other services; auth.Validator.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (auth.Result, error)
}

type UsersHandler struct {
	Users     *users.Service
	Validator TokenValidator
	Log       *logrus.Entry
}

type validateTokenReq struct {
	Token string `json:"token"`
}

func (h *UsersHandler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/user/sign-up", h.signUp)
	r.Post("/user/sign-in", h.signIn)
	r.With(requireAuth).Get("/user", h.list)
	r.Post(authclient.ValidatePath, h.validateToken)
}

func (h *UsersHandler) signUp(w http.ResponseWriter, r *http.Request) {
	var in users.Credentials
	if err := decode(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	s, err := h.Users.SignUp(r.Context(), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *UsersHandler) signIn(w http.ResponseWriter, r *http.Request) {
	var in users.Credentials
	if err := decode(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	s, err := h.Users.SignIn(r.Context(), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.Users.List(r.Context(), listQuery(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// validateToken answers 200 for every decided outcome, valid or not; only
// a failing user store is a 5xx, which callers treat as a failed validation.
func (h *UsersHandler) validateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Validator.Validate(r.Context(), req.Token)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
