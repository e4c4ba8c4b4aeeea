package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/orders"
	"github.com/ariefcatur/go-market-saga/internal/product"
	"github.com/ariefcatur/go-market-saga/internal/users"
)

var (
	errInvalidBody = errors.New("invalid body")
	errInvalidID   = errors.New("invalid id")
)

// clientErrors are reported verbatim with 400: bad input and failed
// preconditions alike.
var clientErrors = []error{
	errInvalidBody,
	errInvalidID,
	orders.ErrProductNotAvailable,
	orders.ErrOrderNotFound,
	orders.ErrInvalidAmount,
	product.ErrInvalidInput,
	product.ErrNotAvailable,
	product.ErrConflict,
	users.ErrMissingCredentials,
	users.ErrEmailInUse,
	users.ErrPasswordTooLong,
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": target.Error()})
			return
		}
	}
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, users.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func listQuery(r *http.Request) listing.Query {
	v := r.URL.Query()
	page, _ := strconv.Atoi(v.Get("page"))
	onPage, _ := strconv.Atoi(v.Get("onpage"))
	return listing.Query{Page: page, OnPage: onPage, Q: v.Get("q")}.Normalize()
}
