package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/orders"
)

type OrdersHandler struct {
	Orders *orders.Service
	Log    *logrus.Entry
}

type placeOrderReq struct {
	IDProduct int64 `json:"idproduct"`
}

type payOrderReq struct {
	Amount int64 `json:"amount"`
}

func (h *OrdersHandler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.place)
		r.Post("/pay/{id}", h.pay)
		r.Post("/cancel/{id}", h.cancel)
		r.Get("/{id}", h.get)
	})
}

func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	var req placeOrderReq
	if err := decode(r, &req); err != nil || req.IDProduct <= 0 {
		writeError(w, h.Log, errInvalidBody)
		return
	}
	o, err := h.Orders.Place(r.Context(), user.ID, req.IDProduct)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	var req payOrderReq
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	o, err := h.Orders.Pay(r.Context(), id, user.ID, req.Amount)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	o, err := h.Orders.Cancel(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	o, err := h.Orders.Get(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
