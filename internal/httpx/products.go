package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/product"
	"github.com/ariefcatur/go-market-saga/internal/replica"
)

type ProductsHandler struct {
	Products *product.Service
	Log      *logrus.Entry
}

// Listing is public; adding a product needs a signed-in owner.
func (h *ProductsHandler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.With(requireAuth).Post("/", h.add)
	})
}

func (h *ProductsHandler) add(w http.ResponseWriter, r *http.Request) {
	owner, _ := CurrentUser(r.Context())
	var in product.AddInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Products.Add(r.Context(), owner, in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.Products.List(r.Context(), listQuery(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Products.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type SearchHandler struct {
	Searcher *replica.Searcher
	Log      *logrus.Entry
}

func (h *SearchHandler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get("/search", h.search)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	page, err := h.Searcher.Search(r.Context(), listQuery(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
