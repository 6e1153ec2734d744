package http

import (
	"encoding/json"
	"net/http"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/go-chi/chi/v5"
)

type cartHandler struct {
	encoder encoder
	service stateService
}

func newCartHandler(encoder encoder, service stateService) *cartHandler {
	return &cartHandler{
		encoder: encoder,
		service: service,
	}
}

func (h cartHandler) Routes(r chi.Router) {
	r.Post("/", h.add)
	r.Delete("/", h.reset)
	r.Post("/{productID}/decrease", h.decrease)
	r.Delete("/{productID}", h.remove)
}

// decodeProduct reads a product body. The product id is required.
func decodeProduct(r *http.Request) (domain.Product, bool) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.ID == "" {
		return domain.Product{}, false
	}
	return p, true
}

func (h cartHandler) add(w http.ResponseWriter, r *http.Request) {
	product, ok := decodeProduct(r)
	if !ok {
		h.encoder.StatusError(w, http.StatusBadRequest, "product with _id is required")
		return
	}

	h.encoder.StatusResponse(r.Context(), w, h.service.AddToCart(r.Context(), product), http.StatusOK)
}

func (h cartHandler) decrease(w http.ResponseWriter, r *http.Request) {
	state := h.service.DecreaseQuantity(r.Context(), chi.URLParam(r, "productID"))
	h.encoder.StatusResponse(r.Context(), w, state, http.StatusOK)
}

func (h cartHandler) remove(w http.ResponseWriter, r *http.Request) {
	state := h.service.RemoveFromCart(r.Context(), chi.URLParam(r, "productID"))
	h.encoder.StatusResponse(r.Context(), w, state, http.StatusOK)
}

func (h cartHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.encoder.StatusResponse(r.Context(), w, h.service.ResetCart(r.Context()), http.StatusOK)
}
