package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type favoritesHandler struct {
	encoder encoder
	service stateService
}

func newFavoritesHandler(encoder encoder, service stateService) *favoritesHandler {
	return &favoritesHandler{
		encoder: encoder,
		service: service,
	}
}

func (h favoritesHandler) Routes(r chi.Router) {
	r.Post("/", h.toggle)
	r.Delete("/", h.reset)
	r.Delete("/{productID}", h.remove)
}

// toggle adds the product, or removes it when it is already a favorite.
func (h favoritesHandler) toggle(w http.ResponseWriter, r *http.Request) {
	product, ok := decodeProduct(r)
	if !ok {
		h.encoder.StatusError(w, http.StatusBadRequest, "product with _id is required")
		return
	}

	h.encoder.StatusResponse(r.Context(), w, h.service.ToggleFavorite(r.Context(), product), http.StatusOK)
}

func (h favoritesHandler) remove(w http.ResponseWriter, r *http.Request) {
	state := h.service.RemoveFromFavorite(r.Context(), chi.URLParam(r, "productID"))
	h.encoder.StatusResponse(r.Context(), w, state, http.StatusOK)
}

func (h favoritesHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.encoder.StatusResponse(r.Context(), w, h.service.ResetFavorites(r.Context()), http.StatusOK)
}
