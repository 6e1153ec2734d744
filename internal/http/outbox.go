package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type outboxHandler struct {
	encoder encoder
	service outboxService
}

func newOutboxHandler(encoder encoder, service outboxService) *outboxHandler {
	return &outboxHandler{
		encoder: encoder,
		service: service,
	}
}

func (h outboxHandler) Routes(r chi.Router) {
	r.Get("/", h.stats)
	r.Post("/redrive", h.redrive)
}

func (h outboxHandler) stats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Stats())
}

type redriveResponse struct {
	Requeued int `json:"requeued"`
}

func (h outboxHandler) redrive(w http.ResponseWriter, r *http.Request) {
	h.encoder.StatusResponse(r.Context(), w, redriveResponse{Requeued: h.service.Redrive()}, http.StatusOK)
}
