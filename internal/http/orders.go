package http

import (
	"net/http"

	"github.com/flurbudurbur/supergear/internal/orders"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type ordersHandler struct {
	log     zerolog.Logger
	encoder encoder
	service ordersService
	state   stateService
}

func newOrdersHandler(encoder encoder, log zerolog.Logger, service ordersService, state stateService) *ordersHandler {
	return &ordersHandler{
		log:     log,
		encoder: encoder,
		service: service,
		state:   state,
	}
}

func (h ordersHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
}

func (h ordersHandler) list(w http.ResponseWriter, r *http.Request) {
	email := ""
	if s, ok := sessionFromContext(r.Context()); ok {
		email = s.Email
	}
	if u := h.state.State().CurrentUser; u != nil && u.Email != "" {
		email = u.Email
	}

	render.JSON(w, r, h.service.List(r.Context(), email))
}

func (h ordersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Checkout(h.state.State())
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotSignedIn):
			h.encoder.StatusError(w, http.StatusConflict, err.Error())
		case errors.Is(err, orders.ErrEmptyCart):
			h.encoder.StatusError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.log.Error().Err(err).Msg("checkout failed")
			h.encoder.Error(w, err)
		}
		return
	}

	h.encoder.StatusResponse(r.Context(), w, summary, http.StatusOK)
}
