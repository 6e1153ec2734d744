package http

import (
	"encoding/json"
	"net/http"

	"github.com/flurbudurbur/supergear/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type stateHandler struct {
	encoder encoder
	service stateService
}

func newStateHandler(encoder encoder, service stateService) *stateHandler {
	return &stateHandler{
		encoder: encoder,
		service: service,
	}
}

func (h stateHandler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/loading", h.setLoading)
}

func (h stateHandler) get(w http.ResponseWriter, r *http.Request) {
	h.encoder.StatusResponse(r.Context(), w, h.service.State(), http.StatusOK)
}

type loadingRequest struct {
	IsLoading *bool `json:"isLoading"`
}

func (h stateHandler) setLoading(w http.ResponseWriter, r *http.Request) {
	var data loadingRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.IsLoading == nil {
		h.encoder.StatusError(w, http.StatusBadRequest, "isLoading is required")
		return
	}

	h.encoder.StatusResponse(r.Context(), w, h.service.SetLoading(r.Context(), *data.IsLoading), http.StatusOK)
}

// reload reads the signed-in user's documents again.
func (h stateHandler) reload(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok || session.UserID == "" {
		h.encoder.StatusError(w, http.StatusConflict, "no signed-in user")
		return
	}

	if _, err := h.service.LoadUserInfo(r.Context(), session.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrNoUserFound):
			h.encoder.StatusError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrLoadSuperseded):
			h.encoder.StatusError(w, http.StatusConflict, err.Error())
		default:
			h.encoder.Error(w, err)
		}
		return
	}

	h.encoder.StatusResponse(r.Context(), w, h.service.State(), http.StatusOK)
}
