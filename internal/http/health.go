package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DBPinger is the database behind readiness checks.
type DBPinger interface {
	Ping() error
}

// WriteQueue is the outbox behind readiness checks.
type WriteQueue interface {
	Closed() bool
}

type healthHandler struct {
	encoder  encoder
	dbPinger DBPinger
	writes   WriteQueue
}

func newHealthHandler(encoder encoder, dbPinger DBPinger, writes WriteQueue) *healthHandler {
	return &healthHandler{
		encoder:  encoder,
		dbPinger: dbPinger,
		writes:   writes,
	}
}

func (h healthHandler) Routes(r chi.Router) {
	r.Get("/liveness", h.handleLiveness)
	r.Get("/readiness", h.handleReadiness)
}

func (h healthHandler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeHealthy(w)
}

func (h healthHandler) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if err := h.dbPinger.Ping(); err != nil {
		writeUnhealthy(w, "Database unreachable")
		return
	}

	// cart and favorites changes would be rejected
	if h.writes != nil && h.writes.Closed() {
		writeUnhealthy(w, "Remote writes stopped")
		return
	}

	writeHealthy(w)
}

func writeHealthy(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeUnhealthy(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("Unhealthy. " + reason))
}
