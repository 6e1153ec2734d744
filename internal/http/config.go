package http

import (
	"encoding/json"
	"net/http"

	"github.com/flurbudurbur/supergear/internal/config"
	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type configJson struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	LogLevel      string `json:"log_level"`
	LogPath       string `json:"log_path"`
	LogMaxSize    int    `json:"log_max_size"`
	LogMaxBackups int    `json:"log_max_backups"`
	BaseURL       string `json:"base_url"`

	MirrorBackend string `json:"mirror_backend"`
	RemoteBackend string `json:"remote_backend"`
	AuthProvider  string `json:"auth_provider"`

	OutboxQueueSize       int    `json:"outbox_queue_size"`
	OutboxMaxAttempts     int    `json:"outbox_max_attempts"`
	OutboxRedriveSchedule string `json:"outbox_redrive_schedule"`

	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type configHandler struct {
	encoder encoder

	cfg    *config.AppConfig
	server Server
}

func newConfigHandler(encoder encoder, server Server, cfg *config.AppConfig) *configHandler {
	return &configHandler{
		encoder: encoder,
		cfg:     cfg,
		server:  server,
	}
}

func (h configHandler) Routes(r chi.Router) {
	r.Get("/", h.getConfig)
	r.Patch("/", h.updateConfig)
}

func (h configHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	c := h.cfg.Snapshot()

	conf := configJson{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		LogLevel:      c.Logging.Level,
		LogPath:       c.Logging.Path,
		LogMaxSize:    c.Logging.MaxFileSize,
		LogMaxBackups: c.Logging.MaxBackupCount,
		BaseURL:       c.Server.BaseURL,

		MirrorBackend: c.Mirror.Backend,
		RemoteBackend: c.Remote.Backend,
		AuthProvider:  c.Auth.Provider,

		OutboxQueueSize:       c.Outbox.QueueSize,
		OutboxMaxAttempts:     c.Outbox.MaxAttempts,
		OutboxRedriveSchedule: c.Outbox.RedriveSchedule,

		Version: h.server.version,
		Commit:  h.server.commit,
		Date:    h.server.date,
	}

	render.JSON(w, r, conf)
}

// updateConfig applies changes in memory only. They are lost on restart.
func (h configHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var data domain.ConfigUpdate

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.encoder.StatusError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if data.OutboxMaxAttempts != nil && *data.OutboxMaxAttempts < 1 {
		h.encoder.StatusError(w, http.StatusBadRequest, "outbox_max_attempts must be at least 1")
		return
	}

	if data.OutboxRedriveSchedule != nil {
		if err := h.server.schedulerService.RescheduleOutboxRedrive(*data.OutboxRedriveSchedule); err != nil {
			h.encoder.StatusError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if data.OutboxMaxAttempts != nil {
		h.server.outboxService.SetMaxAttempts(*data.OutboxMaxAttempts)
	}

	h.cfg.Update(data, h.server.logger)

	render.NoContent(w, r)
}
