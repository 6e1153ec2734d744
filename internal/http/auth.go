package http

import (
	"encoding/json"
	"net/http"

	"github.com/flurbudurbur/supergear/internal/auth"
	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type authHandler struct {
	log     zerolog.Logger
	encoder encoder
	config  *domain.Config
	service authService

	cookieStore *sessions.CookieStore
}

func newAuthHandler(encoder encoder, log zerolog.Logger, config *domain.Config, cookieStore *sessions.CookieStore, service authService) *authHandler {
	return &authHandler{
		log:         log,
		encoder:     encoder,
		config:      config,
		service:     service,
		cookieStore: cookieStore,
	}
}

func (h authHandler) Routes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Post("/logout", h.logout)
	r.Get("/session", h.session)
}

func (h authHandler) authError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.encoder.StatusError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrLockedOut):
		h.encoder.StatusError(w, http.StatusForbidden, auth.ErrLockedOut.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		h.encoder.StatusError(w, http.StatusConflict, auth.ErrEmailTaken.Error())
	case errors.Is(err, auth.ErrInvalidRequest), errors.Is(err, auth.ErrUnsupported):
		h.encoder.StatusError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("auth request failed")
		h.encoder.StatusInternalError(w)
	}
}

func (h authHandler) saveSession(w http.ResponseWriter, r *http.Request, s *domain.Session) error {
	h.cookieStore.Options.HttpOnly = true
	h.cookieStore.Options.SameSite = http.SameSiteLaxMode
	h.cookieStore.Options.Path = basePath(h.config.Server.BaseURL)

	if r.Header.Get("X-Forwarded-Proto") == "https" {
		h.cookieStore.Options.Secure = true
		h.cookieStore.Options.SameSite = http.SameSiteStrictMode
	}

	session, _ := h.cookieStore.Get(r, sessionCookie)
	session.Values["authenticated"] = true
	session.Values["user_id"] = s.UserID
	session.Values["email"] = s.Email

	return session.Save(r, w)
}

func (h authHandler) login(w http.ResponseWriter, r *http.Request) {
	var data domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.encoder.StatusError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.SignIn(r.Context(), data)
	if err != nil {
		h.log.Warn().Err(err).Msgf("Auth: Failed login attempt ip: %s", ReadUserIP(r))
		h.authError(w, err)
		return
	}

	if err := h.saveSession(w, r, session); err != nil {
		h.log.Error().Err(err).Msg("Auth: could not save session")
		h.encoder.StatusInternalError(w)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, session, http.StatusOK)
}

func (h authHandler) register(w http.ResponseWriter, r *http.Request) {
	var data domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.encoder.StatusError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Register(r.Context(), data)
	if err != nil {
		h.authError(w, err)
		return
	}

	if err := h.saveSession(w, r, session); err != nil {
		h.log.Error().Err(err).Msg("Auth: could not save session")
		h.encoder.StatusInternalError(w)
		return
	}

	h.encoder.StatusCreatedData(w, session)
}

func (h authHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.service.SignOut(r.Context())

	session, _ := h.cookieStore.Get(r, sessionCookie)
	session.Values["authenticated"] = false
	delete(session.Values, "user_id")
	delete(session.Values, "email")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.log.Warn().Err(err).Msg("Auth: could not clear session cookie")
	}

	h.encoder.NoContent(w)
}

// session returns the signed-in session. A valid cookie from before a
// restart is not enough: the process must still hold the session.
func (h authHandler) session(w http.ResponseWriter, r *http.Request) {
	session, _ := h.cookieStore.Get(r, sessionCookie)
	if authed, ok := session.Values["authenticated"].(bool); !ok || !authed {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	current := h.service.Current()
	if current == nil || current.UserID != session.Values["user_id"] {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, current, http.StatusOK)
}

func ReadUserIP(r *http.Request) string {
	IPAddress := r.Header.Get("X-Real-Ip")
	if IPAddress == "" {
		IPAddress = r.Header.Get("X-Forwarded-For")
	}
	if IPAddress == "" {
		IPAddress = r.RemoteAddr
	}
	return IPAddress
}
