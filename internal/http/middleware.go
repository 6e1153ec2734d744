package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type ContextKey string

const (
	// SessionContextKey holds the signed-in user's id.
	SessionContextKey ContextKey = "session"

	sessionCookie = "storefront_session"
)

type requestSession struct {
	UserID string
	Email  string
}

func sessionFromContext(ctx context.Context) (requestSession, bool) {
	s, ok := ctx.Value(SessionContextKey).(requestSession)
	return s, ok
}

// IsAuthenticated rejects requests without a signed-in session cookie.
func (s *Server) IsAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.cookieStore.Get(r, sessionCookie)
		if err != nil {
			s.log.Debug().Err(err).Msg("could not decode session cookie")
		}

		if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		userID, _ := session.Values["user_id"].(string)
		email, _ := session.Values["email"].(string)

		ctx := context.WithValue(r.Context(), SessionContextKey, requestSession{UserID: userID, Email: email})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggerMiddleware logs every request with its status and duration.
func LoggerMiddleware(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				reqID := middleware.GetReqID(r.Context())

				if rec := recover(); rec != nil {
					reqLogger.Error().
						Str("type", "error").
						Timestamp().
						Interface("recover_info", rec).
						Bytes("debug_stack", debug.Stack()).
						Str("request_id", reqID).
						Msg("Unhandled panic recovered by middleware")
					http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}

				reqLogger.Trace().
					Str("request_id", reqID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
