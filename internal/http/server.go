package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/flurbudurbur/supergear/internal/config"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/outbox"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type authService interface {
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.Session, error)
	SignOut(ctx context.Context)
	Current() *domain.Session
}

type stateService interface {
	State() domain.ApplicationState
	SetLoading(ctx context.Context, loading bool) domain.ApplicationState
	LoadUserInfo(ctx context.Context, userID string) (*domain.User, error)
	AddToCart(ctx context.Context, product domain.Product) domain.ApplicationState
	DecreaseQuantity(ctx context.Context, productID string) domain.ApplicationState
	RemoveFromCart(ctx context.Context, productID string) domain.ApplicationState
	ResetCart(ctx context.Context) domain.ApplicationState
	ToggleFavorite(ctx context.Context, product domain.Product) domain.ApplicationState
	RemoveFromFavorite(ctx context.Context, productID string) domain.ApplicationState
	ResetFavorites(ctx context.Context) domain.ApplicationState
}

type ordersService interface {
	List(ctx context.Context, email string) []domain.Order
	Checkout(state domain.ApplicationState) (*domain.CheckoutSummary, error)
}

type outboxService interface {
	Stats() outbox.Stats
	Redrive() int
	SetMaxAttempts(n int)
	Closed() bool
}

type schedulerService interface {
	RescheduleOutboxRedrive(spec string) error
}

type Server struct {
	log    zerolog.Logger
	logger logger.Logger
	sse    *sse.Server
	db     DBPinger

	config      *config.AppConfig
	cookieStore *sessions.CookieStore

	version string
	commit  string
	date    string

	authService      authService
	stateService     stateService
	ordersService    ordersService
	outboxService    outboxService
	schedulerService schedulerService
}

func NewServer(
	log logger.Logger,
	config *config.AppConfig,
	sse *sse.Server,
	db DBPinger,
	version string,
	commit string,
	date string,
	authService authService,
	stateService stateService,
	ordersService ordersService,
	outboxService outboxService,
	schedulerService schedulerService,
) Server {
	return Server{
		log:     log.With().Str("module", "http").Logger(),
		logger:  log,
		config:  config,
		sse:     sse,
		db:      db,
		version: version,
		commit:  commit,
		date:    date,

		cookieStore: sessions.NewCookieStore([]byte(config.Config.SessionSecret)),

		authService:      authService,
		stateService:     stateService,
		ordersService:    ordersService,
		outboxService:    outboxService,
		schedulerService: schedulerService,
	}
}

func (s Server) Open() error {
	addr := fmt.Sprintf("%v:%v", s.config.Config.Server.Host, s.config.Config.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := http.Server{
		Handler: s.Handler(),
	}

	s.log.Info().Msgf("Starting server. Listening on %s", listener.Addr().String())

	return server.Serve(listener)
}

func (s Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(&s.log))

	c := cors.New(cors.Options{
		AllowCredentials:   true,
		AllowedMethods:     []string{"HEAD", "OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowOriginFunc:    func(origin string) bool { return true },
		OptionsPassthrough: true,
		Debug:              false,
	})

	r.Use(c.Handler)

	encoder := encoder{}

	api := func(r chi.Router) {
		r.Route("/auth", newAuthHandler(encoder, s.log, s.config.Config, s.cookieStore, s.authService).Routes)
		r.Route("/healthz", newHealthHandler(encoder, s.db, s.outboxService).Routes)

		r.Route("/state", func(r chi.Router) {
			state := newStateHandler(encoder, s.stateService)
			state.Routes(r)
			r.With(s.IsAuthenticated).Post("/reload", state.reload)
		})
		r.Route("/cart", newCartHandler(encoder, s.stateService).Routes)
		r.Route("/favorites", newFavoritesHandler(encoder, s.stateService).Routes)

		r.HandleFunc("/events", s.serveEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.IsAuthenticated)

			orders := newOrdersHandler(encoder, s.log, s.ordersService, s.stateService)
			r.Route("/orders", orders.Routes)
			r.Post("/checkout", orders.checkout)

			r.Route("/outbox", newOutboxHandler(encoder, s.outboxService).Routes)
			r.Route("/config", newConfigHandler(encoder, s, s.config).Routes)
		})
	}

	r.Route(basePath(s.config.Config.Server.BaseURL)+"api", api)

	return r
}

func (s Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	s.sse.Headers = map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	s.sse.ServeHTTP(w, r)
}

// basePath normalizes base_url to "/" or "/prefix/".
func basePath(baseURL string) string {
	trimmed := strings.Trim(baseURL, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}
