package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flurbudurbur/supergear/internal/auth"
	"github.com/flurbudurbur/supergear/internal/config"
	"github.com/flurbudurbur/supergear/internal/database"
	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/events"
	"github.com/flurbudurbur/supergear/internal/firestore"
	"github.com/flurbudurbur/supergear/internal/http"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/mirror"
	"github.com/flurbudurbur/supergear/internal/orders"
	"github.com/flurbudurbur/supergear/internal/outbox"
	"github.com/flurbudurbur/supergear/internal/scheduler"
	"github.com/flurbudurbur/supergear/internal/server"
	"github.com/flurbudurbur/supergear/internal/store"
	"github.com/flurbudurbur/supergear/internal/valkey"

	"github.com/asaskevich/EventBus"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to configuration file")
	pflag.Parse()

	// read config
	cfg := config.New(configPath, version)

	// init new logger
	log := logger.New(cfg.Config)

	// init dynamic config
	cfg.DynamicReload(log)

	// setup server-sent-events
	serverEvents := sse.New()
	serverEvents.CreateStreamWithOpts(logger.LogStream, sse.StreamOpts{MaxEntries: 1000, AutoReplay: true})
	serverEvents.CreateStreamWithOpts(events.StateStream, sse.StreamOpts{MaxEntries: 1, AutoReplay: true})

	// register SSE writer
	log.RegisterSSEWriter(serverEvents)

	// setup internal eventbus
	bus := EventBus.New()

	// open database connection
	db, err := database.NewDB(cfg.Config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create new db")
	}

	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("could not open db connection")
	}

	log.Info().Msgf("Starting supergear")
	log.Info().Msgf("Version: %s", version)
	log.Info().Msgf("Commit: %s", commit)
	log.Info().Msgf("Build date: %s", date)
	log.Info().Msgf("Log-level: %s", cfg.Config.Logging.Level)
	log.Info().Msgf("Using database: %s", db.Driver)

	ctx := context.Background()

	// valkey is only needed by the backends that ask for it
	var valkeyService *valkey.Service
	if cfg.Config.Mirror.Backend == "valkey" || cfg.Config.Auth.Limiter == "valkey" {
		valkeyService, err = valkey.NewService(cfg.Config.Valkey)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create new valkey service")
		}
		log.Info().Msg("Valkey service initialized")
	}

	// local mirror
	var snapshotRepo domain.SnapshotRepo
	switch cfg.Config.Mirror.Backend {
	case "valkey":
		snapshotRepo = valkey.NewSnapshotRepo(log, valkeyService.GetClient())
	default:
		snapshotRepo = database.NewSnapshotRepo(log, db)
	}

	// remote document store
	var (
		documentRepo    domain.DocumentRepo
		firestoreClient *firestore.Client
	)
	switch cfg.Config.Remote.Backend {
	case "firestore":
		firestoreClient, err = firestore.NewClient(ctx, cfg.Config.Remote, log)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create firestore client")
		}
		documentRepo = firestore.NewDocumentRepo(log, firestoreClient)
	default:
		documentRepo = database.NewDocumentRepo(log, db)
	}

	// setup services
	var (
		documents = docstore.NewService(log, documentRepo, time.Duration(cfg.Config.Remote.Timeout)*time.Second)
		writes    = outbox.New(log, documents, outbox.ConfigFrom(cfg.Config.Outbox))
		state     = store.New(ctx, log, mirror.New(log, snapshotRepo, cfg.Config.Mirror.Key), documents, writes, bus)
	)

	var provider auth.Provider
	switch domain.AuthProvider(cfg.Config.Auth.Provider) {
	case domain.AuthProviderFirebase:
		client, err := auth.NewFirebaseClient(ctx, cfg.Config.Remote)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create firebase auth client")
		}
		provider = auth.NewFirebaseProvider(log, client)
	default:
		provider = auth.NewLocalProvider(log, database.NewCredentialRepo(log, db))
	}

	var limiter auth.Limiter
	if cfg.Config.Auth.Limiter == "valkey" {
		limiter = valkey.NewLimiter(log, valkeyService.GetClient(), auth.FailureWindow, auth.LockoutDuration)
	} else {
		limiter = auth.NewMemoryLimiter()
	}

	var (
		authService       = auth.NewService(log, provider, documents, limiter, bus)
		ordersService     = orders.NewService(log, documents)
		schedulingService = scheduler.NewService(log, cfg.Config, writes)
	)

	log.Info().Msgf("Auth provider: %s", authService.ProviderName())

	// session changes drive the store
	events.NewSubscribers(log, authService, bus, state, serverEvents)

	errorChannel := make(chan error)

	go func() {
		httpServer := http.NewServer(
			log,
			cfg,
			serverEvents,
			db,
			version,
			commit,
			date,
			authService,
			state,
			ordersService,
			writes,
			schedulingService,
		)
		errorChannel <- httpServer.Open()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	srv := server.NewServer(log, cfg.Config, schedulingService, writes)
	if err := srv.Start(); err != nil {
		log.Fatal().Stack().Err(err).Msg("could not start server")
		return
	}

	shutdown := func() {
		srv.Shutdown()

		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := state.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("could not save state on shutdown")
		}

		if firestoreClient != nil {
			if err := firestoreClient.Close(); err != nil {
				log.Error().Err(err).Msg("could not close firestore client")
			}
		}
		if valkeyService != nil {
			valkeyService.Close()
		}
		if err := db.Close(); err != nil {
			log.Error().Stack().Err(err).Msg("could not close db connection")
		}
	}

	for {
		select {
		case err := <-errorChannel:
			log.Error().Err(err).Msg("http server stopped")
			shutdown()
			os.Exit(1)
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				log.Log().Msg("shutting down server sighup")
				shutdown()
				os.Exit(1)
			case syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
				log.Info().Msgf("shutting down server: %s", sig)
				shutdown()
				os.Exit(0)
			}
		}
	}
}
