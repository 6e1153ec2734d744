package server

import (
	"context"
	"sync"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/scheduler"

	"github.com/rs/zerolog"
)

const drainTimeout = 10 * time.Second

// Closer is a component that drains work on shutdown.
type Closer interface {
	Close(ctx context.Context)
}

// Server owns the background parts of the application: the cron scheduler
// and the remote write outbox.
type Server struct {
	log    zerolog.Logger
	config *domain.Config

	scheduler scheduler.Service
	outbox    Closer

	stopOnce sync.Once
}

func NewServer(log logger.Logger, config *domain.Config, scheduler scheduler.Service, outbox Closer) *Server {
	return &Server{
		log:       log.With().Str("module", "server").Logger(),
		config:    config,
		scheduler: scheduler,
		outbox:    outbox,
	}
}

func (s *Server) Start() error {
	s.scheduler.Start()

	return nil
}

// Shutdown stops the scheduler and gives the outbox a bounded window to
// deliver what is pending.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.log.Info().Msg("shutting down server")

		s.scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		s.outbox.Close(ctx)
	})
}
