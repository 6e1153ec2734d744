// Package auth signs users in and out and announces session changes on the
// event bus.
package auth

import (
	"context"
	"sync"

	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const TopicSessionChanged = "session:changed"

type Service interface {
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	// Register creates the account and its users/{id} profile document, then
	// signs in.
	Register(ctx context.Context, reg domain.Registration) (*domain.Session, error)
	SignOut(ctx context.Context)
	// Current returns nil when nobody is signed in.
	Current() *domain.Session
	// OnSessionChanged calls fn with every new session, nil on sign-out.
	// Calls run off the publishing goroutine, one at a time and in order.
	OnSessionChanged(fn func(*domain.Session)) (unsubscribe func(), err error)
	ProviderName() domain.AuthProvider
}

type service struct {
	log      zerolog.Logger
	provider Provider
	docs     docstore.Service
	limiter  Limiter
	bus      EventBus.Bus

	mu      sync.RWMutex
	current *domain.Session
}

func NewService(log logger.Logger, provider Provider, docs docstore.Service, limiter Limiter, bus EventBus.Bus) Service {
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}
	return &service{
		log:      log.With().Str("module", "auth").Logger(),
		provider: provider,
		docs:     docs,
		limiter:  limiter,
		bus:      bus,
	}
}

func (s *service) ProviderName() domain.AuthProvider {
	return s.provider.Name()
}

func (s *service) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	key := normalizeEmail(creds.Email)

	if key != "" {
		locked, err := s.limiter.IsLockedOut(ctx, key)
		if err != nil {
			s.log.Error().Err(err).Msg("rate limiter check failed")
			return nil, ErrInvalidCredentials
		}
		if locked {
			s.log.Warn().Str("email", key).Msg("sign-in rejected, locked out")
			return nil, ErrLockedOut
		}
	}

	session, err := s.provider.SignIn(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) && key != "" {
			s.handleFailure(ctx, key)
		}
		return nil, err
	}

	if key != "" {
		if err := s.limiter.ClearFailures(ctx, key); err != nil {
			s.log.Warn().Err(err).Msg("could not clear sign-in failures")
		}
	}

	s.setSession(session)

	s.log.Info().Str("user_id", session.UserID).Msg("signed in")

	return copySession(session), nil
}

func (s *service) handleFailure(ctx context.Context, key string) {
	count, err := s.limiter.IncrementFailure(ctx, key)
	if err != nil {
		s.log.Error().Err(err).Msg("could not record sign-in failure")
		return
	}
	s.log.Warn().Str("email", key).Int64("failures", count).Msg("sign-in failed")

	if count >= lockoutThreshold {
		if err := s.limiter.SetLockout(ctx, key); err != nil {
			s.log.Error().Err(err).Msg("could not set lockout")
			return
		}
		s.log.Warn().Str("email", key).Msg("lockout threshold reached")
	}
}

func (s *service) Register(ctx context.Context, reg domain.Registration) (*domain.Session, error) {
	session, err := s.provider.Register(ctx, reg)
	if err != nil {
		return nil, err
	}

	profile := domain.User{
		ID:        session.UserID,
		Email:     session.Email,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
	}
	doc, err := docstore.ToDocument(profile)
	if err != nil {
		return nil, err
	}
	if err := s.docs.WriteDocument(ctx, domain.CollectionUsers, session.UserID, doc); err != nil {
		return nil, errors.Wrap(err, "could not write user profile")
	}

	s.setSession(session)

	s.log.Info().Str("user_id", session.UserID).Msg("registered")

	return copySession(session), nil
}

func (s *service) SignOut(_ context.Context) {
	s.mu.RLock()
	signedIn := s.current != nil
	s.mu.RUnlock()

	if !signedIn {
		return
	}

	s.setSession(nil)
	s.log.Info().Msg("signed out")
}

func (s *service) Current() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.current)
}

func (s *service) setSession(session *domain.Session) {
	s.mu.Lock()
	s.current = copySession(session)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(TopicSessionChanged, copySession(session))
	}
}

func (s *service) OnSessionChanged(fn func(*domain.Session)) (func(), error) {
	if err := s.bus.SubscribeAsync(TopicSessionChanged, fn, true); err != nil {
		return nil, errors.Wrap(err, "could not subscribe to session changes")
	}
	return func() {
		if err := s.bus.Unsubscribe(TopicSessionChanged, fn); err != nil {
			s.log.Debug().Err(err).Msg("session subscriber already removed")
		}
	}, nil
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
