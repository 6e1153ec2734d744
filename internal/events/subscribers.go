// Package events connects components through the internal event bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flurbudurbur/supergear/internal/auth"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/store"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

const StateStream = "state"

// loadTimeout bounds a background user load.
const loadTimeout = 30 * time.Second

// SessionSource reports sign-in and sign-out.
type SessionSource interface {
	OnSessionChanged(fn func(*domain.Session)) (unsubscribe func(), err error)
}

// StateStore is the part of the store driven by session changes.
type StateStore interface {
	SetLoading(ctx context.Context, loading bool) domain.ApplicationState
	SetUser(ctx context.Context, user domain.User) domain.ApplicationState
	ClearUser(ctx context.Context) domain.ApplicationState
	BeginLoad(ctx context.Context, userID string) store.LoadFunc
}

type Subscriber struct {
	log      zerolog.Logger
	sessions SessionSource
	eventbus EventBus.Bus
	store    StateStore
	sse      logger.SSEPublisher
}

func NewSubscribers(log logger.Logger, sessions SessionSource, eventbus EventBus.Bus, store StateStore, sse logger.SSEPublisher) Subscriber {
	s := Subscriber{
		log:      log.With().Str("module", "events").Logger(),
		sessions: sessions,
		eventbus: eventbus,
		store:    store,
		sse:      sse,
	}

	s.Register()

	return s
}

func (s Subscriber) Register() {
	if _, err := s.sessions.OnSessionChanged(s.sessionChanged); err != nil {
		s.log.Error().Err(err).Msgf("could not subscribe to %s", auth.TopicSessionChanged)
	}
	if err := s.eventbus.Subscribe(store.TopicStateChanged, s.stateChanged); err != nil {
		s.log.Error().Err(err).Msgf("could not subscribe to %s", store.TopicStateChanged)
	}
}

// sessionChanged sets the signed-in user and loads their documents in the
// background, or resets the state on sign-out. The load generation is
// claimed before returning, so a sign-out handled next discards the load.
func (s Subscriber) sessionChanged(session *domain.Session) {
	ctx := context.Background()

	if session == nil {
		s.store.ClearUser(ctx)
		s.store.SetLoading(ctx, false)
		return
	}

	s.store.SetUser(ctx, domain.User{ID: session.UserID, Email: session.Email})
	if session.UserID == "" {
		return
	}

	load := s.store.BeginLoad(ctx, session.UserID)

	go func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		_, err := load(ctx)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrLoadSuperseded):
			s.log.Debug().Str("user_id", userID).Msg("user load superseded")
		default:
			s.log.Warn().Err(err).Str("user_id", userID).Msg("user load finished with error")
		}
	}(session.UserID)
}

func (s Subscriber) stateChanged(state domain.ApplicationState) {
	if s.sse == nil {
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		s.log.Error().Err(err).Msg("could not encode state event")
		return
	}

	s.sse.Publish(StateStream, &sse.Event{Data: data})
}
