// Package store owns the application state. Every mutation is written
// through to the local mirror, and cart or favorite changes are replicated
// to the signed-in user's remote documents.
package store

import (
	"context"
	"sync"

	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/mirror"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const TopicStateChanged = "state:changed"

var (
	ErrNoUserFound    = errors.New("no user found")
	ErrLoadSuperseded = errors.New("user load superseded by a newer one")
)

// Dispatcher accepts remote writes without waiting for them.
type Dispatcher interface {
	Dispatch(w domain.RemoteWrite) error
}

type Store struct {
	log    zerolog.Logger
	mirror mirror.Mirror
	docs   docstore.Service
	out    Dispatcher
	bus    EventBus.Bus

	mu    sync.Mutex
	state domain.ApplicationState
	gen   uint64
}

// New restores the last snapshot, or starts from the initial state.
func New(ctx context.Context, log logger.Logger, m mirror.Mirror, docs docstore.Service, out Dispatcher, bus EventBus.Bus) *Store {
	s := &Store{
		log:    log.With().Str("module", "store").Logger(),
		mirror: m,
		docs:   docs,
		out:    out,
		bus:    bus,
		state:  domain.InitialState(),
	}

	if snap := m.Load(ctx); snap != nil {
		s.state = snap.Clone()
		s.log.Debug().Int("cart_lines", len(s.state.Cart)).Int("favorites", len(s.state.Favorites)).Msg("state restored from snapshot")
	}

	return s
}

// State returns a copy of the current state.
func (s *Store) State() domain.ApplicationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// commit saves the snapshot and returns a copy for subscribers.
// Must be called with mu held.
func (s *Store) commit(ctx context.Context) domain.ApplicationState {
	if err := s.mirror.Save(ctx, s.state); err != nil {
		s.log.Error().Err(err).Msg("could not save snapshot")
	}
	return s.state.Clone()
}

func (s *Store) publish(state domain.ApplicationState) {
	if s.bus != nil {
		s.bus.Publish(TopicStateChanged, state)
	}
}

func (s *Store) dispatch(collection string, body map[string]any) {
	if s.state.CurrentUser == nil || s.state.CurrentUser.ID == "" {
		return
	}

	doc, err := docstore.ToDocument(body)
	if err != nil {
		s.log.Error().Err(err).Str("collection", collection).Msg("could not build remote document")
		return
	}

	w := domain.RemoteWrite{Collection: collection, DocID: s.state.CurrentUser.ID, Body: doc}
	if err := s.out.Dispatch(w); err != nil {
		s.log.Warn().Err(err).Str("document", w.Key()).Msg("remote write not queued")
	}
}

func (s *Store) dispatchCart() {
	s.dispatch(domain.CollectionCarts, map[string]any{"cart": s.state.Cart})
}

func (s *Store) dispatchFavorites() {
	s.dispatch(domain.CollectionFavorites, map[string]any{"favorites": s.state.Favorites})
}

func (s *Store) update(ctx context.Context, fn func(st *domain.ApplicationState)) domain.ApplicationState {
	s.mu.Lock()
	fn(&s.state)
	snap := s.commit(ctx)
	s.mu.Unlock()

	s.publish(snap)

	return snap
}

func (s *Store) SetLoading(ctx context.Context, loading bool) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		st.IsLoading = loading
	})
}

func (s *Store) SetUser(ctx context.Context, user domain.User) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		st.CurrentUser = user.Clone()
		st.IsLoading = false
	})
}

// ClearUser resets to a signed-out state and removes the snapshot. Loads
// still in flight are discarded when they finish.
func (s *Store) ClearUser(ctx context.Context) domain.ApplicationState {
	s.mu.Lock()
	s.gen++
	s.state = domain.ApplicationState{
		Cart:      []domain.CartLine{},
		Favorites: []domain.FavoriteItem{},
	}
	if err := s.mirror.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("could not clear snapshot")
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	s.publish(snap)

	return snap
}

func (s *Store) AddToCart(ctx context.Context, product domain.Product) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		for i := range st.Cart {
			if st.Cart[i].ID == product.ID {
				st.Cart[i].Quantity++
				s.dispatchCart()
				return
			}
		}
		st.Cart = append(st.Cart, domain.CartLine{Product: product.Clone(), Quantity: 1})
		s.dispatchCart()
	})
}

// DecreaseQuantity never takes a line below 1.
func (s *Store) DecreaseQuantity(ctx context.Context, productID string) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		for i := range st.Cart {
			if st.Cart[i].ID == productID && st.Cart[i].Quantity > 1 {
				st.Cart[i].Quantity--
				break
			}
		}
		s.dispatchCart()
	})
}

func (s *Store) RemoveFromCart(ctx context.Context, productID string) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		cart := st.Cart[:0]
		for _, l := range st.Cart {
			if l.ID != productID {
				cart = append(cart, l)
			}
		}
		st.Cart = cart
		s.dispatchCart()
	})
}

func (s *Store) ResetCart(ctx context.Context) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		st.Cart = []domain.CartLine{}
		s.dispatchCart()
	})
}

// ToggleFavorite removes product when it is already a favorite and adds it
// otherwise.
func (s *Store) ToggleFavorite(ctx context.Context, product domain.Product) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		for i := range st.Favorites {
			if st.Favorites[i].ID == product.ID {
				st.Favorites = append(st.Favorites[:i], st.Favorites[i+1:]...)
				s.dispatchFavorites()
				return
			}
		}
		st.Favorites = append(st.Favorites, domain.FavoriteItem{Product: product.Clone()})
		s.dispatchFavorites()
	})
}

func (s *Store) RemoveFromFavorite(ctx context.Context, productID string) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		favs := st.Favorites[:0]
		for _, f := range st.Favorites {
			if f.ID != productID {
				favs = append(favs, f)
			}
		}
		st.Favorites = favs
		s.dispatchFavorites()
	})
}

func (s *Store) ResetFavorites(ctx context.Context) domain.ApplicationState {
	return s.update(ctx, func(st *domain.ApplicationState) {
		st.Favorites = []domain.FavoriteItem{}
		s.dispatchFavorites()
	})
}

// Close writes a final snapshot.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mirror.Save(ctx, s.state); err != nil {
		return errors.Wrap(err, "could not save final snapshot")
	}
	return nil
}
