package store

import (
	"context"

	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// LoadFunc finishes a load started by BeginLoad.
type LoadFunc func(ctx context.Context) (*domain.User, error)

// LoadUserInfo replaces the current user, cart and favorites with the
// remote documents of userID. An empty userID is a no-op.
//
// Only the most recently started load may change state. Older loads return
// ErrLoadSuperseded and leave state untouched. A cart change made while a
// load is running is still overwritten by that load's result.
func (s *Store) LoadUserInfo(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, nil
	}
	return s.BeginLoad(ctx, userID)(ctx)
}

// BeginLoad marks the state as loading and claims the next load generation.
// A ClearUser or another load issued after BeginLoad returns always wins
// over the returned LoadFunc.
func (s *Store) BeginLoad(ctx context.Context, userID string) LoadFunc {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.IsLoading = true
	snap := s.commit(ctx)
	s.mu.Unlock()
	s.publish(snap)

	return func(ctx context.Context) (*domain.User, error) {
		return s.finishLoad(ctx, userID, gen)
	}
}

func (s *Store) finishLoad(ctx context.Context, userID string, gen uint64) (*domain.User, error) {
	log := s.log.With().Str("user_id", userID).Uint64("generation", gen).Logger()

	user, err := s.readUser(ctx, userID)
	if err != nil {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			log.Debug().Err(err).Msg("stale user load discarded")
			return nil, ErrLoadSuperseded
		}
		s.state.CurrentUser = nil
		s.state.IsLoading = false
		snap := s.commit(ctx)
		s.mu.Unlock()
		s.publish(snap)

		log.Warn().Err(err).Msg("could not load user")
		return nil, err
	}

	var (
		cart      []domain.CartLine
		favorites []domain.FavoriteItem
		g         errgroup.Group
	)
	g.Go(func() error {
		cart = s.readCart(ctx, userID)
		return nil
	})
	g.Go(func() error {
		favorites = s.readFavorites(ctx, userID)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		log.Debug().Msg("stale user load discarded")
		return nil, ErrLoadSuperseded
	}
	s.state.CurrentUser = user
	s.state.Cart = cart
	s.state.Favorites = favorites
	s.state.IsLoading = false
	snap := s.commit(ctx)
	s.mu.Unlock()
	s.publish(snap)

	log.Debug().Int("cart_lines", len(cart)).Int("favorites", len(favorites)).Msg("user loaded")

	return user.Clone(), nil
}

func (s *Store) readUser(ctx context.Context, userID string) (*domain.User, error) {
	doc, err := s.docs.ReadDocument(ctx, domain.CollectionUsers, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read user %s", userID)
	}
	if doc == nil {
		return nil, errors.Wrapf(ErrNoUserFound, "user %s", userID)
	}

	var user domain.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, errors.Wrapf(err, "could not decode user %s", userID)
	}
	if user.ID == "" {
		user.ID = userID
	}

	return &user, nil
}

// readCart collapses absence and failure into an empty cart.
func (s *Store) readCart(ctx context.Context, userID string) []domain.CartLine {
	cart := []domain.CartLine{}

	doc, err := s.docs.ReadDocument(ctx, domain.CollectionCarts, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("could not read cart, using empty cart")
		return cart
	}

	var lines []domain.CartLine
	if err := docstore.DecodeField(doc, "cart", &lines); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("cart document does not decode, using empty cart")
		return cart
	}

	return append(cart, lines...)
}

func (s *Store) readFavorites(ctx context.Context, userID string) []domain.FavoriteItem {
	favorites := []domain.FavoriteItem{}

	doc, err := s.docs.ReadDocument(ctx, domain.CollectionFavorites, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("could not read favorites, using empty list")
		return favorites
	}

	var items []domain.FavoriteItem
	if err := docstore.DecodeField(doc, "favorites", &items); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("favorites document does not decode, using empty list")
		return favorites
	}

	return append(favorites, items...)
}
