package domain

import "context"

// ApplicationState is the single state value owned by the store. The JSON
// form is the snapshot written to the local mirror.
type ApplicationState struct {
	CurrentUser *User          `json:"currentUser"`
	IsLoading   bool           `json:"isLoading"`
	Cart        []CartLine     `json:"cartProduct"`
	Favorites   []FavoriteItem `json:"favoriteProduct"`
}

// InitialState is used when no snapshot is available.
func InitialState() ApplicationState {
	return ApplicationState{
		IsLoading: true,
		Cart:      []CartLine{},
		Favorites: []FavoriteItem{},
	}
}

// Clone returns a deep copy. Nil sequences become empty ones.
func (s ApplicationState) Clone() ApplicationState {
	c := ApplicationState{
		CurrentUser: s.CurrentUser.Clone(),
		IsLoading:   s.IsLoading,
		Cart:        make([]CartLine, 0, len(s.Cart)),
		Favorites:   make([]FavoriteItem, 0, len(s.Favorites)),
	}
	for _, l := range s.Cart {
		c.Cart = append(c.Cart, l.Clone())
	}
	for _, f := range s.Favorites {
		c.Favorites = append(c.Favorites, f.Clone())
	}
	return c
}

// CartQuantity is the number of items across all cart lines.
func (s ApplicationState) CartQuantity() int {
	n := 0
	for _, l := range s.Cart {
		n += l.Quantity
	}
	return n
}

// SnapshotRepo persists raw snapshot bytes under a key.
// Get returns nil, nil when the key is absent.
type SnapshotRepo interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
