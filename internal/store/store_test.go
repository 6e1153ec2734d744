package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/mirror"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	writes []domain.RemoteWrite
}

func (d *recordingDispatcher) Dispatch(w domain.RemoteWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, w)
	return nil
}

func (d *recordingDispatcher) all() []domain.RemoteWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.RemoteWrite(nil), d.writes...)
}

type fixture struct {
	store   *Store
	mirror  mirror.Mirror
	snaps   *mirror.MemoryRepo
	remote  *docstore.MemoryRepo
	out     *recordingDispatcher
	bus     EventBus.Bus
	docsSvc docstore.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		snaps:  mirror.NewMemoryRepo(),
		remote: docstore.NewMemoryRepo(),
		out:    &recordingDispatcher{},
		bus:    EventBus.New(),
	}
	f.mirror = mirror.New(logger.Mock(), f.snaps, "")
	f.docsSvc = docstore.NewService(logger.Mock(), f.remote, time.Second)
	f.store = New(context.Background(), logger.Mock(), f.mirror, f.docsSvc, f.out, f.bus)

	return f
}

func phone() domain.Product {
	return domain.Product{ID: "p1", Name: "Phone", RegularPrice: 100, DiscountedPrice: 80}
}

func headset() domain.Product {
	return domain.Product{ID: "p2", Name: "Headset", RegularPrice: 50, DiscountedPrice: 50}
}

func TestStore_InitialState(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, domain.InitialState(), f.store.State())
}

func TestStore_RestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.SetUser(ctx, domain.User{ID: "u1", Email: "ada@example.com"})
	f.store.AddToCart(ctx, phone())

	restored := New(ctx, logger.Mock(), f.mirror, f.docsSvc, f.out, f.bus)
	assert.Equal(t, f.store.State(), restored.State())
}

func TestStore_AddToCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.AddToCart(ctx, phone())
	f.store.AddToCart(ctx, headset())
	state := f.store.AddToCart(ctx, phone())

	require.Len(t, state.Cart, 2)
	assert.Equal(t, "p1", state.Cart[0].ID)
	assert.Equal(t, 2, state.Cart[0].Quantity)
	assert.Equal(t, 1, state.Cart[1].Quantity)
	assert.Equal(t, 3, state.CartQuantity())

	// no user, nothing replicated
	assert.Empty(t, f.out.all())

	// written through to the mirror
	snap := f.mirror.Load(ctx)
	require.NotNil(t, snap)
	assert.Equal(t, state, *snap)
}

func TestStore_DecreaseQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.AddToCart(ctx, phone())
	f.store.AddToCart(ctx, phone())

	state := f.store.DecreaseQuantity(ctx, "p1")
	assert.Equal(t, 1, state.Cart[0].Quantity)

	state = f.store.DecreaseQuantity(ctx, "p1")
	require.Len(t, state.Cart, 1)
	assert.Equal(t, 1, state.Cart[0].Quantity)

	state = f.store.DecreaseQuantity(ctx, "missing")
	assert.Equal(t, 1, state.Cart[0].Quantity)
}

func TestStore_RemoveAndResetCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.AddToCart(ctx, phone())
	f.store.AddToCart(ctx, headset())

	state := f.store.RemoveFromCart(ctx, "p1")
	require.Len(t, state.Cart, 1)
	assert.Equal(t, "p2", state.Cart[0].ID)

	state = f.store.RemoveFromCart(ctx, "missing")
	assert.Len(t, state.Cart, 1)

	state = f.store.ResetCart(ctx)
	assert.NotNil(t, state.Cart)
	assert.Empty(t, state.Cart)
}

func TestStore_ToggleFavorite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := f.store.ToggleFavorite(ctx, phone())
	require.Len(t, state.Favorites, 1)

	state = f.store.ToggleFavorite(ctx, headset())
	require.Len(t, state.Favorites, 2)

	state = f.store.ToggleFavorite(ctx, phone())
	require.Len(t, state.Favorites, 1)
	assert.Equal(t, "p2", state.Favorites[0].ID)

	state = f.store.RemoveFromFavorite(ctx, "p2")
	assert.Empty(t, state.Favorites)

	f.store.ToggleFavorite(ctx, phone())
	state = f.store.ResetFavorites(ctx)
	assert.NotNil(t, state.Favorites)
	assert.Empty(t, state.Favorites)
}

func TestStore_ReplicatesForSignedInUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.SetUser(ctx, domain.User{ID: "u1", Email: "ada@example.com"})
	f.store.AddToCart(ctx, phone())
	f.store.ToggleFavorite(ctx, headset())

	writes := f.out.all()
	require.Len(t, writes, 2)

	assert.Equal(t, "carts/u1", writes[0].Key())
	var cart []domain.CartLine
	require.NoError(t, docstore.DecodeField(writes[0].Body, "cart", &cart))
	require.Len(t, cart, 1)
	assert.Equal(t, "p1", cart[0].ID)
	assert.Equal(t, 1, cart[0].Quantity)

	assert.Equal(t, "favorites/u1", writes[1].Key())
	var favs []domain.FavoriteItem
	require.NoError(t, docstore.DecodeField(writes[1].Body, "favorites", &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, "p2", favs[0].ID)
}

func TestStore_SetUserAndLoading(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := f.store.SetLoading(ctx, true)
	assert.True(t, state.IsLoading)

	state = f.store.SetUser(ctx, domain.User{ID: "u1"})
	assert.False(t, state.IsLoading)
	require.NotNil(t, state.CurrentUser)
	assert.Equal(t, "u1", state.CurrentUser.ID)
}

func TestStore_ClearUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.SetUser(ctx, domain.User{ID: "u1"})
	f.store.AddToCart(ctx, phone())
	f.store.ToggleFavorite(ctx, headset())

	state := f.store.ClearUser(ctx)
	assert.Nil(t, state.CurrentUser)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Cart)
	assert.Empty(t, state.Favorites)

	// snapshot removed, not re-saved
	assert.Nil(t, f.mirror.Load(ctx))
}

func TestStore_StateIsACopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.AddToCart(ctx, phone())

	state := f.store.State()
	state.Cart[0].Quantity = 99
	state.Cart = append(state.Cart, domain.CartLine{})

	assert.Len(t, f.store.State().Cart, 1)
	assert.Equal(t, 1, f.store.State().Cart[0].Quantity)
}

func TestStore_PublishesChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var mu sync.Mutex
	var seen []domain.ApplicationState
	require.NoError(t, f.bus.Subscribe(TopicStateChanged, func(state domain.ApplicationState) {
		mu.Lock()
		seen = append(seen, state)
		mu.Unlock()
	}))

	f.store.AddToCart(ctx, phone())
	f.store.SetLoading(ctx, false)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Len(t, seen[0].Cart, 1)
	assert.False(t, seen[1].IsLoading)
}

func TestStore_SnapshotFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.snaps.Fail(errors.New("quota exceeded"))

	state := f.store.AddToCart(ctx, phone())
	assert.Len(t, state.Cart, 1)
	assert.Len(t, f.store.State().Cart, 1)
}

func TestStore_Close(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AddToCart(ctx, phone())
	require.NoError(t, f.snaps.Delete(ctx, mirror.DefaultKey))

	require.NoError(t, f.store.Close(ctx))

	loaded := f.mirror.Load(ctx)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Cart, 1)

	f.snaps.Fail(errors.New("read-only"))
	assert.Error(t, f.store.Close(ctx))
}

func TestStore_KeepsUnmodeledProductFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetUser(ctx, domain.User{ID: "u1"})

	var p domain.Product
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"p1","price":10}`), &p))

	f.store.AddToCart(ctx, p)
	state := f.store.AddToCart(ctx, p)
	require.Len(t, state.Cart, 1)
	assert.Equal(t, float64(10), state.Cart[0].Attributes["price"])

	raw, err := f.snaps.Get(ctx, mirror.DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":10`)

	snap := f.mirror.Load(ctx)
	require.NotNil(t, snap)
	assert.Equal(t, state, *snap)

	writes := f.out.all()
	require.Len(t, writes, 2)
	lines, ok := writes[1].Body["cart"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, map[string]any{
		"_id":             "p1",
		"name":            "",
		"regularPrice":    float64(0),
		"discountedPrice": float64(0),
		"price":           float64(10),
		"quantity":        float64(2),
	}, lines[0])
}

func TestStore_CartAndFavoriteSequences(t *testing.T) {
	ctx := context.Background()
	products := make([]domain.Product, 5)
	for i := range products {
		products[i] = domain.Product{ID: fmt.Sprintf("p%d", i), RegularPrice: 10, DiscountedPrice: 8}
	}

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			f := newFixture(t)
			r := rand.New(rand.NewSource(seed))

			for step := 0; step < 100; step++ {
				p := products[r.Intn(len(products))]

				var state domain.ApplicationState
				switch r.Intn(4) {
				case 0:
					state = f.store.AddToCart(ctx, p)
				case 1:
					state = f.store.DecreaseQuantity(ctx, p.ID)
				case 2:
					state = f.store.RemoveFromCart(ctx, p.ID)
				case 3:
					before := f.store.State().Favorites
					f.store.ToggleFavorite(ctx, p)
					state = f.store.ToggleFavorite(ctx, p)
					assert.ElementsMatch(t, before, state.Favorites, "step %d", step)
					state = f.store.ToggleFavorite(ctx, p)
				}

				seen := make(map[string]bool)
				for _, line := range state.Cart {
					assert.False(t, seen[line.ID], "step %d: %s listed twice", step, line.ID)
					assert.GreaterOrEqual(t, line.Quantity, 1, "step %d", step)
					seen[line.ID] = true
				}

				favs := make(map[string]bool)
				for _, item := range state.Favorites {
					assert.False(t, favs[item.ID], "step %d: %s favorited twice", step, item.ID)
					favs[item.ID] = true
				}
			}
		})
	}
}
