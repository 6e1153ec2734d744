package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/flurbudurbur/supergear/internal/auth"
	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"
	"github.com/flurbudurbur/supergear/internal/mirror"
	"github.com/flurbudurbur/supergear/internal/store"

	"github.com/asaskevich/EventBus"
	"github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventBus is a mock for EventBus.Bus
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Subscribe(topic string, fn interface{}) error {
	args := m.Called(topic, fn)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeAsync(topic string, fn interface{}, transactional bool) error {
	args := m.Called(topic, fn, transactional)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeOnce(topic string, fn interface{}) error {
	args := m.Called(topic, fn)
	return args.Error(0)
}

func (m *MockEventBus) SubscribeOnceAsync(topic string, fn interface{}) error {
	args := m.Called(topic, fn)
	return args.Error(0)
}

func (m *MockEventBus) Unsubscribe(topic string, handler interface{}) error {
	args := m.Called(topic, handler)
	return args.Error(0)
}

func (m *MockEventBus) Publish(topic string, args ...interface{}) {
	m.Called(append([]interface{}{topic}, args...)...)
}

func (m *MockEventBus) HasCallback(topic string) bool {
	args := m.Called(topic)
	return args.Bool(0)
}

func (m *MockEventBus) WaitAsync() {
	m.Called()
}

// MockSessionSource is a mock for the auth session subscription.
type MockSessionSource struct {
	mock.Mock
}

func (m *MockSessionSource) OnSessionChanged(fn func(*domain.Session)) (func(), error) {
	args := m.Called(fn)
	return func() {}, args.Error(0)
}

// MockStateStore is a mock for the store operations driven by sessions.
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) SetLoading(ctx context.Context, loading bool) domain.ApplicationState {
	m.Called(ctx, loading)
	return domain.ApplicationState{IsLoading: loading}
}

func (m *MockStateStore) SetUser(ctx context.Context, user domain.User) domain.ApplicationState {
	m.Called(ctx, user)
	return domain.ApplicationState{CurrentUser: &user}
}

func (m *MockStateStore) ClearUser(ctx context.Context) domain.ApplicationState {
	m.Called(ctx)
	return domain.ApplicationState{}
}

func (m *MockStateStore) BeginLoad(ctx context.Context, userID string) store.LoadFunc {
	args := m.Called(ctx, userID)
	return args.Get(0).(store.LoadFunc)
}

// busSessions delivers session changes the way the auth service does.
type busSessions struct {
	bus EventBus.Bus
}

func (b busSessions) OnSessionChanged(fn func(*domain.Session)) (func(), error) {
	if err := b.bus.SubscribeAsync(auth.TopicSessionChanged, fn, true); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(auth.TopicSessionChanged, fn) }, nil
}

// countingDocs reports every finished read.
type countingDocs struct {
	docstore.Service
	reads *sync.WaitGroup
}

func (c countingDocs) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	defer c.reads.Done()
	return c.Service.ReadDocument(ctx, collection, id)
}

type discardDispatcher struct{}

func (discardDispatcher) Dispatch(domain.RemoteWrite) error { return nil }

func newStore(t *testing.T, bus EventBus.Bus, reads *sync.WaitGroup) *store.Store {
	t.Helper()

	remote := docstore.NewMemoryRepo()
	remote.Put(domain.CollectionUsers, "u1", domain.Document{"email": "ada@example.com", "firstName": "Ada"})
	remote.Put(domain.CollectionCarts, "u1", domain.Document{
		"cart": []any{map[string]any{"_id": "p1", "name": "Phone", "quantity": 2}},
	})

	var docs docstore.Service = docstore.NewService(logger.Mock(), remote, time.Second)
	if reads != nil {
		docs = countingDocs{Service: docs, reads: reads}
	}

	return store.New(context.Background(), logger.Mock(), mirror.New(logger.Mock(), mirror.NewMemoryRepo(), ""), docs, discardDispatcher{}, bus)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]*sse.Event
}

func (p *recordingPublisher) Publish(id string, event *sse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]*sse.Event{}
	}
	p.events[id] = append(p.events[id], event)
}

func (p *recordingPublisher) stream(id string) []*sse.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*sse.Event(nil), p.events[id]...)
}

const (
	sessionHandlerType = "func(*domain.Session)"
	stateHandlerType   = "func(domain.ApplicationState)"
)

func TestNewSubscribers(t *testing.T) {
	mockSessions := new(MockSessionSource)
	mockBus := new(MockEventBus)
	mockStore := new(MockStateStore)

	var sessionHandler, stateHandler interface{}
	mockSessions.On("OnSessionChanged", mock.AnythingOfType(sessionHandlerType)).
		Run(func(args mock.Arguments) { sessionHandler = args.Get(0) }).
		Return(nil)
	mockBus.On("Subscribe", store.TopicStateChanged, mock.AnythingOfType(stateHandlerType)).
		Run(func(args mock.Arguments) { stateHandler = args.Get(1) }).
		Return(nil)

	publisher := &recordingPublisher{}
	_ = NewSubscribers(logger.Mock(), mockSessions, mockBus, mockStore, publisher)

	mockSessions.AssertExpectations(t)
	mockBus.AssertExpectations(t)
	require.NotNil(t, sessionHandler)
	require.NotNil(t, stateHandler)

	onSession, ok := sessionHandler.(func(*domain.Session))
	require.True(t, ok)

	loaded := make(chan struct{})
	mockStore.On("SetUser", mock.Anything, domain.User{ID: "u1", Email: "ada@example.com"}).Return().Once()
	mockStore.On("BeginLoad", mock.Anything, "u1").
		Return(store.LoadFunc(func(context.Context) (*domain.User, error) {
			close(loaded)
			return &domain.User{ID: "u1"}, nil
		})).Once()

	onSession(&domain.Session{UserID: "u1", Email: "ada@example.com"})

	select {
	case <-loaded:
	case <-time.After(time.Second):
		t.Fatal("user load was not started")
	}

	mockStore.On("ClearUser", mock.Anything).Return().Once()
	mockStore.On("SetLoading", mock.Anything, false).Return().Once()

	onSession(nil)

	mockStore.AssertExpectations(t)

	onState, ok := stateHandler.(func(domain.ApplicationState))
	require.True(t, ok)

	onState(domain.ApplicationState{IsLoading: true, Cart: []domain.CartLine{}, Favorites: []domain.FavoriteItem{}})

	events := publisher.stream(StateStream)
	require.Len(t, events, 1)
	var got domain.ApplicationState
	require.NoError(t, json.Unmarshal(events[0].Data, &got))
	assert.True(t, got.IsLoading)
}

func TestSubscriber_SessionWithoutUserID(t *testing.T) {
	mockSessions := new(MockSessionSource)
	mockBus := new(MockEventBus)
	mockStore := new(MockStateStore)

	var sessionHandler interface{}
	mockSessions.On("OnSessionChanged", mock.AnythingOfType(sessionHandlerType)).
		Run(func(args mock.Arguments) { sessionHandler = args.Get(0) }).
		Return(nil)
	mockBus.On("Subscribe", store.TopicStateChanged, mock.AnythingOfType(stateHandlerType)).Return(nil)

	_ = NewSubscribers(logger.Mock(), mockSessions, mockBus, mockStore, nil)

	mockStore.On("SetUser", mock.Anything, domain.User{Email: "ada@example.com"}).Return().Once()

	sessionHandler.(func(*domain.Session))(&domain.Session{Email: "ada@example.com"})

	mockStore.AssertExpectations(t)
	mockStore.AssertNotCalled(t, "BeginLoad", mock.Anything, mock.Anything)
}

func TestSubscriber_Register_SubscribeError(t *testing.T) {
	mockSessions := new(MockSessionSource)
	mockSessions.On("OnSessionChanged", mock.AnythingOfType(sessionHandlerType)).Return(assert.AnError)
	mockBus := new(MockEventBus)
	mockBus.On("Subscribe", store.TopicStateChanged, mock.AnythingOfType(stateHandlerType)).Return(assert.AnError)

	assert.NotPanics(t, func() {
		_ = NewSubscribers(logger.Mock(), mockSessions, mockBus, new(MockStateStore), nil)
	})
	mockSessions.AssertExpectations(t)
	mockBus.AssertExpectations(t)
}

func TestSubscriber_SignInLoadsUser(t *testing.T) {
	bus := EventBus.New()
	st := newStore(t, bus, nil)
	_ = NewSubscribers(logger.Mock(), busSessions{bus: bus}, bus, st, nil)

	bus.Publish(auth.TopicSessionChanged, &domain.Session{UserID: "u1", Email: "ada@example.com"})
	bus.WaitAsync()

	// the session user is set before the remote documents arrive
	require.NotNil(t, st.State().CurrentUser)
	assert.Equal(t, "u1", st.State().CurrentUser.ID)

	assert.Eventually(t, func() bool {
		state := st.State()
		return !state.IsLoading && state.CurrentUser != nil && state.CurrentUser.FirstName == "Ada"
	}, time.Second, 5*time.Millisecond)

	state := st.State()
	require.Len(t, state.Cart, 1)
	assert.Equal(t, 2, state.Cart[0].Quantity)
}

func TestSubscriber_SignOutRightAfterSignIn(t *testing.T) {
	for i := 0; i < 50; i++ {
		bus := EventBus.New()
		reads := &sync.WaitGroup{}
		st := newStore(t, bus, reads)
		_ = NewSubscribers(logger.Mock(), busSessions{bus: bus}, bus, st, nil)

		// user, cart and favorites
		reads.Add(3)
		bus.Publish(auth.TopicSessionChanged, &domain.Session{UserID: "u1", Email: "ada@example.com"})
		bus.Publish(auth.TopicSessionChanged, (*domain.Session)(nil))
		bus.WaitAsync()

		done := make(chan struct{})
		go func() {
			reads.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("user load did not run")
		}

		assert.Never(t, func() bool {
			return st.State().CurrentUser != nil
		}, 20*time.Millisecond, time.Millisecond, "run %d", i)

		state := st.State()
		assert.False(t, state.IsLoading, "run %d", i)
		assert.Empty(t, state.Cart, "run %d", i)
	}
}
