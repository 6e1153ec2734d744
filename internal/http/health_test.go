package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDBPinger struct {
	mock.Mock
}

func (m *MockDBPinger) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pingErr error
		pinged  bool
		closed  bool
		status  int
		body    string
	}{
		{"liveness", "/liveness", nil, false, false, http.StatusOK, "OK"},
		{"liveness while closing", "/liveness", nil, false, true, http.StatusOK, "OK"},
		{"ready", "/readiness", nil, true, false, http.StatusOK, "OK"},
		{"database down", "/readiness", errors.New("database is locked"), true, false, http.StatusInternalServerError, "Unhealthy. Database unreachable"},
		{"outbox closed", "/readiness", nil, true, true, http.StatusInternalServerError, "Unhealthy. Remote writes stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockDBPinger)
			if tt.pinged {
				db.On("Ping").Return(tt.pingErr).Once()
			}

			r := chi.NewRouter()
			newHealthHandler(encoder{}, db, &fakeOutbox{closed: tt.closed}).Routes(r)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.body, rr.Body.String())
			db.AssertExpectations(t)
		})
	}
}
