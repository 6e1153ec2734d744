package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flurbudurbur/supergear/internal/auth"
	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.signIn(t)

	var found bool
	for _, c := range cookies {
		if c.Name == sessionCookie {
			found = true
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/", c.Path)
		}
	}
	assert.True(t, found, "session cookie not set")

	env.auth.AssertExpectations(t)
}

func TestAuthHandler_Login_CookiePathFollowsBaseURL(t *testing.T) {
	env := newTestEnv(t, "shop")
	env.auth.On("SignIn", mock.Anything, mock.Anything).Return(adaSession, nil).Once()

	rr := env.do(t, http.MethodPost, "/shop/api/auth/login", `{"email":"ada@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "/shop/", cookies[0].Path)
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"locked out", errors.Wrap(auth.ErrLockedOut, "ada@example.com"), http.StatusForbidden},
		{"unsupported", auth.ErrUnsupported, http.StatusBadRequest},
		{"backend down", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.auth.On("SignIn", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rr := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"nope"}`)
			assert.Equal(t, tt.status, rr.Code)
			assert.Empty(t, rr.Result().Cookies())
		})
	}
}

func TestAuthHandler_Login_BadBody(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPost, "/api/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env.auth.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything)
}

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t, "")
	reg := domain.Registration{Email: "ada@example.com", Password: "hunter22", FirstName: "Ada", LastName: "Lovelace"}
	env.auth.On("Register", mock.Anything, reg).Return(adaSession, nil).Once()

	rr := env.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"ada@example.com","password":"hunter22","firstName":"Ada","lastName":"Lovelace"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var got domain.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "u1", got.UserID)
	assert.NotEmpty(t, rr.Result().Cookies())

	env.auth.AssertExpectations(t)
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"email taken", auth.ErrEmailTaken, http.StatusConflict},
		{"invalid", errors.Wrap(auth.ErrInvalidRequest, "password too short"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.auth.On("Register", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rr := env.do(t, http.MethodPost, "/api/auth/register", `{"email":"ada@example.com","password":"x"}`)
			assert.Equal(t, tt.status, rr.Code)

			var body errorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	env := newTestEnv(t, "")
	cookies := env.signIn(t)
	env.auth.On("SignOut", mock.Anything).Once()

	rr := env.do(t, http.MethodPost, "/api/auth/logout", "", cookies...)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	cleared := rr.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Less(t, cleared[0].MaxAge, 0)

	env.auth.AssertExpectations(t)
}

func TestAuthHandler_Session(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodGet, "/api/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	cookies := env.signIn(t)

	env.auth.On("Current").Return(adaSession).Once()
	rr = env.do(t, http.MethodGet, "/api/auth/session", "", cookies...)
	require.Equal(t, http.StatusOK, rr.Code)

	var got domain.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, adaSession.Email, got.Email)

	// the process no longer holds the session, e.g. after a restart
	env.auth.On("Current").Return(nil).Once()
	rr = env.do(t, http.MethodGet, "/api/auth/session", "", cookies...)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	env.auth.On("Current").Return(&domain.Session{UserID: "someone-else"}).Once()
	rr = env.do(t, http.MethodGet, "/api/auth/session", "", cookies...)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReadUserIP(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", ReadUserIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", ReadUserIP(req))

	req.Header.Set("X-Real-Ip", "10.0.0.3")
	assert.Equal(t, "10.0.0.3", ReadUserIP(req))
}
