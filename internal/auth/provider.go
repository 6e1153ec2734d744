package auth

import (
	"context"
	"strings"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrLockedOut          = errors.New("too many failed sign-in attempts")
	ErrUnsupported        = errors.New("operation not supported by auth provider")
	ErrInvalidRequest     = errors.New("email and password are required")
)

// Provider verifies credentials and creates accounts. It knows nothing about
// profile documents or application state.
type Provider interface {
	Name() domain.AuthProvider
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.Session, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const minPasswordLength = 6

func validateRegistration(reg domain.Registration) error {
	if normalizeEmail(reg.Email) == "" || !strings.Contains(reg.Email, "@") {
		return errors.Wrap(ErrInvalidRequest, "invalid email")
	}
	if len(reg.Password) < minPasswordLength {
		return errors.Wrapf(ErrInvalidRequest, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}
