package auth

import (
	"context"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type localProvider struct {
	log  zerolog.Logger
	repo domain.CredentialRepo
	cost int
}

// NewLocalProvider keeps email/password accounts in repo with bcrypt hashes.
func NewLocalProvider(log logger.Logger, repo domain.CredentialRepo) Provider {
	return &localProvider{
		log:  log.With().Str("module", "auth").Str("provider", string(domain.AuthProviderLocal)).Logger(),
		repo: repo,
		cost: bcrypt.DefaultCost,
	}
}

func (p *localProvider) Name() domain.AuthProvider {
	return domain.AuthProviderLocal
}

func (p *localProvider) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if normalizeEmail(creds.Email) == "" || creds.Password == "" {
		return nil, ErrInvalidRequest
	}

	cred, err := p.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		// spend the same time as a wrong password
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &domain.Session{
		UserID:   cred.UserID,
		Email:    cred.Email,
		Provider: domain.AuthProviderLocal,
		IssuedAt: time.Now().UTC(),
	}, nil
}

func (p *localProvider) Register(ctx context.Context, reg domain.Registration) (*domain.Session, error) {
	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	existing, err := p.repo.FindByEmail(ctx, reg.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), p.cost)
	if err != nil {
		return nil, errors.Wrap(err, "could not hash password")
	}

	cred := domain.Credential{
		UserID:       uuid.NewString(),
		Email:        normalizeEmail(reg.Email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.repo.Store(ctx, cred); err != nil {
		return nil, err
	}

	p.log.Info().Str("user_id", cred.UserID).Msg("account created")

	return &domain.Session{
		UserID:   cred.UserID,
		Email:    cred.Email,
		Provider: domain.AuthProviderLocal,
		IssuedAt: cred.CreatedAt,
	}, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("supergear"), bcrypt.DefaultCost)
