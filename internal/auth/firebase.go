package auth

import (
	"context"
	"strings"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/firestore"
	"github.com/flurbudurbur/supergear/internal/logger"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FirebaseClient is the part of the Firebase Auth client the provider uses.
type FirebaseClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
}

// NewFirebaseClient uses the same project and credentials as the Firestore
// backend.
func NewFirebaseClient(ctx context.Context, cfg domain.RemoteConfig) (*fbauth.Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("remote.project_id is required for the firebase auth provider")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, firestore.ClientOptions(cfg)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init firebase app")
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init firebase auth")
	}

	return client, nil
}

type firebaseProvider struct {
	log    zerolog.Logger
	client FirebaseClient
}

// NewFirebaseProvider signs users in with ID tokens issued to the client by
// Firebase Authentication.
func NewFirebaseProvider(log logger.Logger, client FirebaseClient) Provider {
	return &firebaseProvider{
		log:    log.With().Str("module", "auth").Str("provider", string(domain.AuthProviderFirebase)).Logger(),
		client: client,
	}
}

func (p *firebaseProvider) Name() domain.AuthProvider {
	return domain.AuthProviderFirebase
}

func (p *firebaseProvider) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if creds.IDToken == "" {
		return nil, errors.Wrap(ErrUnsupported, "firebase sign-in needs an id token")
	}

	token, err := p.client.VerifyIDToken(ctx, creds.IDToken)
	if err != nil {
		p.log.Debug().Err(err).Msg("id token rejected")
		return nil, ErrInvalidCredentials
	}

	email, _ := token.Claims["email"].(string)

	issued := time.Now().UTC()
	if token.IssuedAt > 0 {
		issued = time.Unix(token.IssuedAt, 0).UTC()
	}

	return &domain.Session{
		UserID:   token.UID,
		Email:    email,
		Provider: domain.AuthProviderFirebase,
		IssuedAt: issued,
	}, nil
}

func (p *firebaseProvider) Register(ctx context.Context, reg domain.Registration) (*domain.Session, error) {
	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	params := (&fbauth.UserToCreate{}).
		Email(normalizeEmail(reg.Email)).
		Password(reg.Password)
	if name := strings.TrimSpace(reg.FirstName + " " + reg.LastName); name != "" {
		params = params.DisplayName(name)
	}

	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "could not create firebase user")
	}

	p.log.Info().Str("user_id", rec.UID).Msg("account created")

	return &domain.Session{
		UserID:   rec.UID,
		Email:    rec.Email,
		Provider: domain.AuthProviderFirebase,
		IssuedAt: time.Now().UTC(),
	}, nil
}
