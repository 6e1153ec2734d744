package database

import (
	"context"
	"strings"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type credentialRecord struct {
	UserID       string    `gorm:"primaryKey;column:user_id"`
	Email        string    `gorm:"uniqueIndex;column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (credentialRecord) TableName() string {
	return "credentials"
}

type CredentialRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewCredentialRepo(log logger.Logger, db *DB) domain.CredentialRepo {
	return &CredentialRepo{
		log: log.With().Str("repo", "credential").Logger(),
		db:  db,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *CredentialRepo) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var rec credentialRecord
	err := r.db.Get().WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find credential")
	}

	return &domain.Credential{
		UserID:       rec.UserID,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

func (r *CredentialRepo) Store(ctx context.Context, credential domain.Credential) error {
	rec := credentialRecord{
		UserID:       credential.UserID,
		Email:        normalizeEmail(credential.Email),
		PasswordHash: credential.PasswordHash,
		CreatedAt:    credential.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := r.db.Get().WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "failed to store credential")
	}

	r.log.Debug().Str("user_id", rec.UserID).Msg("credential stored")

	return nil
}
