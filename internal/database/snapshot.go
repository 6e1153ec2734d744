package database

import (
	"context"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type snapshotRecord struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (snapshotRecord) TableName() string {
	return "mirror_snapshots"
}

type SnapshotRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewSnapshotRepo(log logger.Logger, db *DB) domain.SnapshotRepo {
	return &SnapshotRepo{
		log: log.With().Str("repo", "snapshot").Logger(),
		db:  db,
	}
}

func (r *SnapshotRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var rec snapshotRecord
	err := r.db.Get().WithContext(ctx).Where("name = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to get snapshot %s", key)
	}

	return rec.Data, nil
}

func (r *SnapshotRepo) Put(ctx context.Context, key string, data []byte) error {
	rec := snapshotRecord{Name: key, Data: data, UpdatedAt: time.Now().UTC()}

	err := r.db.Get().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return errors.Wrapf(err, "failed to put snapshot %s", key)
	}

	return nil
}

func (r *SnapshotRepo) Delete(ctx context.Context, key string) error {
	if err := r.db.Get().WithContext(ctx).Where("name = ?", key).Delete(&snapshotRecord{}).Error; err != nil {
		return errors.Wrapf(err, "failed to delete snapshot %s", key)
	}

	return nil
}
