package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRecord stores one remote document as JSON. It lets the service run
// against a plain SQL database instead of a hosted document store.
type documentRecord struct {
	Collection string    `gorm:"primaryKey;column:collection"`
	DocID      string    `gorm:"primaryKey;column:doc_id"`
	Data       []byte    `gorm:"column:data"`
	ETag       string    `gorm:"column:etag"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string {
	return "documents"
}

type DocumentRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewDocumentRepo(log logger.Logger, db *DB) domain.DocumentRepo {
	return &DocumentRepo{
		log: log.With().Str("repo", "document").Logger(),
		db:  db,
	}
}

func (r *DocumentRepo) Read(ctx context.Context, collection, id string) (domain.Document, error) {
	var rec documentRecord
	err := r.db.Get().WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read document %s/%s", collection, id)
	}

	var doc domain.Document
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode document %s/%s", collection, id)
	}

	return doc, nil
}

func (r *DocumentRepo) Write(ctx context.Context, collection, id string, body domain.Document) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to encode document %s/%s", collection, id)
	}

	rec := documentRecord{
		Collection: collection,
		DocID:      id,
		Data:       data,
		ETag:       "uuid=" + uuid.NewString(),
		UpdatedAt:  time.Now().UTC(),
	}

	err = r.db.Get().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "etag", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return errors.Wrapf(err, "failed to write document %s/%s", collection, id)
	}

	r.log.Trace().Str("collection", collection).Str("id", id).Str("etag", rec.ETag).Msg("document written")

	return nil
}
