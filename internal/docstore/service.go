// Package docstore is the adapter between the state store and the hosted
// document database. Documents are read and written whole.
package docstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Service interface {
	// ReadDocument returns nil, nil when the document does not exist.
	ReadDocument(ctx context.Context, collection, id string) (domain.Document, error)
	// WriteDocument replaces the document with body.
	WriteDocument(ctx context.Context, collection, id string, body domain.Document) error
}

type service struct {
	log     zerolog.Logger
	repo    domain.DocumentRepo
	timeout time.Duration
}

func NewService(log logger.Logger, repo domain.DocumentRepo, timeout time.Duration) Service {
	return &service{
		log:     log.With().Str("module", "docstore").Logger(),
		repo:    repo,
		timeout: timeout,
	}
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.repo.Read(ctx, collection, id)
	if err != nil {
		s.log.Debug().Err(err).Str("collection", collection).Str("id", id).Msg("read failed")
		return nil, err
	}

	return doc, nil
}

func (s *service) WriteDocument(ctx context.Context, collection, id string, body domain.Document) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Write(ctx, collection, id, body); err != nil {
		return err
	}

	s.log.Trace().Str("collection", collection).Str("id", id).Msg("write done")

	return nil
}

// ToDocument converts a value into a plain document tree using its JSON
// field names. Backends only ever see maps, slices and scalars.
func ToDocument(v any) (domain.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode document")
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "could not build document")
	}

	return doc, nil
}

// Decode fills out from a document using JSON field names. Embedded structs
// are flattened and numeric strings are accepted where numbers are expected.
func Decode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "could not create decoder")
	}

	if err := dec.Decode(in); err != nil {
		return errors.Wrap(err, "could not decode document")
	}

	return nil
}

// DecodeField decodes doc[field] into out. A missing field leaves out
// untouched.
func DecodeField(doc domain.Document, field string, out any) error {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil
	}
	return Decode(v, out)
}
