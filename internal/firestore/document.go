package firestore

import (
	"context"
	"strings"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type DocumentRepo struct {
	log    zerolog.Logger
	client *firestore.Client
}

func NewDocumentRepo(log logger.Logger, client *Client) *DocumentRepo {
	r := &DocumentRepo{log: log.With().Str("repo", "firestore").Logger()}
	if client != nil {
		r.client = client.Client
	}
	return r
}

func (r *DocumentRepo) ref(collection, id string) (*firestore.DocumentRef, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("firestore client is nil")
	}

	id = strings.TrimSpace(id)
	if collection == "" || id == "" {
		return nil, errors.Errorf("invalid document path %q/%q", collection, id)
	}

	return r.client.Collection(collection).Doc(id), nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Read returns nil, nil when the document does not exist.
func (r *DocumentRepo) Read(ctx context.Context, collection, id string) (domain.Document, error) {
	ref, err := r.ref(collection, id)
	if err != nil {
		return nil, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s/%s", collection, id)
	}

	return snap.Data(), nil
}

// Write overwrites the full document.
func (r *DocumentRepo) Write(ctx context.Context, collection, id string, body domain.Document) error {
	ref, err := r.ref(collection, id)
	if err != nil {
		return err
	}

	if _, err := ref.Set(ctx, map[string]any(body)); err != nil {
		return errors.Wrapf(err, "failed to write %s/%s", collection, id)
	}

	r.log.Trace().Str("collection", collection).Str("id", id).Msg("document written")

	return nil
}
