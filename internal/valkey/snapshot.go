package valkey

import (
	"context"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
)

// SnapshotRepo keeps mirror snapshots as plain string keys.
type SnapshotRepo struct {
	log    zerolog.Logger
	client valkey.Client
}

func NewSnapshotRepo(log logger.Logger, client valkey.Client) domain.SnapshotRepo {
	return &SnapshotRepo{
		log:    log.With().Str("repo", "valkey-snapshot").Logger(),
		client: client,
	}
}

func (r *SnapshotRepo) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Do(ctx, r.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to get snapshot %s", key)
	}

	return data, nil
}

func (r *SnapshotRepo) Put(ctx context.Context, key string, data []byte) error {
	cmd := r.client.B().Set().Key(key).Value(valkey.BinaryString(data)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return errors.Wrapf(err, "failed to put snapshot %s", key)
	}

	return nil
}

func (r *SnapshotRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(key).Build()).Error(); err != nil {
		return errors.Wrapf(err, "failed to delete snapshot %s", key)
	}

	return nil
}
