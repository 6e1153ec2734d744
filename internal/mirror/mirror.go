// Package mirror keeps a serialized copy of the application state so it
// survives restarts.
package mirror

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultKey = "supergear-storage"

	opTimeout = 5 * time.Second
)

type Mirror interface {
	// Load returns nil when there is no usable snapshot.
	Load(ctx context.Context) *domain.ApplicationState
	Save(ctx context.Context, state domain.ApplicationState) error
	Clear(ctx context.Context) error
}

type mirror struct {
	log  zerolog.Logger
	repo domain.SnapshotRepo
	key  string
}

func New(log logger.Logger, repo domain.SnapshotRepo, key string) Mirror {
	if key == "" {
		key = DefaultKey
	}
	return &mirror{
		log:  log.With().Str("module", "mirror").Str("key", key).Logger(),
		repo: repo,
		key:  key,
	}
}

func (m *mirror) Load(ctx context.Context) *domain.ApplicationState {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := m.repo.Get(ctx, m.key)
	if err != nil {
		m.log.Warn().Err(err).Msg("could not read snapshot, starting fresh")
		return nil
	}
	if data == nil {
		return nil
	}

	var state domain.ApplicationState
	if err := json.Unmarshal(data, &state); err != nil {
		m.log.Warn().Err(err).Msg("snapshot does not decode, ignoring it")
		return nil
	}

	if state.Cart == nil {
		state.Cart = []domain.CartLine{}
	}
	if state.Favorites == nil {
		state.Favorites = []domain.FavoriteItem{}
	}

	m.log.Debug().Str("size", humanize.Bytes(uint64(len(data)))).Msg("snapshot loaded")

	return &state
}

func (m *mirror) Save(ctx context.Context, state domain.ApplicationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "could not encode snapshot")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := m.repo.Put(ctx, m.key, data); err != nil {
		return err
	}

	m.log.Trace().Str("size", humanize.Bytes(uint64(len(data)))).Msg("snapshot saved")

	return nil
}

func (m *mirror) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return m.repo.Delete(ctx, m.key)
}
