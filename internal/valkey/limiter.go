package valkey

import (
	"context"
	"time"

	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
)

const (
	failurePrefix = "supergear:signin:failures:"
	lockoutPrefix = "supergear:signin:lockout:"
)

// Limiter counts failed sign-ins in Valkey so lockouts survive restarts and
// are shared between instances.
type Limiter struct {
	log     zerolog.Logger
	client  valkey.Client
	window  time.Duration
	lockout time.Duration
}

func NewLimiter(log logger.Logger, client valkey.Client, window, lockout time.Duration) *Limiter {
	return &Limiter{
		log:     log.With().Str("repo", "valkey-limiter").Logger(),
		client:  client,
		window:  window,
		lockout: lockout,
	}
}

func (l *Limiter) IsLockedOut(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Do(ctx, l.client.B().Exists().Key(lockoutPrefix+key).Build()).AsInt64()
	if err != nil {
		return false, errors.Wrap(err, "failed to check lockout")
	}
	return n > 0, nil
}

func (l *Limiter) IncrementFailure(ctx context.Context, key string) (int64, error) {
	k := failurePrefix + key

	count, err := l.client.Do(ctx, l.client.B().Incr().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, errors.Wrap(err, "failed to increment failures")
	}

	if count == 1 {
		cmd := l.client.B().Expire().Key(k).Seconds(int64(l.window.Seconds())).Build()
		if err := l.client.Do(ctx, cmd).Error(); err != nil {
			l.log.Warn().Err(err).Msg("could not set failure window")
		}
	}

	return count, nil
}

func (l *Limiter) ClearFailures(ctx context.Context, key string) error {
	if err := l.client.Do(ctx, l.client.B().Del().Key(failurePrefix+key).Build()).Error(); err != nil {
		return errors.Wrap(err, "failed to clear failures")
	}
	return nil
}

func (l *Limiter) SetLockout(ctx context.Context, key string) error {
	cmd := l.client.B().Set().Key(lockoutPrefix + key).Value("1").ExSeconds(int64(l.lockout.Seconds())).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		return errors.Wrap(err, "failed to set lockout")
	}
	return l.ClearFailures(ctx, key)
}
