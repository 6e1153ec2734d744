// Package outbox delivers remote document writes in the background.
//
// Writes are coalesced per document so only the latest body for a document
// is ever pending. A single worker delivers them with exponential backoff.
// Writes that run out of attempts are parked until Redrive is called.
package outbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("outbox is full")
	ErrClosed    = errors.New("outbox is closed")
)

type Config struct {
	QueueSize       int
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func ConfigFrom(cfg domain.OutboxConfig) Config {
	return Config{
		QueueSize:       cfg.QueueSize,
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: time.Duration(cfg.InitialInterval) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.MaxInterval) * time.Millisecond,
	}
}

type Stats struct {
	Pending   int    `json:"pending"`
	Parked    int    `json:"parked"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

type Outbox struct {
	log  zerolog.Logger
	docs docstore.Service
	cfg  Config

	maxAttempts atomic.Int64

	mu      sync.Mutex
	pending map[string]domain.RemoteWrite
	order   []string
	parked  map[string]domain.RemoteWrite

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	wake      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// New starts the delivery worker.
func New(log logger.Logger, docs docstore.Service, cfg Config) *Outbox {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 250 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}

	o := &Outbox{
		log:     log.With().Str("module", "outbox").Logger(),
		docs:    docs,
		cfg:     cfg,
		pending: make(map[string]domain.RemoteWrite),
		parked:  make(map[string]domain.RemoteWrite),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	o.maxAttempts.Store(int64(cfg.MaxAttempts))
	o.ctx, o.cancel = context.WithCancel(context.Background())

	go o.run()

	return o
}

// SetMaxAttempts changes the attempt limit for deliveries that start later.
func (o *Outbox) SetMaxAttempts(n int) {
	if n > 0 {
		o.maxAttempts.Store(int64(n))
	}
}

// Dispatch queues w and returns immediately. A newer write for the same
// document replaces a pending or parked one.
func (o *Outbox) Dispatch(w domain.RemoteWrite) error {
	select {
	case <-o.closing:
		return ErrClosed
	default:
	}

	key := w.Key()

	o.mu.Lock()
	delete(o.parked, key)
	if _, ok := o.pending[key]; ok {
		o.pending[key] = w
		o.mu.Unlock()
		return nil
	}
	if len(o.pending) >= o.cfg.QueueSize {
		o.mu.Unlock()
		o.dropped.Add(1)
		o.log.Warn().Str("document", key).Int("queue_size", o.cfg.QueueSize).Msg("outbox full, dropping write")
		return ErrQueueFull
	}
	o.pending[key] = w
	o.order = append(o.order, key)
	o.mu.Unlock()

	o.signal()

	return nil
}

func (o *Outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Redrive moves parked writes back to the queue and returns how many moved.
func (o *Outbox) Redrive() int {
	o.mu.Lock()
	moved := 0
	for key, w := range o.parked {
		if len(o.pending) >= o.cfg.QueueSize {
			break
		}
		delete(o.parked, key)
		if _, ok := o.pending[key]; ok {
			continue
		}
		o.pending[key] = w
		o.order = append(o.order, key)
		moved++
	}
	o.mu.Unlock()

	if moved > 0 {
		o.log.Info().Int("writes", moved).Msg("redriving parked writes")
		o.signal()
	}

	return moved
}

func (o *Outbox) Stats() Stats {
	o.mu.Lock()
	pending, parked := len(o.pending), len(o.parked)
	o.mu.Unlock()

	return Stats{
		Pending:   pending,
		Parked:    parked,
		Delivered: o.delivered.Load(),
		Failed:    o.failed.Load(),
		Dropped:   o.dropped.Load(),
	}
}

func (o *Outbox) next() (domain.RemoteWrite, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.order) > 0 {
		key := o.order[0]
		o.order = o.order[1:]
		if w, ok := o.pending[key]; ok {
			delete(o.pending, key)
			return w, true
		}
	}

	return domain.RemoteWrite{}, false
}

func (o *Outbox) run() {
	defer close(o.done)

	for {
		w, ok := o.next()
		if !ok {
			select {
			case <-o.wake:
				continue
			case <-o.closing:
				return
			case <-o.ctx.Done():
				return
			}
		}

		o.deliver(w)

		if o.ctx.Err() != nil {
			return
		}
	}
}

func (o *Outbox) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.InitialInterval
	b.MaxInterval = o.cfg.MaxInterval
	b.MaxElapsedTime = 0

	retries := uint64(o.maxAttempts.Load() - 1)

	return backoff.WithContext(backoff.WithMaxRetries(b, retries), o.ctx)
}

func (o *Outbox) deliver(w domain.RemoteWrite) {
	log := o.log.With().Str("document", w.Key()).Logger()

	attempt := 0
	op := func() error {
		attempt++
		return o.docs.WriteDocument(o.ctx, w.Collection, w.DocID, w.Body)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("remote write failed")
	}

	if err := backoff.RetryNotify(op, o.policy(), notify); err != nil {
		o.failed.Add(1)
		log.Error().Err(err).Int("attempts", attempt).Msg("remote write gave up")
		o.park(w)
		return
	}

	o.delivered.Add(1)
	log.Trace().Int("attempts", attempt).Msg("remote write delivered")
}

// park keeps w for a later redrive unless a newer write is already queued.
func (o *Outbox) park(w domain.RemoteWrite) {
	key := w.Key()

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.pending[key]; ok {
		return
	}
	o.parked[key] = w
}

// Closed reports whether Close has been called.
func (o *Outbox) Closed() bool {
	select {
	case <-o.closing:
		return true
	default:
		return false
	}
}

// Close stops accepting writes and waits for pending ones until ctx is done.
// Whatever is left after that is abandoned.
func (o *Outbox) Close(ctx context.Context) {
	o.closeOnce.Do(func() { close(o.closing) })

	select {
	case <-o.done:
	case <-ctx.Done():
		o.cancel()
		<-o.done
	}
	o.cancel()

	if s := o.Stats(); s.Pending > 0 || s.Parked > 0 {
		o.log.Warn().Int("pending", s.Pending).Int("parked", s.Parked).Msg("outbox closed with undelivered writes")
	}
}
