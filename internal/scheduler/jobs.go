package scheduler

import (
	"github.com/flurbudurbur/supergear/internal/outbox"

	"github.com/rs/zerolog"
)

// Outbox is the part of the outbox the scheduled jobs use.
type Outbox interface {
	Redrive() int
	Stats() outbox.Stats
}

// OutboxRedriveJob puts parked remote writes back in the queue.
type OutboxRedriveJob struct {
	Name   string
	Log    zerolog.Logger
	Outbox Outbox
}

func (j *OutboxRedriveJob) Run() {
	n := j.Outbox.Redrive()
	if n == 0 {
		j.Log.Trace().Msg("no parked writes")
		return
	}

	j.Log.Info().Int("writes", n).Msg("parked writes requeued")
}

// outboxStats logs delivery counters while anything is undelivered.
func outboxStats(log zerolog.Logger, o Outbox) func() {
	return func() {
		s := o.Stats()
		if s.Pending == 0 && s.Parked == 0 {
			return
		}

		log.Info().
			Int("pending", s.Pending).
			Int("parked", s.Parked).
			Uint64("delivered", s.Delivered).
			Uint64("failed", s.Failed).
			Uint64("dropped", s.Dropped).
			Msg("outbox backlog")
	}
}

// GenericJob runs a callback on the job's schedule.
type GenericJob struct {
	Name string
	Log  zerolog.Logger

	callback func()
}

func NewGenericJob(name string, log zerolog.Logger, callback func()) *GenericJob {
	return &GenericJob{Name: name, Log: log, callback: callback}
}

func (j *GenericJob) Run() {
	j.callback()
}
