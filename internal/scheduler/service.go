package scheduler

import (
	"sync"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	JobOutboxRedrive = "outbox-redrive"
	JobOutboxStats   = "outbox-stats"

	defaultRedriveSpec = "*/5 * * * *"
	statsInterval      = 15 * time.Minute
)

type Service interface {
	Start()
	Stop()
	// AddJob adds a job that runs periodically at the given interval.
	AddJob(job cron.Job, interval time.Duration, identifier string) (int, error)
	// AddJobWithSpec adds a job using a cron spec string (e.g., "0 3 * * *").
	AddJobWithSpec(job cron.Job, spec string, identifier string) (int, error)
	RemoveJobByIdentifier(id string) error
	GetNextRun(id string) (time.Time, error)
	// RescheduleOutboxRedrive replaces the redrive job's schedule.
	RescheduleOutboxRedrive(spec string) error
}

type service struct {
	log    zerolog.Logger
	config *domain.Config
	outbox Outbox

	cron *cron.Cron
	jobs map[string]cron.EntryID
	m    sync.RWMutex
}

func NewService(log logger.Logger, config *domain.Config, outbox Outbox) Service {
	return &service{
		log:    log.With().Str("module", "scheduler").Logger(),
		config: config,
		outbox: outbox,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		)),
		jobs: map[string]cron.EntryID{},
	}
}

func (s *service) Start() {
	s.log.Info().Msg("starting scheduler")

	s.cron.Start()

	s.addAppJobs()
}

func (s *service) redriveJob() *OutboxRedriveJob {
	return &OutboxRedriveJob{
		Name:   JobOutboxRedrive,
		Log:    s.log.With().Str("job", JobOutboxRedrive).Logger(),
		Outbox: s.outbox,
	}
}

func (s *service) addAppJobs() {
	spec := s.config.Outbox.RedriveSchedule
	if spec == "" {
		spec = defaultRedriveSpec
	}

	if _, err := s.AddJobWithSpec(s.redriveJob(), spec, JobOutboxRedrive); err != nil {
		s.log.Error().Err(err).Msgf("failed to add %s job, falling back to %q", JobOutboxRedrive, defaultRedriveSpec)
		if _, err := s.AddJobWithSpec(s.redriveJob(), defaultRedriveSpec, JobOutboxRedrive); err != nil {
			s.log.Error().Err(err).Msgf("failed to add %s job", JobOutboxRedrive)
		}
	}

	statsLog := s.log.With().Str("job", JobOutboxStats).Logger()
	stats := NewGenericJob(JobOutboxStats, statsLog, outboxStats(statsLog, s.outbox))
	if _, err := s.AddJob(stats, statsInterval, JobOutboxStats); err != nil {
		s.log.Error().Err(err).Msgf("failed to add %s job", JobOutboxStats)
	}
}

func (s *service) Stop() {
	s.log.Info().Msg("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *service) AddJob(job cron.Job, interval time.Duration, identifier string) (int, error) {
	return s.add(job, "@every "+interval.String(), identifier)
}

func (s *service) AddJobWithSpec(job cron.Job, spec string, identifier string) (int, error) {
	return s.add(job, spec, identifier)
}

func (s *service) add(job cron.Job, spec string, identifier string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if _, exists := s.jobs[identifier]; exists {
		return 0, errors.Errorf("job with identifier %q already exists", identifier)
	}

	entryID, err := s.cron.AddJob(spec, cron.NewChain(
		cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to add job %q with spec %q", identifier, spec)
	}

	s.log.Debug().Str("identifier", identifier).Str("spec", spec).Int("entryID", int(entryID)).Msg("scheduled job added")
	s.jobs[identifier] = entryID

	return int(entryID), nil
}

func (s *service) RemoveJobByIdentifier(id string) error {
	s.m.Lock()
	defer s.m.Unlock()

	v, ok := s.jobs[id]
	if !ok {
		return nil
	}

	s.log.Debug().Msgf("scheduler.Remove: removing job: %v", id)

	s.cron.Remove(v)
	delete(s.jobs, id)

	return nil
}

func (s *service) RescheduleOutboxRedrive(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", spec)
	}

	if err := s.RemoveJobByIdentifier(JobOutboxRedrive); err != nil {
		return err
	}

	_, err := s.AddJobWithSpec(s.redriveJob(), spec, JobOutboxRedrive)
	return err
}

func (s *service) GetNextRun(id string) (time.Time, error) {
	entry := s.getEntryById(id)

	if !entry.Valid() {
		return time.Time{}, nil
	}

	return entry.Next, nil
}

func (s *service) getEntryById(id string) cron.Entry {
	s.m.RLock()
	defer s.m.RUnlock()

	v, ok := s.jobs[id]
	if !ok {
		return cron.Entry{}
	}

	return s.cron.Entry(v)
}
