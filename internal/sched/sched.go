// Package sched emits jobs on fixed calendars into the named queues.
package sched

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/domain"
)

const (
	enqueueTimeout = 10 * time.Second

	defaultMaxAttempts = 3
	defaultBackoff     = 5 * time.Second
)

// Enqueuer is the queue write side.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Factory builds the payloads for one tick. Called at tick time so
// payloads can embed the current date window.
type Factory func() []any

type Scheduler struct {
	cron *cron.Cron
	q    Enqueuer
	log  *zap.Logger
}

func New(q Enqueuer, log *zap.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), q: q, log: log}
}

// Add schedules factory on expr pinned to tz. Each tick builds the
// payloads and enqueues one job per payload with the fixed retry
// policy. An enqueue failure is logged and swallowed: a bad tick must
// never crash the scheduler or block subsequent ticks.
func (s *Scheduler) Add(expr, tz, queue string, jobType domain.JobType, factory Factory) error {
	spec := expr
	if tz != "" {
		spec = "CRON_TZ=" + tz + " " + expr
	}
	_, err := s.cron.AddFunc(spec, func() { s.tick(queue, jobType, factory) })
	return err
}

func (s *Scheduler) tick(queue string, jobType domain.JobType, factory Factory) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	for _, payload := range factory() {
		raw, err := domain.EncodePayload(payload)
		if err != nil {
			s.log.Error("payload encode failed on tick",
				zap.String("queue", queue), zap.Error(err))
			continue
		}
		job := &domain.Job{
			ID:          uuid.NewString(),
			Queue:       queue,
			Type:        jobType,
			Payload:     raw,
			MaxAttempts: defaultMaxAttempts,
			Backoff:     domain.Backoff{BaseDelay: defaultBackoff},
			EnqueuedAt:  time.Now().UTC(),
		}
		if err := s.q.Enqueue(ctx, job); err != nil {
			s.log.Error("enqueue failed on tick",
				zap.String("queue", queue),
				zap.String("type", string(jobType)),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) Start()                { s.cron.Start() }
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
