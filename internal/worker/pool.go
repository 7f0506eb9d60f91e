// Package worker pulls jobs from named queues and runs their handlers.
package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/prospect/internal/domain"
)

const dequeueBlock = 5 * time.Second

// Queue is the queue-technology boundary the pool runs against.
type Queue interface {
	Dequeue(ctx context.Context, queue string, block time.Duration) (*domain.Job, error)
	Complete(ctx context.Context, job *domain.Job) error
	Retry(ctx context.Context, job *domain.Job, cause error) (requeued bool, err error)
	Fail(ctx context.Context, job *domain.Job) error
}

// Handler processes one job. payload is the decoded tagged payload for
// the job's type. A returned error sends the job through the queue's
// retry policy; handlers are idempotent by design so retries are safe.
type Handler func(ctx context.Context, job *domain.Job, payload any) error

type Pool struct {
	queue       Queue
	log         *zap.Logger
	concurrency int
	handlers    map[string]Handler
}

func NewPool(queue Queue, concurrency int, log *zap.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:       queue,
		log:         log,
		concurrency: concurrency,
		handlers:    make(map[string]Handler),
	}
}

// Register maps a queue name to its handler. Must be called before Run.
func (p *Pool) Register(queue string, h Handler) {
	p.handlers[queue] = h
}

// Run starts the configured number of workers per registered queue and
// blocks until ctx is canceled. Each worker processes one job at a time
// to completion before taking the next.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for queue, h := range p.handlers {
		for i := 0; i < p.concurrency; i++ {
			queue, h, i := queue, h, i
			g.Go(func() error {
				p.work(ctx, queue, i, h)
				return nil
			})
		}
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, queue string, id int, h Handler) {
	log := p.log.With(zap.String("queue", queue), zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue, dequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		p.process(ctx, log, job, h)
	}
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, job *domain.Job, h Handler) {
	log = log.With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt+1))

	payload, err := domain.DecodePayload(job.Type, job.Payload)
	if err != nil {
		// A payload that does not decode will never decode; no retry.
		log.Error("undecodable job payload", zap.Error(err))
		job.LastError = err.Error()
		if ferr := p.queue.Fail(ctx, job); ferr != nil {
			log.Error("recording failed job failed", zap.Error(ferr))
		}
		return
	}

	err = p.run(ctx, job, payload, h)
	if err == nil {
		if cerr := p.queue.Complete(ctx, job); cerr != nil {
			log.Error("recording completed job failed", zap.Error(cerr))
		}
		log.Info("job completed")
		return
	}

	log.Warn("job failed", zap.Error(err))
	requeued, rerr := p.queue.Retry(ctx, job, err)
	if rerr != nil {
		log.Error("retry scheduling failed", zap.Error(rerr))
		return
	}
	if requeued {
		log.Info("job scheduled for retry", zap.Time("run_at", job.RunAt))
	} else {
		log.Error("job exhausted its retry budget", zap.Int("attempts", job.Attempt))
	}
}

// run invokes the handler with panics converted to errors so a bad job
// cannot take a worker down.
func (p *Pool) run(ctx context.Context, job *domain.Job, payload any, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job, payload)
}
