package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/english-trainer-backend/internal/jobs/queue"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

const (
	DefaultConcurrency = 4
	dequeueWait        = 2 * time.Second
	errorBackoff       = time.Second
)

// Pool drains a queue with a fixed number of goroutines.
type Pool struct {
	log         *logger.Logger
	queue       queue.Queue
	registry    *Registry
	metrics     *observability.Metrics
	concurrency int
	jobTimeout  time.Duration
}

func NewPool(log *logger.Logger, q queue.Queue, registry *Registry, metrics *observability.Metrics, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pool{
		log:         log.With("component", "JobPool"),
		queue:       q,
		registry:    registry,
		metrics:     metrics,
		concurrency: concurrency,
		jobTimeout:  2 * time.Minute,
	}
}

// Run requeues jobs left in flight, then blocks until ctx is done and every
// worker goroutine has returned.
func (p *Pool) Run(ctx context.Context) error {
	n, err := p.queue.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover in-flight jobs: %w", err)
	}
	if n > 0 {
		p.log.Info("requeued in-flight jobs", "count", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		d, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("dequeue failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}
		if d == nil {
			continue
		}
		p.handle(ctx, d)
	}
}

// handle acks on success and nacks on failure, panic included. Ack and nack
// use a detached context so shutdown does not strand a finished job.
func (p *Pool) handle(ctx context.Context, d *queue.Delivery) {
	job := d.Job
	err := p.dispatch(ctx, job)

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err == nil {
		p.metrics.IncJob(job.Type, "ok")
		if aerr := p.queue.Ack(settleCtx, d); aerr != nil {
			p.log.Warn("ack failed", "job_id", job.ID, "job_type", job.Type, "error", aerr)
		}
		return
	}

	var permanent *PermanentError
	if errors.As(err, &permanent) {
		p.metrics.IncJob(job.Type, "dropped")
		p.log.Error("job failed permanently", "job_id", job.ID, "job_type", job.Type, "error", err)
		_ = p.queue.Ack(settleCtx, d)
		return
	}

	requeued, nerr := p.queue.Nack(settleCtx, d)
	if nerr != nil {
		p.log.Warn("nack failed", "job_id", job.ID, "job_type", job.Type, "error", nerr)
		return
	}
	if requeued {
		p.metrics.IncJob(job.Type, "retry")
		p.log.Warn("job failed, requeued", "job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts+1, "error", err)
		return
	}
	p.metrics.IncJob(job.Type, "dropped")
	p.log.Error("job failed, attempts exhausted", "job_id", job.ID, "job_type", job.Type, "attempts", job.Attempts+1, "error", err)
}

func (p *Pool) dispatch(ctx context.Context, job queue.Job) (err error) {
	h, ok := p.registry.Get(job.Type)
	if !ok {
		return &PermanentError{Err: fmt.Errorf("no handler registered for job_type=%s", job.Type)}
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job handler panic", "job_id", job.ID, "job_type", job.Type, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	jctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()
	return h.Run(jctx, job)
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
