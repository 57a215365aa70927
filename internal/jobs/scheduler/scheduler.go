// Package scheduler runs periodic maintenance on cron specs in UTC.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type Task func(ctx context.Context) error

type Scheduler struct {
	log     *logger.Logger
	metrics *observability.Metrics
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc

	mu    sync.Mutex
	names map[cron.EntryID]string
}

func New(log *logger.Logger, metrics *observability.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:     log.With("component", "Scheduler"),
		metrics: metrics,
		// SkipIfStillRunning keeps a slow backfill from overlapping itself.
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		names:  map[cron.EntryID]string{},
	}
}

// Add registers task under spec (standard 5-field or descriptors such as
// "@hourly"). An empty spec disables the task.
func (s *Scheduler) Add(name, spec string, task Task) error {
	if spec == "" {
		s.log.Info("scheduled task disabled", "task", name)
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, task) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
	s.log.Info("scheduled task", "task", name, "spec", spec)
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	if err := task(s.ctx); err != nil {
		s.metrics.IncJob("cron:"+name, "error")
		s.log.Error("scheduled task failed", "task", name, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return
	}
	s.metrics.IncJob("cron:"+name, "ok")
	s.log.Info("scheduled task finished", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Entries lists task names with their next run time.
func (s *Scheduler) Entries() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.names))
	for _, e := range s.cron.Entries() {
		out[s.names[e.ID]] = e.Next
	}
	return out
}
