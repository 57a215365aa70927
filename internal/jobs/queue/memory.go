package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is the in-process queue used when no Redis address is configured.
// Jobs do not survive a restart.
type Memory struct {
	mu          sync.Mutex
	pending     []Job
	inflight    map[string]Job
	dedupe      map[string]bool
	notify      chan struct{}
	maxAttempts int
}

func NewMemory(maxAttempts int) *Memory {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Memory{
		inflight:    map[string]Job{},
		dedupe:      map[string]bool{},
		notify:      make(chan struct{}, 1),
		maxAttempts: maxAttempts,
	}
}

func (m *Memory) Enqueue(_ context.Context, job Job) (bool, error) {
	m.mu.Lock()
	if job.DedupeKey != "" {
		if m.dedupe[job.DedupeKey] {
			m.mu.Unlock()
			return false, nil
		}
		m.dedupe[job.DedupeKey] = true
	}
	m.pending = append(m.pending, job)
	m.mu.Unlock()
	m.signal()
	return true, nil
}

func (m *Memory) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if len(m.pending) > 0 {
			job := m.pending[0]
			m.pending = m.pending[1:]
			m.inflight[job.ID] = job
			more := len(m.pending) > 0
			m.mu.Unlock()
			if more {
				m.signal()
			}
			raw, _ := json.Marshal(job)
			return &Delivery{Job: job, raw: string(raw)}, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-m.notify:
		}
	}
}

func (m *Memory) Ack(_ context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, d.Job.ID)
	if d.Job.DedupeKey != "" {
		delete(m.dedupe, d.Job.DedupeKey)
	}
	return nil
}

func (m *Memory) Nack(_ context.Context, d *Delivery) (bool, error) {
	m.mu.Lock()
	delete(m.inflight, d.Job.ID)
	job := d.Job
	job.Attempts++
	if job.Attempts >= m.maxAttempts {
		if job.DedupeKey != "" {
			delete(m.dedupe, job.DedupeKey)
		}
		m.mu.Unlock()
		return false, nil
	}
	m.pending = append(m.pending, job)
	m.mu.Unlock()
	m.signal()
	return true, nil
}

func (m *Memory) Recover(_ context.Context) (int, error) {
	m.mu.Lock()
	n := len(m.inflight)
	for id, job := range m.inflight {
		m.pending = append(m.pending, job)
		delete(m.inflight, id)
	}
	m.mu.Unlock()
	if n > 0 {
		m.signal()
	}
	return n, nil
}

func (m *Memory) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pending)), nil
}
