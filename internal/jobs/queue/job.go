// Package queue is an at-least-once job queue. The Redis implementation keeps
// in-flight jobs on a processing list so a crashed worker's jobs are requeued
// on the next start.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxAttempts = 5

var ErrClosed = errors.New("queue closed")

type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	// DedupeKey suppresses a second enqueue while the first is pending.
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// NewJob marshals payload into a fresh job.
func NewJob(jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Delivery is a dequeued job. It must be acked or nacked exactly once.
type Delivery struct {
	Job Job
	raw string
}

type Queue interface {
	// Enqueue reports false when DedupeKey matched a pending job.
	Enqueue(ctx context.Context, job Job) (bool, error)
	// Dequeue blocks up to wait. It returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Nack requeues the job with Attempts+1, or drops it once MaxAttempts is
	// reached. It reports whether the job was requeued.
	Nack(ctx context.Context, d *Delivery) (bool, error)
	// Recover moves jobs left in flight by a previous process back to pending.
	Recover(ctx context.Context) (int, error)
	Len(ctx context.Context) (int64, error)
}
