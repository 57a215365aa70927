package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

const dedupeTTL = 24 * time.Hour

// Redis keeps pending jobs on <prefix>:pending and moves each dequeued job
// atomically onto <prefix>:processing until it is acked.
type Redis struct {
	log         *logger.Logger
	rdb         goredis.UniversalClient
	pending     string
	processing  string
	dedupe      string
	maxAttempts int
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, prefix string, maxAttempts int) (*Redis, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "trainer:jobs"
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Redis{
		log:         log.With("service", "RedisQueue"),
		rdb:         rdb,
		pending:     prefix + ":pending",
		processing:  prefix + ":processing",
		dedupe:      prefix + ":dedupe:",
		maxAttempts: maxAttempts,
	}, nil
}

// Dial connects and pings, the way every Redis-backed component starts.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (q *Redis) Enqueue(ctx context.Context, job Job) (bool, error) {
	if job.DedupeKey != "" {
		ok, err := q.rdb.SetNX(ctx, q.dedupe+job.DedupeKey, job.ID, dedupeTTL).Result()
		if err != nil {
			return false, fmt.Errorf("dedupe: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if err := q.rdb.LPush(ctx, q.pending, raw).Err(); err != nil {
		return false, fmt.Errorf("lpush: %w", err)
	}
	return true, nil
}

func (q *Redis) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("blmove: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Poison entry: drop it so it cannot block the queue.
		q.log.Error("dropping undecodable job", "error", err)
		_ = q.rdb.LRem(ctx, q.processing, 1, raw).Err()
		return nil, nil
	}
	return &Delivery{Job: job, raw: raw}, nil
}

func (q *Redis) Ack(ctx context.Context, d *Delivery) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, d.raw)
		if d.Job.DedupeKey != "" {
			pipe.Del(ctx, q.dedupe+d.Job.DedupeKey)
		}
		return nil
	})
	return err
}

func (q *Redis) Nack(ctx context.Context, d *Delivery) (bool, error) {
	job := d.Job
	job.Attempts++
	requeue := job.Attempts < q.maxAttempts
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, d.raw)
		if requeue {
			pipe.LPush(ctx, q.pending, raw)
		} else if job.DedupeKey != "" {
			pipe.Del(ctx, q.dedupe+job.DedupeKey)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return requeue, nil
}

// Recover must run before any worker of this queue starts dequeuing.
func (q *Redis) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.pending, "RIGHT", "LEFT").Err()
		if errors.Is(err, goredis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("lmove: %w", err)
		}
		n++
	}
}

func (q *Redis) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.pending).Result()
}
