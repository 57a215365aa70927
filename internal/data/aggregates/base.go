package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

// DefaultMaxAttempts bounds conflict retries for aggregate writes.
const DefaultMaxAttempts = 3

type BaseDeps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Runner      TxRunner
	Hooks       Hooks
	MaxAttempts int
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = DefaultMaxAttempts
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

// executeWriteWithRetry reruns fn in a fresh transaction while it fails with a
// conflict. Exhausted conflicts surface as CodeRetryable. It returns the number
// of attempts made.
func executeWriteWithRetry(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) (int, error) {
	deps = deps.withDefaults()
	var err error
	for attempt := 1; attempt <= deps.MaxAttempts; attempt++ {
		err = executeWrite(ctx, deps, op, fn)
		if err == nil {
			return attempt, nil
		}
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, domainagg.Wrap(domainagg.CodeRetryable, op, ctx.Err())
		}
		if deps.Log != nil {
			deps.Log.Warn("aggregate write conflict, retrying", "op", op, "attempt", attempt, "error", err)
		}
	}
	return deps.MaxAttempts, domainagg.NewError(domainagg.CodeRetryable, op, "conflict retries exhausted", err)
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
