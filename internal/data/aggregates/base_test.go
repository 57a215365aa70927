package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

func TestExecuteWriteObservesSuccessStatus(t *testing.T) {
	hooks := &spyHooks{}
	runner := spyTxRunner{}

	err := executeWrite(context.Background(), BaseDeps{
		Runner: runner,
		Hooks:  hooks,
	}, "aggregate.test.success", func(_ dbctx.Context) error { return nil })
	if err != nil {
		t.Fatalf("executeWrite success: %v", err)
	}
	if len(hooks.Operations) != 1 {
		t.Fatalf("operations count: want=1 got=%d", len(hooks.Operations))
	}
	if hooks.Operations[0].Status != "success" {
		t.Fatalf("operation status: want=success got=%s", hooks.Operations[0].Status)
	}
}

func TestExecuteWriteObservesValidationStatus(t *testing.T) {
	hooks := &spyHooks{}
	runner := spyTxRunner{}

	err := executeWrite(context.Background(), BaseDeps{
		Runner: runner,
		Hooks:  hooks,
	}, "aggregate.test.not_null", func(_ dbctx.Context) error {
		return &pgconn.PgError{Code: "23502", ColumnName: "user_input"}
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got=%v", err)
	}
	if len(hooks.Operations) != 1 {
		t.Fatalf("operations count: want=1 got=%d", len(hooks.Operations))
	}
	if hooks.Operations[0].Status != string(domainagg.CodeValidation) {
		t.Fatalf("operation status: want=%s got=%s", domainagg.CodeValidation, hooks.Operations[0].Status)
	}
}

func TestExecuteWriteTracksConflictAndRetryCounters(t *testing.T) {
	t.Run("conflict", func(t *testing.T) {
		hooks := &spyHooks{}
		runner := spyTxRunner{}
		err := executeWrite(context.Background(), BaseDeps{
			Runner: runner,
			Hooks:  hooks,
		}, "aggregate.test.conflict", func(_ dbctx.Context) error {
			return uniqueViolation()
		})
		if err == nil {
			t.Fatalf("expected error")
		}
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			t.Fatalf("expected conflict code, got=%v", err)
		}
		if len(hooks.Conflicts) != 1 || hooks.Conflicts[0] != "aggregate.test.conflict" {
			t.Fatalf("conflict hooks: %+v", hooks.Conflicts)
		}
		if len(hooks.Retries) != 0 {
			t.Fatalf("retry hooks should be empty, got=%+v", hooks.Retries)
		}
		if len(hooks.Operations) != 1 || hooks.Operations[0].Status != string(domainagg.CodeConflict) {
			t.Fatalf("unexpected op status: %+v", hooks.Operations)
		}
	})

	t.Run("retryable", func(t *testing.T) {
		hooks := &spyHooks{}
		runner := spyTxRunner{}
		err := executeWrite(context.Background(), BaseDeps{
			Runner: runner,
			Hooks:  hooks,
		}, "aggregate.test.retry", func(_ dbctx.Context) error {
			return &pgconn.PgError{Code: "40P01"}
		})
		if err == nil {
			t.Fatalf("expected error")
		}
		if !domainagg.IsCode(err, domainagg.CodeRetryable) {
			t.Fatalf("expected retryable code, got=%v", err)
		}
		if len(hooks.Retries) != 1 || hooks.Retries[0] != "aggregate.test.retry" {
			t.Fatalf("retry hooks: %+v", hooks.Retries)
		}
		if len(hooks.Conflicts) != 0 {
			t.Fatalf("conflict hooks should be empty, got=%+v", hooks.Conflicts)
		}
		if len(hooks.Operations) != 1 || hooks.Operations[0].Status != string(domainagg.CodeRetryable) {
			t.Fatalf("unexpected op status: %+v", hooks.Operations)
		}
	})
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "idx_turn_session_index"}
}

func TestAggregateErrorStatus(t *testing.T) {
	if got := aggregateErrorStatus(nil); got != "success" {
		t.Fatalf("nil status: want=success got=%s", got)
	}
	if got := aggregateErrorStatus(&pgconn.PgError{Code: "23502"}); got != string(domainagg.CodeValidation) {
		t.Fatalf("validation status: got=%s", got)
	}
	if got := aggregateErrorStatus(uniqueViolation()); got != string(domainagg.CodeConflict) {
		t.Fatalf("conflict status: got=%s", got)
	}
	if got := aggregateErrorStatus(&pgconn.PgError{Code: "40001"}); got != string(domainagg.CodeRetryable) {
		t.Fatalf("retry status: got=%s", got)
	}
	if got := aggregateErrorStatus(context.DeadlineExceeded); got != string(domainagg.CodeRetryable) {
		t.Fatalf("deadline status: got=%s", got)
	}
}

type spyTxRunner struct{}

func (spyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type spyHooks struct {
	Operations []spyOperation
	Conflicts  []string
	Retries    []string
}

type spyOperation struct {
	Name   string
	Status string
}

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.Operations = append(h.Operations, spyOperation{Name: name, Status: status})
}

func (h *spyHooks) IncConflict(name string) {
	h.Conflicts = append(h.Conflicts, name)
}

func (h *spyHooks) IncRetry(name string) {
	h.Retries = append(h.Retries, name)
}

func TestExecuteWriteWithRetryRecoversFromConflict(t *testing.T) {
	hooks := &spyHooks{}
	calls := 0
	attempts, err := executeWriteWithRetry(context.Background(), BaseDeps{
		Runner: spyTxRunner{},
		Hooks:  hooks,
	}, "aggregate.test.retry_conflict", func(_ dbctx.Context) error {
		calls++
		if calls < 3 {
			return uniqueViolation()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("executeWriteWithRetry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts: want=3 got=%d", attempts)
	}
	if len(hooks.Conflicts) != 2 {
		t.Fatalf("conflict hooks: want=2 got=%d", len(hooks.Conflicts))
	}
}

func TestExecuteWriteWithRetryExhaustsAsRetryable(t *testing.T) {
	calls := 0
	attempts, err := executeWriteWithRetry(context.Background(), BaseDeps{
		Runner:      spyTxRunner{},
		MaxAttempts: 2,
	}, "aggregate.test.exhaust", func(_ dbctx.Context) error {
		calls++
		return uniqueViolation()
	})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("expected retryable code, got=%v", err)
	}
	if attempts != 2 || calls != 2 {
		t.Fatalf("attempts: want=2 got=%d calls=%d", attempts, calls)
	}
}

func TestExecuteWriteWithRetryDoesNotRetryOtherCodes(t *testing.T) {
	calls := 0
	_, err := executeWriteWithRetry(context.Background(), BaseDeps{
		Runner: spyTxRunner{},
	}, "aggregate.test.quota", func(_ dbctx.Context) error {
		calls++
		return domainagg.NewError(domainagg.CodeQuotaExceeded, "op", "monthly_limit_reached", nil)
	})
	if !domainagg.IsCode(err, domainagg.CodeQuotaExceeded) {
		t.Fatalf("expected quota_exceeded, got=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}
