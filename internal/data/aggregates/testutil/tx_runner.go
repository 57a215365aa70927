package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/english-trainer-backend/internal/data/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

// InjectedTxRunner runs aggregate bodies without a database and can fail at
// begin, before the body, or at commit. The body sees a dbctx with no Tx.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

// TxCounts is a consistent snapshot of the runner counters.
type TxCounts struct {
	Begin    int
	Commit   int
	Rollback int
}

func (r *InjectedTxRunner) Counts() TxCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return TxCounts{Begin: r.BeginCalls, Commit: r.CommitCalls, Rollback: r.RollbackCalls}
}

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin, failBeforeBody, failCommit := r.FailBegin, r.FailBeforeBody, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.rollback()
		return failBeforeBody
	}
	if fn != nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.rollback()
			return err
		}
	}
	if failCommit != nil {
		r.rollback()
		return failCommit
	}
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
	return nil
}

func (r *InjectedTxRunner) rollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}
