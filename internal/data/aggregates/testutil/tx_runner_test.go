package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

func TestInjectedTxRunner(t *testing.T) {
	bodyErr := errors.New("boom")
	commitErr := errors.New("commit failed")

	cases := []struct {
		name    string
		runner  *InjectedTxRunner
		body    error
		wantErr error
		want    TxCounts
	}{
		{name: "commit", runner: &InjectedTxRunner{}, want: TxCounts{Begin: 1, Commit: 1}},
		{name: "body error", runner: &InjectedTxRunner{}, body: bodyErr, wantErr: bodyErr, want: TxCounts{Begin: 1, Rollback: 1}},
		{name: "commit error", runner: &InjectedTxRunner{FailCommit: commitErr}, wantErr: commitErr, want: TxCounts{Begin: 1, Rollback: 1}},
		{name: "begin error", runner: &InjectedTxRunner{FailBegin: commitErr}, wantErr: commitErr, want: TxCounts{Begin: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			err := tc.runner.InTx(context.Background(), func(dbc dbctx.Context) error {
				called = true
				if dbc.Tx != nil {
					t.Fatalf("injected runner must not expose a tx")
				}
				return tc.body
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err: want=%v got=%v", tc.wantErr, err)
			}
			if got := tc.runner.Counts(); got != tc.want {
				t.Fatalf("counts: want=%+v got=%+v", tc.want, got)
			}
			if tc.runner.FailBegin == nil && !called {
				t.Fatalf("expected body to run")
			}
		})
	}
}
