package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
)

func TestMapErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"record not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, domainagg.CodeConflict},
		{"turn index collision", &pgconn.PgError{Code: "23505", ConstraintName: "idx_turn_session_index"}, domainagg.CodeConflict},
		{"wrapped collision", fmt.Errorf("insert turn: %w", &pgconn.PgError{Code: "23505"}), domainagg.CodeConflict},
		{"not null", &pgconn.PgError{Code: "23502"}, domainagg.CodeValidation},
		{"foreign key", &pgconn.PgError{Code: "23503"}, domainagg.CodeValidation},
		{"serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeRetryable},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domainagg.CodeRetryable},
		{"deadline", context.DeadlineExceeded, domainagg.CodeRetryable},
		{"other", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domainagg.CodeOf(MapError("op", tc.err))
			if got != tc.want {
				t.Fatalf("code: want=%s got=%s", tc.want, got)
			}
		})
	}
}

func TestMapErrorPassesAggregateErrorsThrough(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeQuotaExceeded, "op", "monthly_limit_reached", nil)
	wrapped := fmt.Errorf("commit: %w", in)
	if out := MapError("other", wrapped); out != wrapped {
		t.Fatalf("expected passthrough, got=%v", out)
	}
}

func TestMapErrorKeepsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505"}
	var got *pgconn.PgError
	if !errors.As(MapError("op", pgErr), &got) || got != pgErr {
		t.Fatalf("mapped error should unwrap to the pg error")
	}
}
