package aggregates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
)

// Postgres SQLSTATEs the turn commit can hit.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
	pgLockNotAvailable    = "55P03"
)

// MapError classifies a failed transaction body. Aggregate errors pass
// through unchanged. A unique violation is a conflict, which is what a
// colliding (session_id, turn_index) insert produces.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domainagg.Wrap(domainagg.CodeConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domainagg.Wrap(domainagg.CodeConflict, op, err)
		case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation:
			return domainagg.Wrap(domainagg.CodeValidation, op, err)
		case pgSerializationFail, pgDeadlockDetected, pgLockNotAvailable:
			return domainagg.Wrap(domainagg.CodeRetryable, op, err)
		}
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}
