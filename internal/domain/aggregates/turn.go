package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

// TurnAggregate owns per-session turn progression.
//
// Failures return *Error with CodeValidation, CodeNotFound, CodeQuotaExceeded,
// CodeConflict, CodeRetryable or CodeInternal.
type TurnAggregate interface {
	// CommitTurn allocates the next turn index and persists the turn, its error
	// events and, when ConsumeQuota is set, exactly one usage entry.
	CommitTurn(ctx context.Context, in CommitTurnInput) (CommitTurnResult, error)
}

type CommitTurnInput struct {
	UserID    uuid.UUID
	SessionID uuid.UUID

	UserInput     string
	Intent        trainer.Intent
	UserCardIDs   []uuid.UUID
	PublicCardIDs []uuid.UUID
	Feedback      trainer.Feedback
	Status        string
	Latency       time.Duration

	// ConsumeQuota re-checks quota under the profile lock and appends one ledger unit.
	ConsumeQuota bool
	Now          time.Time
}

type CommitTurnResult struct {
	Turn        trainer.TrainingTurn
	ErrorEvents int
	Quota       billing.QuotaDecision
	Attempts    int
}
