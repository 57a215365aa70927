package aggregates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

// QuotaChecker evaluates the turn quota against rows visible to dbc.Tx.
type QuotaChecker interface {
	CheckInTx(dbc dbctx.Context, userID uuid.UUID, now time.Time) (billing.QuotaDecision, error)
}

type TurnAggregateDeps struct {
	Base BaseDeps

	Sessions    repos.SessionRepo
	Turns       repos.TurnRepo
	ErrorEvents repos.ErrorEventRepo
	Profiles    repos.ProfileRepo
	Usage       repos.UsageLedgerRepo
	Quota       QuotaChecker
}

type turnAggregate struct {
	deps TurnAggregateDeps
}

func NewTurnAggregate(deps TurnAggregateDeps) domainagg.TurnAggregate {
	deps.Base = deps.Base.withDefaults()
	return &turnAggregate{deps: deps}
}

func (a *turnAggregate) CommitTurn(ctx context.Context, in domainagg.CommitTurnInput) (domainagg.CommitTurnResult, error) {
	const op = "Trainer.Turn.CommitTurn"
	var out domainagg.CommitTurnResult
	if in.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if strings.TrimSpace(in.UserInput) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_input", nil)
	}
	switch in.Status {
	case trainer.TurnStatusSuccess, trainer.TurnStatusFallback, trainer.TurnStatusError:
	default:
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown turn status %q", in.Status), nil)
	}
	if in.ConsumeQuota && in.Status != trainer.TurnStatusSuccess {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "only successful turns consume quota", nil)
	}
	if a.deps.Sessions == nil || a.deps.Turns == nil || a.deps.ErrorEvents == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "turn aggregate repos not configured", nil)
	}
	if in.ConsumeQuota && (a.deps.Profiles == nil || a.deps.Usage == nil || a.deps.Quota == nil) {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "turn aggregate billing deps not configured", nil)
	}

	now := in.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	intentJSON, err := json.Marshal(in.Intent)
	if err != nil {
		return out, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	feedbackJSON, err := json.Marshal(in.Feedback)
	if err != nil {
		return out, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	userIDs, _ := json.Marshal(nonNilIDs(in.UserCardIDs))
	publicIDs, _ := json.Marshal(nonNilIDs(in.PublicCardIDs))
	tags := distinctTags(in.Feedback.ErrorTags)

	attempts, err := executeWriteWithRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		var res domainagg.CommitTurnResult

		sess, err := a.deps.Sessions.LockByID(dbc, in.SessionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if sess == nil || sess.UserID != in.UserID {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("session not found: %s", in.SessionID), nil)
		}

		if in.ConsumeQuota {
			if _, err := a.deps.Profiles.LockByUserID(dbc, in.UserID); err != nil {
				return err
			}
			decision, err := a.deps.Quota.CheckInTx(dbc, in.UserID, now)
			if err != nil {
				return err
			}
			if !decision.Allowed {
				out.Quota = decision
				return &domainagg.Error{Code: domainagg.CodeQuotaExceeded, Op: op, Message: decision.Reason}
			}
			res.Quota = decision
		}

		// The session counter is authoritative; MaxIndex only guards against drift.
		maxIdx, err := a.deps.Turns.MaxIndex(dbc, sess.ID)
		if err != nil {
			return err
		}
		next := sess.LastTurnIndex
		if maxIdx > next {
			next = maxIdx
		}
		next++

		turn := &trainer.TrainingTurn{
			ID:                     uuid.New(),
			SessionID:              sess.ID,
			UserID:                 in.UserID,
			TurnIndex:              next,
			UserInput:              in.UserInput,
			NormalizedIntent:       datatypes.JSON(intentJSON),
			RetrievedUserCardIDs:   datatypes.JSON(userIDs),
			RetrievedPublicCardIDs: datatypes.JSON(publicIDs),
			Output:                 datatypes.JSON(feedbackJSON),
			Status:                 in.Status,
			LatencyMS:              in.Latency.Milliseconds(),
			CreatedAt:              now,
		}
		if err := a.deps.Turns.Create(dbc, turn); err != nil {
			return err
		}
		if err := a.deps.Sessions.AdvanceTurnIndex(dbc, sess.ID, next); err != nil {
			return err
		}

		if len(tags) > 0 {
			scenario := strings.TrimSpace(in.Intent.Scenario)
			if scenario == "" {
				scenario = sess.Scenario
			}
			events := make([]*trainer.ErrorEvent, 0, len(tags))
			for _, tag := range tags {
				events = append(events, &trainer.ErrorEvent{
					ID:        uuid.New(),
					UserID:    in.UserID,
					SessionID: sess.ID,
					TurnID:    turn.ID,
					Scenario:  scenario,
					ErrorTag:  tag,
					CreatedAt: now,
				})
			}
			if err := a.deps.ErrorEvents.CreateMany(dbc, events); err != nil {
				return err
			}
			res.ErrorEvents = len(events)
		}

		if in.ConsumeQuota {
			sessionID, turnID := sess.ID, turn.ID
			if err := a.deps.Usage.Append(dbc, &billing.UsageEntry{
				UserID:           in.UserID,
				Feature:          billing.FeatureTurnSubmit,
				Units:            1,
				RelatedSessionID: &sessionID,
				RelatedTurnID:    &turnID,
				CreatedAt:        now,
			}); err != nil {
				return err
			}
			res.Quota.Used++
		}

		res.Turn = *turn
		out = res
		return nil
	})
	out.Attempts = attempts
	if err != nil {
		return out, err
	}
	return out, nil
}

// distinctTags keeps first-seen order.
func distinctTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			out = append(out, id)
		}
	}
	return out
}
