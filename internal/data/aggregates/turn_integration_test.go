package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	billingrepos "github.com/yungbote/english-trainer-backend/internal/data/repos/billing"
	repotest "github.com/yungbote/english-trainer-backend/internal/data/repos/testutil"
	trainerrepos "github.com/yungbote/english-trainer-backend/internal/data/repos/trainer"
	domainagg "github.com/yungbote/english-trainer-backend/internal/domain/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

// ledgerQuota mirrors the production gate: plan status plus a ledger sum.
type ledgerQuota struct {
	profiles billingrepos.ProfileRepo
	usage    billingrepos.UsageLedgerRepo
}

func (q ledgerQuota) CheckInTx(dbc dbctx.Context, userID uuid.UUID, now time.Time) (billing.QuotaDecision, error) {
	p, err := q.profiles.GetOrCreate(dbc, userID)
	if err != nil {
		return billing.QuotaDecision{}, err
	}
	from, to := billing.PeriodBounds(now)
	used, err := q.usage.SumUnits(dbc, userID, billing.FeatureTurnSubmit, from, to)
	if err != nil {
		return billing.QuotaDecision{}, err
	}
	d := billing.QuotaDecision{Allowed: true, ResetAt: to, Used: used, Limit: p.MonthlyTurnLimit}
	if used >= p.MonthlyTurnLimit {
		d.Allowed = false
		d.Reason = billing.DenyMonthlyLimitReached
	}
	return d, nil
}

type turnFixture struct {
	tx    *gorm.DB
	agg   domainagg.TurnAggregate
	turns trainerrepos.TurnRepo
	usage billingrepos.UsageLedgerRepo
	hooks *spyHooks
}

func newTurnFixture(t *testing.T) turnFixture {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)

	sessions := trainerrepos.NewSessionRepo(tx, log)
	turns := trainerrepos.NewTurnRepo(tx, log)
	events := trainerrepos.NewErrorEventRepo(tx, log)
	profiles := billingrepos.NewProfileRepo(tx, log)
	usage := billingrepos.NewUsageLedgerRepo(tx, log)
	hooks := &spyHooks{}

	agg := NewTurnAggregate(TurnAggregateDeps{
		Base: BaseDeps{
			DB:     tx,
			Log:    log,
			Runner: NewGormTxRunner(tx),
			Hooks:  hooks,
		},
		Sessions:    sessions,
		Turns:       turns,
		ErrorEvents: events,
		Profiles:    profiles,
		Usage:       usage,
		Quota:       ledgerQuota{profiles: profiles, usage: usage},
	})
	return turnFixture{tx: tx, agg: agg, turns: turns, usage: usage, hooks: hooks}
}

func successInput(userID, sessionID uuid.UUID, tags ...string) domainagg.CommitTurnInput {
	return domainagg.CommitTurnInput{
		UserID:    userID,
		SessionID: sessionID,
		UserInput: "Built a thing, it was good",
		Intent:    trainer.Intent{Scenario: trainer.ScenarioProjectPitch, Track: trainer.TrackWorkplace, RetrievalQuery: "built thing"},
		Feedback: trainer.Feedback{
			Scores:    trainer.Scores{Clarity: 3, Conciseness: 4, Correctness: 4, Tone: 3, Actionability: 2},
			ErrorTags: tags,
			Rewrites:  []trainer.Rewrite{},
			NextTask:  trainer.NextTask{Type: trainer.NextTaskFollowUpQuestion, Text: "Add a number."},
		},
		Status:       trainer.TurnStatusSuccess,
		Latency:      900 * time.Millisecond,
		ConsumeQuota: true,
	}
}

func TestTurnAggregateCommitTurnAllocatesIndicesAndLedger(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	sess := repotest.SeedSession(t, ctx, f.tx, userID, trainer.ScenarioProjectPitch, trainer.LevelJunior)
	repotest.SeedProfile(t, ctx, f.tx, userID, billing.PlanBasic, billing.PlanStatusActive, 100)

	first, err := f.agg.CommitTurn(ctx, successInput(userID, sess.ID, trainer.TagMissingMetric, trainer.TagMissingMetric, trainer.TagTooVague))
	if err != nil {
		t.Fatalf("CommitTurn first: %v", err)
	}
	second, err := f.agg.CommitTurn(ctx, successInput(userID, sess.ID))
	if err != nil {
		t.Fatalf("CommitTurn second: %v", err)
	}
	if first.Turn.TurnIndex != 1 || second.Turn.TurnIndex != 2 {
		t.Fatalf("turn indices: want=1,2 got=%d,%d", first.Turn.TurnIndex, second.Turn.TurnIndex)
	}
	if first.ErrorEvents != 2 {
		t.Fatalf("error events: want=2 got=%d", first.ErrorEvents)
	}
	if second.Quota.Used != 2 || second.Quota.Limit != 100 {
		t.Fatalf("quota after second: want used=2 limit=100 got=%+v", second.Quota)
	}
	for _, turn := range []trainer.TrainingTurn{first.Turn, second.Turn} {
		n, err := f.usage.CountByTurn(dbctx.Context{Ctx: ctx, Tx: f.tx}, turn.ID)
		if err != nil {
			t.Fatalf("CountByTurn: %v", err)
		}
		if n != 1 {
			t.Fatalf("ledger rows for turn %d: want=1 got=%d", turn.TurnIndex, n)
		}
	}
	if len(f.hooks.Operations) != 2 || f.hooks.Operations[0].Status != "success" {
		t.Fatalf("unexpected hook operations: %+v", f.hooks.Operations)
	}
}

func TestTurnAggregateCommitTurnDeniesOverQuota(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	sess := repotest.SeedSession(t, ctx, f.tx, userID, trainer.ScenarioPRIssue, trainer.LevelMid)
	repotest.SeedProfile(t, ctx, f.tx, userID, billing.PlanFree, billing.PlanStatusActive, 1)

	if _, err := f.agg.CommitTurn(ctx, successInput(userID, sess.ID)); err != nil {
		t.Fatalf("CommitTurn within quota: %v", err)
	}
	res, err := f.agg.CommitTurn(ctx, successInput(userID, sess.ID))
	if !domainagg.IsCode(err, domainagg.CodeQuotaExceeded) {
		t.Fatalf("expected quota_exceeded, got=%v", err)
	}
	if res.Quota.Reason != billing.DenyMonthlyLimitReached {
		t.Fatalf("deny reason: want=%s got=%q", billing.DenyMonthlyLimitReached, res.Quota.Reason)
	}

	dbc := dbctx.Context{Ctx: ctx, Tx: f.tx}
	maxIdx, err := f.turns.MaxIndex(dbc, sess.ID)
	if err != nil {
		t.Fatalf("MaxIndex: %v", err)
	}
	if maxIdx != 1 {
		t.Fatalf("denied submission wrote a turn: max index=%d", maxIdx)
	}
	from, to := billing.PeriodBounds(time.Now())
	used, err := f.usage.SumUnits(dbc, userID, billing.FeatureTurnSubmit, from, to)
	if err != nil {
		t.Fatalf("SumUnits: %v", err)
	}
	if used != 1 {
		t.Fatalf("ledger units: want=1 got=%d", used)
	}
}

func TestTurnAggregateFallbackConsumesNothing(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	sess := repotest.SeedSession(t, ctx, f.tx, userID, trainer.ScenarioProjectPitch, trainer.LevelIntern)

	in := successInput(userID, sess.ID)
	in.Status = trainer.TurnStatusFallback
	in.ConsumeQuota = false
	res, err := f.agg.CommitTurn(ctx, in)
	if err != nil {
		t.Fatalf("CommitTurn fallback: %v", err)
	}
	n, err := f.usage.CountByTurn(dbctx.Context{Ctx: ctx, Tx: f.tx}, res.Turn.ID)
	if err != nil {
		t.Fatalf("CountByTurn: %v", err)
	}
	if n != 0 {
		t.Fatalf("fallback ledger rows: want=0 got=%d", n)
	}
	if res.Turn.Status != trainer.TurnStatusFallback {
		t.Fatalf("turn status: want=fallback got=%s", res.Turn.Status)
	}
}

func TestTurnAggregateRejectsQuotaOnNonSuccess(t *testing.T) {
	agg := NewTurnAggregate(TurnAggregateDeps{Base: BaseDeps{Runner: spyTxRunner{}}})
	in := successInput(uuid.New(), uuid.New())
	in.Status = trainer.TurnStatusError
	_, err := agg.CommitTurn(context.Background(), in)
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got=%v", err)
	}
}

func TestTurnAggregateForeignSessionIsNotFound(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	sess := repotest.SeedSession(t, ctx, f.tx, owner, trainer.ScenarioProjectPitch, trainer.LevelJunior)

	in := successInput(uuid.New(), sess.ID)
	in.ConsumeQuota = false
	_, err := f.agg.CommitTurn(ctx, in)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found, got=%v", err)
	}
}

func TestTurnAggregateSkipsPastDriftedIndex(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	sess := repotest.SeedSession(t, ctx, f.tx, userID, trainer.ScenarioProjectPitch, trainer.LevelJunior)

	drifted := &trainer.TrainingTurn{
		ID:        uuid.New(),
		SessionID: sess.ID,
		UserID:    userID,
		TurnIndex: 5,
		UserInput: "legacy row",
		Status:    trainer.TurnStatusSuccess,
	}
	if err := f.tx.WithContext(ctx).Create(drifted).Error; err != nil {
		t.Fatalf("seed drifted turn: %v", err)
	}

	in := successInput(userID, sess.ID)
	in.ConsumeQuota = false
	res, err := f.agg.CommitTurn(ctx, in)
	if err != nil {
		t.Fatalf("CommitTurn: %v", err)
	}
	if res.Turn.TurnIndex != 6 {
		t.Fatalf("turn index: want=6 got=%d", res.Turn.TurnIndex)
	}
}
