package aggregates

import (
	"context"
	"sort"
	"sync"
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

// committedFixture runs every CommitTurn in its own transaction against the
// shared database, so row locks are actually contended.
type committedFixture struct {
	db    *gorm.DB
	agg   domainagg.TurnAggregate
	turns trainerrepos.TurnRepo
	usage billingrepos.UsageLedgerRepo
}

func newCommittedFixture(t *testing.T, userID uuid.UUID) committedFixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	t.Cleanup(func() { purgeUser(db, userID) })

	sessions := trainerrepos.NewSessionRepo(db, log)
	turns := trainerrepos.NewTurnRepo(db, log)
	events := trainerrepos.NewErrorEventRepo(db, log)
	profiles := billingrepos.NewProfileRepo(db, log)
	usage := billingrepos.NewUsageLedgerRepo(db, log)

	agg := NewTurnAggregate(TurnAggregateDeps{
		Base:        BaseDeps{DB: db, Log: log, Runner: NewGormTxRunner(db)},
		Sessions:    sessions,
		Turns:       turns,
		ErrorEvents: events,
		Profiles:    profiles,
		Usage:       usage,
		Quota:       ledgerQuota{profiles: profiles, usage: usage},
	})
	return committedFixture{db: db, agg: agg, turns: turns, usage: usage}
}

func purgeUser(db *gorm.DB, userID uuid.UUID) {
	for _, table := range []string{"training_error_event", "usage_ledger", "training_turn", "training_session", "billing_profile"} {
		_ = db.Exec("DELETE FROM "+table+" WHERE user_id = ?", userID).Error
	}
}

type commitOutcome struct {
	res domainagg.CommitTurnResult
	err error
}

func commitConcurrently(ctx context.Context, agg domainagg.TurnAggregate, inputs []domainagg.CommitTurnInput) []commitOutcome {
	out := make([]commitOutcome, len(inputs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in domainagg.CommitTurnInput) {
			defer wg.Done()
			<-start
			res, err := agg.CommitTurn(ctx, in)
			out[i] = commitOutcome{res: res, err: err}
		}(i, in)
	}
	close(start)
	wg.Wait()
	return out
}

func TestTurnAggregateConcurrentCommitsKeepIndicesDense(t *testing.T) {
	userID := uuid.New()
	f := newCommittedFixture(t, userID)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repotest.SeedProfile(t, ctx, f.db, userID, billing.PlanPro, billing.PlanStatusActive, 1000)
	const perSession = 6
	var sessions []*trainer.TrainingSession
	for i := 0; i < 3; i++ {
		sessions = append(sessions, repotest.SeedSession(t, ctx, f.db, userID, trainer.ScenarioProjectPitch, trainer.LevelJunior))
	}

	var inputs []domainagg.CommitTurnInput
	for i := 0; i < perSession; i++ {
		for _, s := range sessions {
			in := successInput(userID, s.ID, trainer.TagMissingMetric)
			if i%3 == 2 {
				in.Status = trainer.TurnStatusFallback
				in.ConsumeQuota = false
			}
			inputs = append(inputs, in)
		}
	}

	outcomes := commitConcurrently(ctx, f.agg, inputs)
	dbc := dbctx.Context{Ctx: ctx}
	successes := 0
	for i, o := range outcomes {
		if o.err != nil {
			t.Fatalf("commit %d: %v", i, o.err)
		}
		n, err := f.usage.CountByTurn(dbc, o.res.Turn.ID)
		if err != nil {
			t.Fatalf("CountByTurn: %v", err)
		}
		want := int64(0)
		if o.res.Turn.Status == trainer.TurnStatusSuccess {
			want = 1
			successes++
		}
		if n != want {
			t.Fatalf("ledger rows for %s turn: want=%d got=%d", o.res.Turn.Status, want, n)
		}
	}

	for _, s := range sessions {
		rows, err := f.turns.ListBySession(dbc, s.ID, 100)
		if err != nil {
			t.Fatalf("ListBySession: %v", err)
		}
		idx := make([]int, 0, len(rows))
		for _, r := range rows {
			idx = append(idx, r.TurnIndex)
		}
		sort.Ints(idx)
		if len(idx) != perSession {
			t.Fatalf("session %s turns: want=%d got=%v", s.ID, perSession, idx)
		}
		for i, n := range idx {
			if n != i+1 {
				t.Fatalf("session %s indices: want=1..%d got=%v", s.ID, perSession, idx)
			}
		}
	}

	from, to := billing.PeriodBounds(time.Now())
	used, err := f.usage.SumUnits(dbc, userID, billing.FeatureTurnSubmit, from, to)
	if err != nil {
		t.Fatalf("SumUnits: %v", err)
	}
	if used != successes {
		t.Fatalf("ledger units: want=%d got=%d", successes, used)
	}
}

func TestTurnAggregateConcurrentCommitsAtCapAdmitOne(t *testing.T) {
	userID := uuid.New()
	f := newCommittedFixture(t, userID)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const limit = 3
	repotest.SeedProfile(t, ctx, f.db, userID, billing.PlanFree, billing.PlanStatusActive, limit)
	a := repotest.SeedSession(t, ctx, f.db, userID, trainer.ScenarioPRIssue, trainer.LevelMid)
	b := repotest.SeedSession(t, ctx, f.db, userID, trainer.ScenarioProjectPitch, trainer.LevelMid)

	for i := 0; i < limit-1; i++ {
		if _, err := f.agg.CommitTurn(ctx, successInput(userID, a.ID)); err != nil {
			t.Fatalf("CommitTurn below cap: %v", err)
		}
	}

	outcomes := commitConcurrently(ctx, f.agg, []domainagg.CommitTurnInput{
		successInput(userID, a.ID),
		successInput(userID, b.ID),
		successInput(userID, a.ID),
		successInput(userID, b.ID),
	})
	admitted, denied := 0, 0
	for i, o := range outcomes {
		switch {
		case o.err == nil:
			admitted++
		case domainagg.IsCode(o.err, domainagg.CodeQuotaExceeded):
			denied++
		default:
			t.Fatalf("commit %d: unexpected error %v", i, o.err)
		}
	}
	if admitted != 1 || denied != 3 {
		t.Fatalf("outcomes: want admitted=1 denied=3 got admitted=%d denied=%d", admitted, denied)
	}

	dbc := dbctx.Context{Ctx: ctx}
	from, to := billing.PeriodBounds(time.Now())
	used, err := f.usage.SumUnits(dbc, userID, billing.FeatureTurnSubmit, from, to)
	if err != nil {
		t.Fatalf("SumUnits: %v", err)
	}
	if used != limit {
		t.Fatalf("ledger units: want=%d got=%d", limit, used)
	}
	total := 0
	for _, s := range []*trainer.TrainingSession{a, b} {
		rows, err := f.turns.ListBySession(dbc, s.ID, 100)
		if err != nil {
			t.Fatalf("ListBySession: %v", err)
		}
		total += len(rows)
	}
	if total != limit {
		t.Fatalf("persisted turns: want=%d got=%d", limit, total)
	}
}
