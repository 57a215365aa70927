package trainer

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/data/repos/testutil"
	types "github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

func TestSessionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	userID := uuid.New()
	s, err := repo.Create(dbc, &types.TrainingSession{
		UserID:   userID,
		Scenario: types.ScenarioProjectPitch,
		Track:    types.TrackJobSearch,
		Level:    types.LevelJunior,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, s.ID)
	if err != nil || got == nil || got.UserID != userID {
		t.Fatalf("GetByID: err=%v got=%+v", err, got)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v got=%+v", err, missing)
	}

	locked, err := repo.LockByID(dbc, s.ID)
	if err != nil || locked.LastTurnIndex != 0 {
		t.Fatalf("LockByID: err=%v got=%+v", err, locked)
	}
	if err := repo.AdvanceTurnIndex(dbc, s.ID, 2); err != nil {
		t.Fatalf("AdvanceTurnIndex: %v", err)
	}
	if err := repo.AdvanceTurnIndex(dbc, s.ID, 1); err != nil {
		t.Fatalf("AdvanceTurnIndex stale: %v", err)
	}
	got, _ = repo.GetByID(dbc, s.ID)
	if got.LastTurnIndex != 2 {
		t.Fatalf("last_turn_index: want=2 got=%d", got.LastTurnIndex)
	}

	if ok, err := repo.Archive(dbc, uuid.New(), s.ID); err != nil || ok {
		t.Fatalf("Archive foreign owner: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Archive(dbc, userID, s.ID); err != nil || !ok {
		t.Fatalf("Archive: ok=%v err=%v", ok, err)
	}
	if rows, err := repo.ListByUser(dbc, userID, false, 10); err != nil || len(rows) != 0 {
		t.Fatalf("ListByUser active: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListByUser(dbc, userID, true, 10); err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser all: err=%v len=%d", err, len(rows))
	}
}

func TestSessionRepoLockRequiresTx(t *testing.T) {
	repo := &sessionRepo{}
	if _, err := repo.LockByID(dbctx.Context{Ctx: context.Background()}, uuid.New()); err == nil {
		t.Fatalf("expected error without tx")
	}
}
