package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	apperrors "github.com/yungbote/english-trainer-backend/internal/pkg/errors"
)

func TestSessionCreateDefaults(t *testing.T) {
	svc := NewSessionService(testLogger(t), newMemSessions(), &memTurns{})
	user := uuid.New()

	row, err := svc.Create(asUser(user), CreateSessionInput{Scenario: trainer.ScenarioProjectPitch, Title: strings.Repeat("t", 300)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.Track != trainer.TrackWorkplace || row.Level != trainer.LevelJunior {
		t.Fatalf("defaults: want=workplace/junior got=%s/%s", row.Track, row.Level)
	}
	if row.UserID != user {
		t.Fatalf("owner: want=%s got=%s", user, row.UserID)
	}
	if n := len([]rune(row.Title)); n != maxSessionTitle {
		t.Fatalf("title length: want=%d got=%d", maxSessionTitle, n)
	}
}

func TestSessionCreateRejects(t *testing.T) {
	svc := NewSessionService(testLogger(t), newMemSessions(), &memTurns{})
	cases := []struct {
		name string
		ctx  context.Context
		in   CreateSessionInput
		want error
	}{
		{"no caller", context.Background(), CreateSessionInput{Scenario: trainer.ScenarioPRIssue}, apperrors.ErrUnauthorized},
		{"bad scenario", asUser(uuid.New()), CreateSessionInput{Scenario: "karaoke"}, apperrors.ErrInvalidArgument},
		{"bad track", asUser(uuid.New()), CreateSessionInput{Scenario: trainer.ScenarioPRIssue, Track: "x"}, apperrors.ErrInvalidArgument},
		{"bad level", asUser(uuid.New()), CreateSessionInput{Scenario: trainer.ScenarioPRIssue, Level: "staff"}, apperrors.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(tc.ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want=%v got=%v", tc.want, err)
			}
		})
	}
}

func TestSessionOwnership(t *testing.T) {
	sessions := newMemSessions()
	turns := &memTurns{}
	svc := NewSessionService(testLogger(t), sessions, turns)
	owner, other := uuid.New(), uuid.New()

	row, err := svc.Create(asUser(owner), CreateSessionInput{Scenario: trainer.ScenarioPRIssue})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(asUser(other), row.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("foreign Get: want=ErrNotFound got=%v", err)
	}
	if err := svc.Archive(asUser(other), row.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("foreign Archive: want=ErrNotFound got=%v", err)
	}
	if _, err := svc.ListTurns(asUser(other), row.ID, 10); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("foreign ListTurns: want=ErrNotFound got=%v", err)
	}

	if err := svc.Archive(asUser(owner), row.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	active, _ := svc.List(asUser(owner), false)
	all, _ := svc.List(asUser(owner), true)
	if len(active) != 0 || len(all) != 1 {
		t.Fatalf("list: want=0/1 got=%d/%d", len(active), len(all))
	}
}

func TestSessionListTurnsOrdered(t *testing.T) {
	sessions := newMemSessions()
	turns := &memTurns{}
	svc := NewSessionService(testLogger(t), sessions, turns)
	user := uuid.New()
	row, _ := svc.Create(asUser(user), CreateSessionInput{Scenario: trainer.ScenarioPRIssue})
	for _, idx := range []int{3, 1, 2} {
		_ = turns.Create(dbcFor(), &trainer.TrainingTurn{SessionID: row.ID, UserID: user, TurnIndex: idx})
	}

	got, err := svc.ListTurns(asUser(user), row.ID, 0)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	for i, tr := range got {
		if tr.TurnIndex != i+1 {
			t.Fatalf("order[%d]: want=%d got=%d", i, i+1, tr.TurnIndex)
		}
	}
}
