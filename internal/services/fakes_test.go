package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/reports"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/ctxutil"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func asUser(id uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: id})
}

type memSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*trainer.TrainingSession
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[uuid.UUID]*trainer.TrainingSession{}}
}

func (m *memSessions) Create(_ dbctx.Context, row *trainer.TrainingSession) (*trainer.TrainingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()
	m.rows[row.ID] = row
	return row, nil
}

func (m *memSessions) GetByID(_ dbctx.Context, id uuid.UUID) (*trainer.TrainingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memSessions) ListByUser(_ dbctx.Context, userID uuid.UUID, includeArchived bool, _ int) ([]*trainer.TrainingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*trainer.TrainingSession
	for _, r := range m.rows {
		if r.UserID == userID && (includeArchived || !r.IsArchived) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSessions) Archive(_ dbctx.Context, userID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	r.IsArchived = true
	return true, nil
}

func (m *memSessions) LockByID(dbc dbctx.Context, id uuid.UUID) (*trainer.TrainingSession, error) {
	return m.GetByID(dbc, id)
}

func (m *memSessions) AdvanceTurnIndex(_ dbctx.Context, id uuid.UUID, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.LastTurnIndex = index
	}
	return nil
}

type memTurns struct {
	rows []*trainer.TrainingTurn
}

func (m *memTurns) Create(_ dbctx.Context, row *trainer.TrainingTurn) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *memTurns) GetByID(_ dbctx.Context, id uuid.UUID) (*trainer.TrainingTurn, error) {
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memTurns) ListBySession(_ dbctx.Context, sessionID uuid.UUID, limit int) ([]*trainer.TrainingTurn, error) {
	var out []*trainer.TrainingTurn
	for _, r := range m.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memTurns) ListByUserBetween(_ dbctx.Context, userID uuid.UUID, from, to time.Time) ([]*trainer.TrainingTurn, error) {
	var out []*trainer.TrainingTurn
	for _, r := range m.rows {
		if r.UserID == userID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTurns) MaxIndex(_ dbctx.Context, sessionID uuid.UUID) (int, error) {
	hi := 0
	for _, r := range m.rows {
		if r.SessionID == sessionID && r.TurnIndex > hi {
			hi = r.TurnIndex
		}
	}
	return hi, nil
}

type memEvents struct {
	rows []*trainer.ErrorEvent
}

func (m *memEvents) CreateMany(_ dbctx.Context, rows []*trainer.ErrorEvent) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memEvents) ListByTurn(_ dbctx.Context, turnID uuid.UUID) ([]*trainer.ErrorEvent, error) {
	var out []*trainer.ErrorEvent
	for _, r := range m.rows {
		if r.TurnID == turnID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memEvents) ListByUserBetween(_ dbctx.Context, userID uuid.UUID, from, to time.Time) ([]*trainer.ErrorEvent, error) {
	var out []*trainer.ErrorEvent
	for _, r := range m.rows {
		if r.UserID == userID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memReports struct {
	rows   []*reports.WeeklyReport
	active []uuid.UUID
}

func (m *memReports) Upsert(_ dbctx.Context, row *reports.WeeklyReport) error {
	for i, r := range m.rows {
		if r.UserID == row.UserID && r.PeriodStart.Equal(row.PeriodStart) && r.PeriodEnd.Equal(row.PeriodEnd) {
			m.rows[i] = row
			return nil
		}
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *memReports) GetLatest(_ dbctx.Context, userID uuid.UUID) (*reports.WeeklyReport, error) {
	var best *reports.WeeklyReport
	for _, r := range m.rows {
		if r.UserID == userID && (best == nil || r.PeriodEnd.After(best.PeriodEnd)) {
			best = r
		}
	}
	return best, nil
}

func (m *memReports) ListActiveUserIDs(_ dbctx.Context, _, _ time.Time) ([]uuid.UUID, error) {
	return m.active, nil
}

type memCards struct {
	rows map[uuid.UUID]*kb.UserCard
}

func newMemCards() *memCards { return &memCards{rows: map[uuid.UUID]*kb.UserCard{}} }

func (m *memCards) Create(_ dbctx.Context, row *kb.UserCard) (*kb.UserCard, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	m.rows[row.ID] = row
	return row, nil
}

func (m *memCards) GetByID(_ dbctx.Context, userID, id uuid.UUID) (*kb.UserCard, error) {
	if r, ok := m.rows[id]; ok && r.UserID == userID {
		return r, nil
	}
	return nil, nil
}

func (m *memCards) GetByIDAnyOwner(_ dbctx.Context, id uuid.UUID) (*kb.UserCard, error) {
	return m.rows[id], nil
}

func (m *memCards) ListByUser(_ dbctx.Context, userID uuid.UUID, scenario, sourceType string, _ int) ([]*kb.UserCard, error) {
	var out []*kb.UserCard
	for _, r := range m.rows {
		if r.UserID != userID {
			continue
		}
		if scenario != "" && r.Scenario != scenario {
			continue
		}
		if sourceType != "" && r.SourceType != sourceType {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memCards) Delete(_ dbctx.Context, userID, id uuid.UUID) (bool, error) {
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memCards) ListCandidates(_ dbctx.Context, _ uuid.UUID, _ string, _ bool, _ int) ([]*kb.UserCard, error) {
	return nil, nil
}

func (m *memCards) UpdateEmbedding(_ dbctx.Context, _ uuid.UUID, _ []float32) error { return nil }

func (m *memCards) ListMissingEmbedding(_ dbctx.Context, _ int) ([]uuid.UUID, error) { return nil, nil }

type usageCall struct {
	userID  uuid.UUID
	feature string
}

type fakeUsage struct {
	calls []usageCall
}

func (f *fakeUsage) RecordUsage(_ context.Context, userID uuid.UUID, feature string, _ *uuid.UUID) error {
	f.calls = append(f.calls, usageCall{userID: userID, feature: feature})
	return nil
}

type fakeEmbedQueue struct {
	ids []uuid.UUID
	err error
}

func (f *fakeEmbedQueue) EnqueueUserCardEmbedding(_ context.Context, id uuid.UUID) error {
	f.ids = append(f.ids, id)
	return f.err
}

func dbcFor() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }
