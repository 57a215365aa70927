package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/jobs/queue"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
)

type fakeUserCards struct {
	rows    map[uuid.UUID]*kb.UserCard
	updated map[uuid.UUID][]float32
	missing []uuid.UUID
}

func (f *fakeUserCards) GetByIDAnyOwner(_ dbctx.Context, id uuid.UUID) (*kb.UserCard, error) {
	return f.rows[id], nil
}

func (f *fakeUserCards) UpdateEmbedding(_ dbctx.Context, id uuid.UUID, emb []float32) error {
	f.updated[id] = emb
	return nil
}

func (f *fakeUserCards) ListMissingEmbedding(_ dbctx.Context, limit int) ([]uuid.UUID, error) {
	return f.missing, nil
}

type fakePublicCards struct {
	rows    map[uuid.UUID]*kb.PublicCard
	updated map[uuid.UUID][]float32
	missing []uuid.UUID
}

func (f *fakePublicCards) GetByID(_ dbctx.Context, id uuid.UUID) (*kb.PublicCard, error) {
	return f.rows[id], nil
}

func (f *fakePublicCards) UpdateEmbedding(_ dbctx.Context, id uuid.UUID, emb []float32) error {
	f.updated[id] = emb
	return nil
}

func (f *fakePublicCards) ListMissingEmbedding(_ dbctx.Context, limit int) ([]uuid.UUID, error) {
	return f.missing, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, provider.ErrProvider
}

func cardJob(t *testing.T, typ string, id uuid.UUID) queue.Job {
	t.Helper()
	job, err := queue.NewJob(typ, CardPayload{CardID: id})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func TestEmbedUserCardHandler(t *testing.T) {
	id := uuid.New()
	store := &fakeUserCards{
		rows:    map[uuid.UUID]*kb.UserCard{id: {ID: id, UserID: uuid.New(), Title: "Standup", Content: "Yesterday I fixed the flaky test."}},
		updated: map[uuid.UUID][]float32{},
	}
	h := NewEmbedUserCardHandler(testLogger(t), store, provider.NewMockEmbedder())

	if err := h.Run(context.Background(), cardJob(t, TypeEmbedUserCard, id)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(store.updated[id]); got != kb.EmbeddingDim {
		t.Fatalf("embedding dims: want=%d got=%d", kb.EmbeddingDim, got)
	}

	// Deleted cards are a no-op, not a failure.
	if err := h.Run(context.Background(), cardJob(t, TypeEmbedUserCard, uuid.New())); err != nil {
		t.Fatalf("Run on missing card: %v", err)
	}
}

func TestEmbedPublicCardHandler(t *testing.T) {
	id := uuid.New()
	store := &fakePublicCards{
		rows:    map[uuid.UUID]*kb.PublicCard{id: {ID: id, Title: "PR template", Content: "Expected vs actual", WhenToUse: "bug reports"}},
		updated: map[uuid.UUID][]float32{},
	}
	h := NewEmbedPublicCardHandler(testLogger(t), store, provider.NewMockEmbedder())
	if err := h.Run(context.Background(), cardJob(t, TypeEmbedPublicCard, id)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := store.updated[id]; !ok {
		t.Fatalf("embedding not stored")
	}

	failing := NewEmbedPublicCardHandler(testLogger(t), store, failingEmbedder{})
	if err := failing.Run(context.Background(), cardJob(t, TypeEmbedPublicCard, id)); !errors.Is(err, provider.ErrProvider) {
		t.Fatalf("err: want ErrProvider got=%v", err)
	}
}

func TestEmbedHandlerRejectsBadPayload(t *testing.T) {
	h := NewEmbedUserCardHandler(testLogger(t), &fakeUserCards{}, provider.NewMockEmbedder())
	job := queue.Job{ID: "x", Type: TypeEmbedUserCard, Payload: json.RawMessage(`{"card_id": "not-a-uuid"}`)}
	var perm *PermanentError
	if err := h.Run(context.Background(), job); !errors.As(err, &perm) {
		t.Fatalf("err: want PermanentError got=%v", err)
	}
}

func TestBackfillEnqueuesDeduplicatedJobs(t *testing.T) {
	q := queue.NewMemory(5)
	enq := NewEnqueuer(q)
	users := &fakeUserCards{missing: []uuid.UUID{uuid.New(), uuid.New()}}
	public := &fakePublicCards{missing: []uuid.UUID{uuid.New()}}

	res, err := Backfill(context.Background(), testLogger(t), enq, users, public, 0)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if res.UserCards != 2 || res.PublicCards != 1 {
		t.Fatalf("result: got=%+v", res)
	}
	// A second run while the first jobs are pending adds nothing.
	if _, err := Backfill(context.Background(), testLogger(t), enq, users, public, 0); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n, _ := q.Len(context.Background()); n != 3 {
		t.Fatalf("pending: want=3 got=%d", n)
	}
}
