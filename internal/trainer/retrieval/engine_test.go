package retrieval

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type memCard struct {
	card     Card
	owner    uuid.UUID
	scenario string
	level    string
	subskill string
	emb      []float32
}

type memStore struct {
	mu       sync.Mutex
	cards    []memCard
	filters  []Filter
	vecs     [][]float32
	failUser bool
}

func (s *memStore) Search(_ context.Context, f Filter, vec []float32, topK int) ([]Card, error) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.vecs = append(s.vecs, vec)
	s.mu.Unlock()
	if f.OwnerID != uuid.Nil && s.failUser {
		return nil, errors.New("user cards unavailable")
	}
	subs := map[string]bool{}
	for _, sk := range f.Subskills {
		subs[sk] = true
	}
	var cards []Card
	var embs [][]float32
	for _, c := range s.cards {
		if c.owner != f.OwnerID || c.scenario != f.Scenario {
			continue
		}
		if f.OwnerID == uuid.Nil && (c.level != f.Level || (len(subs) > 0 && !subs[c.subskill])) {
			continue
		}
		if len(vec) > 0 && len(c.emb) == 0 {
			continue
		}
		cards = append(cards, c.card)
		embs = append(embs, c.emb)
	}
	return rank(cards, embs, vec, topK), nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e fakeEmbedder) EmbedText(context.Context, string) ([]float32, error) { return e.vec, e.err }

var base = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func publicCard(title, sourceType, subskill string, emb []float32, age int) memCard {
	return memCard{
		card:     Card{ID: uuid.New(), Title: title, SourceType: sourceType, UpdatedAt: base.Add(-time.Duration(age) * time.Hour)},
		scenario: trainer.ScenarioProjectPitch,
		level:    trainer.LevelJunior,
		subskill: subskill,
		emb:      emb,
	}
}

func newTestEngine(t *testing.T, store KnowledgeStore, emb fakeEmbedder) *Engine {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewEngine(log, store, emb, nil)
}

func TestRetrieveMergesUserThenExamplesThenStructural(t *testing.T) {
	userID := uuid.New()
	q := []float32{1, 0}
	store := &memStore{cards: []memCard{
		publicCard("rubric close", kb.SourceRubric, "metrics", []float32{1, 0}, 1),
		publicCard("example far", kb.SourceExample, "metrics", []float32{0, 1}, 1),
		publicCard("template mid", kb.SourceTemplate, "metrics", []float32{1, 1}, 1),
		{
			card:     Card{ID: uuid.New(), Title: "my template", SourceType: kb.UserSourceSavedTemplate, Owned: true, UpdatedAt: base},
			owner:    userID,
			scenario: trainer.ScenarioProjectPitch,
			emb:      []float32{0, 1},
		},
	}}
	e := newTestEngine(t, store, fakeEmbedder{vec: q})

	b := e.Retrieve(context.Background(), userID, trainer.ScenarioProjectPitch, trainer.LevelJunior, trainer.Intent{RetrievalQuery: "impact"})
	var titles []string
	for _, c := range b.Merged {
		titles = append(titles, c.Title)
	}
	want := []string{"my template", "example far", "rubric close", "template mid"}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Fatalf("merged order (-want +got):\n%s", diff)
	}
	if len(b.UserCards) != 1 || len(b.PublicCards) != 3 {
		t.Fatalf("split: user=%d public=%d", len(b.UserCards), len(b.PublicCards))
	}
	if b.Degraded || b.Widened {
		t.Fatalf("unexpected flags: %+v", b)
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	var user, public []Card
	for i := 0; i < 4; i++ {
		user = append(user, Card{ID: uuid.New(), Owned: true, Similarity: 0.5, UpdatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	for i := 0; i < 6; i++ {
		st := kb.SourceExample
		if i%2 == 0 {
			st = kb.SourceRubric
		}
		public = append(public, Card{ID: uuid.New(), SourceType: st, Similarity: float64(i%3) / 3, UpdatedAt: base})
	}
	want := Merge(user, public)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		u := append([]Card(nil), user...)
		p := append([]Card(nil), public...)
		rng.Shuffle(len(u), func(i, j int) { u[i], u[j] = u[j], u[i] })
		rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		if diff := cmp.Diff(want, Merge(u, p)); diff != "" {
			t.Fatalf("round %d: merge depends on input order:\n%s", round, diff)
		}
	}
	if !want[0].UpdatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("equal-similarity user cards should be most recent first")
	}
}

func TestRetrieveWidensSubskillButNeverLevel(t *testing.T) {
	q := []float32{1, 0}
	cards := []memCard{
		publicCard("metric a", kb.SourceExample, "metrics", []float32{0.2, 1}, 1),
		publicCard("metric b", kb.SourceTemplate, "metrics", []float32{0.1, 1}, 2),
	}
	for i := 0; i < 6; i++ {
		cards = append(cards, publicCard("general", kb.SourceTemplate, "general", []float32{1, 0}, 3+i))
	}
	mid := publicCard("mid level", kb.SourceExample, "metrics", []float32{1, 0}, 0)
	mid.level = trainer.LevelMid
	cards = append(cards, mid)
	store := &memStore{cards: cards}
	e := newTestEngine(t, store, fakeEmbedder{vec: q})

	b := e.Retrieve(context.Background(), uuid.New(), trainer.ScenarioProjectPitch, trainer.LevelJunior, trainer.Intent{Subskills: []string{"metrics"}, RetrievalQuery: "metrics"})
	if !b.Widened {
		t.Fatalf("expected widened retrieval")
	}
	if len(b.PublicCards) != DefaultPublicTopK {
		t.Fatalf("public cards: want=%d got=%d", DefaultPublicTopK, len(b.PublicCards))
	}
	found := map[string]int{}
	for _, c := range b.PublicCards {
		found[c.Title]++
	}
	if found["metric a"] != 1 || found["metric b"] != 1 || found["mid level"] != 0 {
		t.Fatalf("widened set: %v", found)
	}
	for _, f := range store.filters {
		if f.OwnerID == uuid.Nil && f.Level != trainer.LevelJunior {
			t.Fatalf("level filter relaxed: %+v", f)
		}
	}
}

func TestRetrieveDegradesWithoutEmbedding(t *testing.T) {
	userID := uuid.New()
	store := &memStore{cards: []memCard{
		publicCard("old", kb.SourceExample, "general", nil, 10),
		publicCard("new", kb.SourceExample, "general", []float32{1, 0}, 1),
		{card: Card{ID: uuid.New(), Owned: true}, owner: userID, scenario: trainer.ScenarioProjectPitch, emb: []float32{1, 0}},
	}}
	e := newTestEngine(t, store, fakeEmbedder{err: errors.New("embeddings 503")})

	b := e.Retrieve(context.Background(), userID, trainer.ScenarioProjectPitch, trainer.LevelJunior, trainer.Intent{RetrievalQuery: "x"})
	if !b.Degraded {
		t.Fatalf("expected degraded bundle")
	}
	if len(b.UserCards) != 0 {
		t.Fatalf("user cards: want none got=%d", len(b.UserCards))
	}
	if len(b.PublicCards) != 2 || b.PublicCards[0].Title != "new" || b.PublicCards[1].Title != "old" {
		t.Fatalf("filter-only ordering: %+v", b.PublicCards)
	}
	for i, f := range store.filters {
		if f.OwnerID != uuid.Nil {
			t.Fatalf("user cards must not be searched without a vector")
		}
		if store.vecs[i] != nil {
			t.Fatalf("curated search should be filter-only")
		}
	}
}

func TestRetrieveSurvivesUserStoreFailure(t *testing.T) {
	store := &memStore{
		failUser: true,
		cards:    []memCard{publicCard("card", kb.SourceRubric, "general", []float32{1, 0}, 1)},
	}
	e := newTestEngine(t, store, fakeEmbedder{vec: []float32{1, 0}})
	b := e.Retrieve(context.Background(), uuid.New(), trainer.ScenarioProjectPitch, trainer.LevelJunior, trainer.Intent{RetrievalQuery: "x"})
	if len(b.UserCards) != 0 || len(b.PublicCards) != 1 {
		t.Fatalf("bundle: user=%d public=%d", len(b.UserCards), len(b.PublicCards))
	}
}

func TestRankSkipsCardsWithoutEmbedding(t *testing.T) {
	cards := []Card{{ID: uuid.New(), Title: "a"}, {ID: uuid.New(), Title: "b"}}
	got := rank(cards, [][]float32{nil, {1, 0}}, []float32{1, 0}, 5)
	if len(got) != 1 || got[0].Title != "b" {
		t.Fatalf("rank: %+v", got)
	}
	if got[0].Similarity < 0.999 {
		t.Fatalf("similarity: want=1 got=%v", got[0].Similarity)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal: got=%v", got)
	}
	if got := Cosine([]float32{1, 2}, []float32{2, 4}); got < 0.999 {
		t.Fatalf("parallel: got=%v", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 2}); got != 0 {
		t.Fatalf("mismatched dims: got=%v", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Fatalf("zero vector: got=%v", got)
	}
}
