package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	kbrepos "github.com/yungbote/english-trainer-backend/internal/data/repos/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
)

// Card is a ranked knowledge card as seen by prompt assembly.
type Card struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	SourceType string    `json:"source_type"`
	Owned      bool      `json:"owned"`
	Similarity float64   `json:"similarity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Filter selects user cards when OwnerID is set, curated cards otherwise.
// Curated searches always require Level and only see active cards.
type Filter struct {
	OwnerID   uuid.UUID
	Scenario  string
	Level     string
	Subskills []string
}

// KnowledgeStore ranks cards by cosine similarity to vec. A nil vec means
// filter-only ordering by recency.
type KnowledgeStore interface {
	Search(ctx context.Context, f Filter, vec []float32, topK int) ([]Card, error)
}

// RepoStore ranks candidates from Postgres in process. Cards without an
// embedding are skipped whenever vec is set.
type RepoStore struct {
	users          repos.UserCardRepo
	public         repos.PublicCardRepo
	candidateLimit int
}

func NewRepoStore(users repos.UserCardRepo, public repos.PublicCardRepo) *RepoStore {
	return &RepoStore{users: users, public: public, candidateLimit: 500}
}

func (s *RepoStore) Search(ctx context.Context, f Filter, vec []float32, topK int) ([]Card, error) {
	dbc := dbctx.Context{Ctx: ctx}
	withVec := len(vec) > 0
	var (
		cards []Card
		embs  [][]float32
	)
	if f.OwnerID != uuid.Nil {
		rows, err := s.users.ListCandidates(dbc, f.OwnerID, f.Scenario, withVec, s.candidateLimit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			cards = append(cards, Card{ID: r.ID, Title: r.Title, Content: r.Content, SourceType: r.SourceType, Owned: true, UpdatedAt: r.UpdatedAt})
			embs = append(embs, kb.DecodeEmbedding(r.Embedding))
		}
	} else {
		rows, err := s.public.ListCandidates(dbc, kbrepos.PublicCardFilter{
			Scenario:  f.Scenario,
			Level:     f.Level,
			Subskills: f.Subskills,
		}, withVec, s.candidateLimit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			cards = append(cards, Card{ID: r.ID, Title: r.Title, Content: r.Content, SourceType: r.SourceType, UpdatedAt: r.UpdatedAt})
			embs = append(embs, kb.DecodeEmbedding(r.Embedding))
		}
	}
	return rank(cards, embs, vec, topK), nil
}

func rank(cards []Card, embs [][]float32, vec []float32, topK int) []Card {
	out := make([]Card, 0, len(cards))
	for i, c := range cards {
		if len(vec) > 0 {
			if len(embs[i]) != len(vec) {
				continue
			}
			c.Similarity = Cosine(vec, embs[i])
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return rankLess(out[i], out[j]) })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// rankLess orders by similarity desc, recency desc, then id asc.
func rankLess(a, b Card) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// Cosine returns 0 for mismatched or zero-length vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
