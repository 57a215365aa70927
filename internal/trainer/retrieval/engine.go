// Package retrieval finds the knowledge cards that ground a turn's prompt:
// the learner's own cards plus curated cards for the session's scenario and
// level.
package retrieval

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
)

const (
	DefaultUserTopK   = 3
	DefaultPublicTopK = 5
)

// Bundle is the retrieval result in merged order. Degraded is set when the
// query could not be embedded; Widened when the subskill filter was dropped.
type Bundle struct {
	UserCards   []Card
	PublicCards []Card
	Merged      []Card
	Degraded    bool
	Widened     bool
}

func (b Bundle) UserCardIDs() []uuid.UUID   { return cardIDs(b.UserCards) }
func (b Bundle) PublicCardIDs() []uuid.UUID { return cardIDs(b.PublicCards) }

func cardIDs(cards []Card) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

type Engine struct {
	log        *logger.Logger
	store      KnowledgeStore
	embedder   provider.EmbeddingProvider
	metrics    *observability.Metrics
	userTopK   int
	publicTopK int
}

func NewEngine(log *logger.Logger, store KnowledgeStore, embedder provider.EmbeddingProvider, metrics *observability.Metrics) *Engine {
	return &Engine{
		log:        log.With("service", "RetrievalEngine"),
		store:      store,
		embedder:   embedder,
		metrics:    metrics,
		userTopK:   DefaultUserTopK,
		publicTopK: DefaultPublicTopK,
	}
}

// Retrieve never fails. Embedding and store errors shrink the bundle instead.
func (e *Engine) Retrieve(ctx context.Context, userID uuid.UUID, scenario, level string, in trainer.Intent) Bundle {
	ctx, span := observability.Tracer().Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.String("scenario", scenario),
		attribute.String("level", level),
		attribute.Int("subskills", len(in.Subskills)),
	))
	defer span.End()

	var out Bundle
	vec, err := e.embedder.EmbedText(ctx, in.RetrievalQuery)
	if err != nil || len(vec) == 0 {
		out.Degraded = true
		vec = nil
		e.metrics.IncRetrievalEvent("degraded")
		e.log.Warn("query embedding unavailable, using filter-only retrieval", "scenario", scenario, "error", err)
	}

	var userCards, publicCards []Card
	var widened bool
	g, gctx := errgroup.WithContext(ctx)
	if vec != nil {
		g.Go(func() error {
			cards, err := e.store.Search(gctx, Filter{OwnerID: userID, Scenario: scenario}, vec, e.userTopK)
			if err != nil {
				e.log.Warn("user card search failed", "user_id", userID, "error", err)
				return nil
			}
			userCards = cards
			return nil
		})
	}
	g.Go(func() error {
		publicCards, widened = e.searchPublic(gctx, scenario, level, in.Subskills, vec)
		return nil
	})
	_ = g.Wait()

	out.Merged = Merge(userCards, publicCards)
	for _, c := range out.Merged {
		if c.Owned {
			out.UserCards = append(out.UserCards, c)
		} else {
			out.PublicCards = append(out.PublicCards, c)
		}
	}
	out.Widened = widened

	e.metrics.ObserveRetrieval("user", len(out.UserCards))
	e.metrics.ObserveRetrieval("public", len(out.PublicCards))
	span.SetAttributes(
		attribute.Int("user_cards", len(out.UserCards)),
		attribute.Int("public_cards", len(out.PublicCards)),
		attribute.Bool("degraded", out.Degraded),
		attribute.Bool("widened", out.Widened),
	)
	return out
}

// searchPublic drops the subskill filter when it under-fills top-k. Level is
// never relaxed. Narrow matches keep their place ahead of widened fill.
func (e *Engine) searchPublic(ctx context.Context, scenario, level string, subskills []string, vec []float32) ([]Card, bool) {
	f := Filter{Scenario: scenario, Level: level, Subskills: subskills}
	cards, err := e.store.Search(ctx, f, vec, e.publicTopK)
	if err != nil {
		e.log.Warn("curated card search failed", "scenario", scenario, "level", level, "error", err)
		cards = nil
	}
	if len(subskills) == 0 || len(cards) >= e.publicTopK {
		return cards, false
	}

	e.metrics.IncRetrievalEvent("widened")
	f.Subskills = nil
	wide, err := e.store.Search(ctx, f, vec, e.publicTopK)
	if err != nil {
		e.log.Warn("widened curated card search failed", "scenario", scenario, "level", level, "error", err)
		return cards, true
	}
	seen := make(map[uuid.UUID]bool, len(cards))
	for _, c := range cards {
		seen[c.ID] = true
	}
	for _, c := range wide {
		if len(cards) >= e.publicTopK {
			break
		}
		if !seen[c.ID] {
			cards = append(cards, c)
			seen[c.ID] = true
		}
	}
	return cards, true
}
