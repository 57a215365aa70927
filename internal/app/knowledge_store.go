package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/trainer/retrieval"
)

type instrumentedKnowledgeStore struct {
	store   string
	inner   retrieval.KnowledgeStore
	metrics *observability.Metrics
}

func instrumentKnowledgeStore(store string, inner retrieval.KnowledgeStore, metrics *observability.Metrics) retrieval.KnowledgeStore {
	if inner == nil {
		return nil
	}
	return &instrumentedKnowledgeStore{store: store, inner: inner, metrics: metrics}
}

func (s *instrumentedKnowledgeStore) Search(ctx context.Context, f retrieval.Filter, vec []float32, topK int) ([]retrieval.Card, error) {
	start := time.Now()
	out, err := s.inner.Search(ctx, f, vec, topK)
	scope := "public"
	if f.OwnerID != uuid.Nil {
		scope = "user"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveKnowledgeSearch(s.store, scope, status, time.Since(start))
	return out, err
}
