package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

const DefaultBackfillLimit = 500

type MissingEmbeddingLister interface {
	ListMissingEmbedding(dbc dbctx.Context, limit int) ([]uuid.UUID, error)
}

type BackfillResult struct {
	UserCards   int
	PublicCards int
}

// Backfill enqueues embedding jobs for cards whose vector is still empty.
// Dedupe keys keep repeated runs from piling up duplicate jobs.
func Backfill(ctx context.Context, log *logger.Logger, enq *Enqueuer, users, public MissingEmbeddingLister, limit int) (BackfillResult, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}
	var out BackfillResult
	dbc := dbctx.Context{Ctx: ctx}

	ids, err := users.ListMissingEmbedding(dbc, limit)
	if err != nil {
		return out, fmt.Errorf("list user cards: %w", err)
	}
	for _, id := range ids {
		if err := enq.EnqueueUserCardEmbedding(ctx, id); err != nil {
			return out, err
		}
		out.UserCards++
	}

	ids, err = public.ListMissingEmbedding(dbc, limit)
	if err != nil {
		return out, fmt.Errorf("list public cards: %w", err)
	}
	for _, id := range ids {
		if err := enq.EnqueuePublicCardEmbedding(ctx, id); err != nil {
			return out, err
		}
		out.PublicCards++
	}

	log.Info("embedding backfill enqueued", "user_cards", out.UserCards, "public_cards", out.PublicCards)
	return out, nil
}
