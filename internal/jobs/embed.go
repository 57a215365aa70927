package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/jobs/queue"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
)

const (
	TypeEmbedUserCard   = "embed_user_card"
	TypeEmbedPublicCard = "embed_public_card"
)

type CardPayload struct {
	CardID uuid.UUID `json:"card_id"`
}

type UserCardStore interface {
	GetByIDAnyOwner(dbc dbctx.Context, id uuid.UUID) (*kb.UserCard, error)
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error
}

type PublicCardStore interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*kb.PublicCard, error)
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error
}

// Enqueuer schedules card embedding. It satisfies the services' embedding
// scheduler interfaces.
type Enqueuer struct {
	queue queue.Queue
}

func NewEnqueuer(q queue.Queue) *Enqueuer { return &Enqueuer{queue: q} }

func (e *Enqueuer) EnqueueUserCardEmbedding(ctx context.Context, cardID uuid.UUID) error {
	return e.enqueue(ctx, TypeEmbedUserCard, cardID)
}

func (e *Enqueuer) EnqueuePublicCardEmbedding(ctx context.Context, cardID uuid.UUID) error {
	return e.enqueue(ctx, TypeEmbedPublicCard, cardID)
}

func (e *Enqueuer) enqueue(ctx context.Context, jobType string, cardID uuid.UUID) error {
	job, err := queue.NewJob(jobType, CardPayload{CardID: cardID})
	if err != nil {
		return err
	}
	job.DedupeKey = jobType + ":" + cardID.String()
	_, err = e.queue.Enqueue(ctx, job)
	return err
}

func decodeCard(job queue.Job) (uuid.UUID, error) {
	var p CardPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return uuid.Nil, &PermanentError{Err: fmt.Errorf("decode payload: %w", err)}
	}
	if p.CardID == uuid.Nil {
		return uuid.Nil, &PermanentError{Err: fmt.Errorf("payload missing card_id")}
	}
	return p.CardID, nil
}

// EmbedUserCardHandler stores the embedding of a learner's card. Deleted cards
// are skipped; re-running overwrites the vector.
type EmbedUserCardHandler struct {
	log      *logger.Logger
	cards    UserCardStore
	embedder provider.EmbeddingProvider
}

func NewEmbedUserCardHandler(log *logger.Logger, cards UserCardStore, embedder provider.EmbeddingProvider) *EmbedUserCardHandler {
	return &EmbedUserCardHandler{log: log.With("handler", TypeEmbedUserCard), cards: cards, embedder: embedder}
}

func (h *EmbedUserCardHandler) Type() string { return TypeEmbedUserCard }

func (h *EmbedUserCardHandler) Run(ctx context.Context, job queue.Job) error {
	id, err := decodeCard(job)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	card, err := h.cards.GetByIDAnyOwner(dbc, id)
	if err != nil {
		return fmt.Errorf("load user card: %w", err)
	}
	if card == nil {
		h.log.Debug("user card gone, skipping", "card_id", id)
		return nil
	}
	vec, err := h.embedder.EmbedText(ctx, card.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed user card: %w", err)
	}
	return h.cards.UpdateEmbedding(dbc, id, vec)
}

type EmbedPublicCardHandler struct {
	log      *logger.Logger
	cards    PublicCardStore
	embedder provider.EmbeddingProvider
}

func NewEmbedPublicCardHandler(log *logger.Logger, cards PublicCardStore, embedder provider.EmbeddingProvider) *EmbedPublicCardHandler {
	return &EmbedPublicCardHandler{log: log.With("handler", TypeEmbedPublicCard), cards: cards, embedder: embedder}
}

func (h *EmbedPublicCardHandler) Type() string { return TypeEmbedPublicCard }

func (h *EmbedPublicCardHandler) Run(ctx context.Context, job queue.Job) error {
	id, err := decodeCard(job)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	card, err := h.cards.GetByID(dbc, id)
	if err != nil {
		return fmt.Errorf("load public card: %w", err)
	}
	if card == nil {
		h.log.Debug("public card gone, skipping", "card_id", id)
		return nil
	}
	vec, err := h.embedder.EmbedText(ctx, card.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed public card: %w", err)
	}
	return h.cards.UpdateEmbedding(dbc, id, vec)
}
