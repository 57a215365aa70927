package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/english-trainer-backend/internal/pkg/errors"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

const (
	maxTemplateTitle   = 255
	maxTemplateContent = 5000
	templateListLimit  = 200
)

type UsageRecorder interface {
	RecordUsage(ctx context.Context, userID uuid.UUID, feature string, sessionID *uuid.UUID) error
}

type UserCardEmbedScheduler interface {
	EnqueueUserCardEmbedding(ctx context.Context, cardID uuid.UUID) error
}

type SaveTemplateInput struct {
	Scenario  string
	Title     string
	Content   string
	SessionID *uuid.UUID
	TurnID    *uuid.UUID
}

type TemplateService interface {
	Save(ctx context.Context, in SaveTemplateInput) (*kb.UserCard, error)
	List(ctx context.Context, scenario string) ([]*kb.UserCard, error)
	Get(ctx context.Context, id uuid.UUID) (*kb.UserCard, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type templateService struct {
	log   *logger.Logger
	cards repos.UserCardRepo
	usage UsageRecorder
	embed UserCardEmbedScheduler
}

func NewTemplateService(log *logger.Logger, cards repos.UserCardRepo, usage UsageRecorder, embed UserCardEmbedScheduler) TemplateService {
	return &templateService{
		log:   log.With("service", "TemplateService"),
		cards: cards,
		usage: usage,
		embed: embed,
	}
}

// Save stores the card without an embedding; the embedding job fills it in.
// A failed enqueue is left to the periodic backfill.
func (s *templateService) Save(ctx context.Context, in SaveTemplateInput) (*kb.UserCard, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	scenario := strings.TrimSpace(in.Scenario)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", apperrors.ErrInvalidArgument)
	}
	if !trainer.IsScenario(scenario) {
		return nil, fmt.Errorf("%w: unknown scenario %q", apperrors.ErrInvalidArgument, scenario)
	}
	if len([]rune(content)) > maxTemplateContent {
		return nil, fmt.Errorf("%w: content exceeds %d characters", apperrors.ErrInvalidArgument, maxTemplateContent)
	}
	title := strings.TrimSpace(in.Title)
	if r := []rune(title); len(r) > maxTemplateTitle {
		title = string(r[:maxTemplateTitle])
	}

	meta := map[string]string{}
	if in.SessionID != nil {
		meta["session_id"] = in.SessionID.String()
	}
	if in.TurnID != nil {
		meta["turn_id"] = in.TurnID.String()
	}
	metaJSON, _ := json.Marshal(meta)

	card, err := s.cards.Create(dbctx.Context{Ctx: ctx}, &kb.UserCard{
		UserID:     userID,
		Scenario:   scenario,
		SourceType: kb.UserSourceSavedTemplate,
		Title:      title,
		Content:    content,
		Embedding:  kb.EncodeEmbedding(nil),
		Metadata:   datatypes.JSON(metaJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}

	if err := s.usage.RecordUsage(ctx, userID, billing.FeatureTemplateSave, in.SessionID); err != nil {
		s.log.Warn("record template usage failed", "card_id", card.ID, "error", err)
	}
	if err := s.embed.EnqueueUserCardEmbedding(ctx, card.ID); err != nil {
		s.log.Warn("enqueue template embedding failed", "card_id", card.ID, "error", err)
	}
	s.log.Info("template saved", "card_id", card.ID, "user_id", userID, "scenario", scenario)
	return card, nil
}

func (s *templateService) List(ctx context.Context, scenario string) ([]*kb.UserCard, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	scenario = strings.TrimSpace(scenario)
	if scenario != "" && !trainer.IsScenario(scenario) {
		return nil, fmt.Errorf("%w: unknown scenario %q", apperrors.ErrInvalidArgument, scenario)
	}
	return s.cards.ListByUser(dbctx.Context{Ctx: ctx}, userID, scenario, kb.UserSourceSavedTemplate, templateListLimit)
}

func (s *templateService) Get(ctx context.Context, id uuid.UUID) (*kb.UserCard, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.GetByID(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if card == nil {
		return nil, apperrors.ErrNotFound
	}
	return card, nil
}

func (s *templateService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}
	ok, err := s.cards.Delete(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if !ok {
		return apperrors.ErrNotFound
	}
	return nil
}
