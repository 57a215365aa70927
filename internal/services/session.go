package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/ctxutil"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/english-trainer-backend/internal/pkg/errors"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

const (
	defaultSessionListLimit = 100
	defaultTurnListLimit    = 200
	maxSessionTitle         = 255
)

type CreateSessionInput struct {
	Scenario string
	Track    string
	Level    string
	Title    string
}

type SessionService interface {
	Create(ctx context.Context, in CreateSessionInput) (*trainer.TrainingSession, error)
	Get(ctx context.Context, id uuid.UUID) (*trainer.TrainingSession, error)
	List(ctx context.Context, includeArchived bool) ([]*trainer.TrainingSession, error)
	Archive(ctx context.Context, id uuid.UUID) error
	ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*trainer.TrainingTurn, error)
}

type sessionService struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	turns    repos.TurnRepo
}

func NewSessionService(log *logger.Logger, sessions repos.SessionRepo, turns repos.TurnRepo) SessionService {
	return &sessionService{
		log:      log.With("service", "SessionService"),
		sessions: sessions,
		turns:    turns,
	}
}

func callerID(ctx context.Context) (uuid.UUID, error) {
	id := ctxutil.UserID(ctx)
	if id == uuid.Nil {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	return id, nil
}

func (s *sessionService) Create(ctx context.Context, in CreateSessionInput) (*trainer.TrainingSession, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	in.Scenario = strings.TrimSpace(in.Scenario)
	in.Track = strings.TrimSpace(in.Track)
	in.Level = strings.TrimSpace(in.Level)
	if in.Track == "" {
		in.Track = trainer.TrackWorkplace
	}
	if in.Level == "" {
		in.Level = trainer.LevelJunior
	}
	switch {
	case !trainer.IsScenario(in.Scenario):
		return nil, fmt.Errorf("%w: unknown scenario %q", apperrors.ErrInvalidArgument, in.Scenario)
	case !trainer.IsTrack(in.Track):
		return nil, fmt.Errorf("%w: unknown track %q", apperrors.ErrInvalidArgument, in.Track)
	case !trainer.IsLevel(in.Level):
		return nil, fmt.Errorf("%w: unknown level %q", apperrors.ErrInvalidArgument, in.Level)
	}
	title := strings.TrimSpace(in.Title)
	if r := []rune(title); len(r) > maxSessionTitle {
		title = string(r[:maxSessionTitle])
	}

	row, err := s.sessions.Create(dbctx.Context{Ctx: ctx}, &trainer.TrainingSession{
		UserID:   userID,
		Scenario: in.Scenario,
		Track:    in.Track,
		Level:    in.Level,
		Title:    title,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("session created", "session_id", row.ID, "user_id", userID, "scenario", row.Scenario, "level", row.Level)
	return row, nil
}

// Get hides other users' sessions behind ErrNotFound.
func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*trainer.TrainingSession, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	row, err := s.sessions.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if row == nil || row.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return row, nil
}

func (s *sessionService) List(ctx context.Context, includeArchived bool) ([]*trainer.TrainingSession, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.ListByUser(dbctx.Context{Ctx: ctx}, userID, includeArchived, defaultSessionListLimit)
}

func (s *sessionService) Archive(ctx context.Context, id uuid.UUID) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}
	ok, err := s.sessions.Archive(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	if !ok {
		return apperrors.ErrNotFound
	}
	s.log.Info("session archived", "session_id", id, "user_id", userID)
	return nil
}

func (s *sessionService) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*trainer.TrainingTurn, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultTurnListLimit {
		limit = defaultTurnListLimit
	}
	return s.turns.ListBySession(dbctx.Context{Ctx: ctx}, sessionID, limit)
}
