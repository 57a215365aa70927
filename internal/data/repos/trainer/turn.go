package trainer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type TurnRepo interface {
	Create(dbc dbctx.Context, row *types.TrainingTurn) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingTurn, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.TrainingTurn, error)
	ListByUserBetween(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) ([]*types.TrainingTurn, error)
	MaxIndex(dbc dbctx.Context, sessionID uuid.UUID) (int, error)
}

type turnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTurnRepo(db *gorm.DB, log *logger.Logger) TurnRepo {
	return &turnRepo{db: db, log: log.With("repo", "TurnRepo")}
}

func (r *turnRepo) Create(dbc dbctx.Context, row *types.TrainingTurn) error {
	if row == nil {
		return fmt.Errorf("missing turn")
	}
	if row.SessionID == uuid.Nil || row.TurnIndex <= 0 {
		return fmt.Errorf("turn requires session_id and positive turn_index")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *turnRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingTurn, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var rows []*types.TrainingTurn
	if err := dbc.DB(r.db).
		Model(&types.TrainingTurn{}).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *turnRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.TrainingTurn, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.TrainingTurn
	if err := dbc.DB(r.db).
		Model(&types.TrainingTurn{}).
		Where("session_id = ?", sessionID).
		Order("turn_index ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *turnRepo) ListByUserBetween(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) ([]*types.TrainingTurn, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.TrainingTurn
	if err := dbc.DB(r.db).
		Model(&types.TrainingTurn{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *turnRepo) MaxIndex(dbc dbctx.Context, sessionID uuid.UUID) (int, error) {
	if sessionID == uuid.Nil {
		return 0, fmt.Errorf("missing session_id")
	}
	var max int
	if err := dbc.DB(r.db).
		Model(&types.TrainingTurn{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(turn_index), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}
