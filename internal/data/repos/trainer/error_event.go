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

type ErrorEventRepo interface {
	CreateMany(dbc dbctx.Context, rows []*types.ErrorEvent) error
	ListByTurn(dbc dbctx.Context, turnID uuid.UUID) ([]*types.ErrorEvent, error)
	ListByUserBetween(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) ([]*types.ErrorEvent, error)
}

type errorEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewErrorEventRepo(db *gorm.DB, log *logger.Logger) ErrorEventRepo {
	return &errorEventRepo{db: db, log: log.With("repo", "ErrorEventRepo")}
}

func (r *errorEventRepo) CreateMany(dbc dbctx.Context, rows []*types.ErrorEvent) error {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return dbc.DB(r.db).Create(&rows).Error
}

func (r *errorEventRepo) ListByTurn(dbc dbctx.Context, turnID uuid.UUID) ([]*types.ErrorEvent, error) {
	if turnID == uuid.Nil {
		return nil, fmt.Errorf("missing turn_id")
	}
	var out []*types.ErrorEvent
	if err := dbc.DB(r.db).
		Model(&types.ErrorEvent{}).
		Where("turn_id = ?", turnID).
		Order("error_tag ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *errorEventRepo) ListByUserBetween(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) ([]*types.ErrorEvent, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.ErrorEvent
	if err := dbc.DB(r.db).
		Model(&types.ErrorEvent{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
