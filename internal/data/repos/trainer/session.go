package trainer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, row *types.TrainingSession) (*types.TrainingSession, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingSession, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, includeArchived bool, limit int) ([]*types.TrainingSession, error)
	Archive(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingSession, error)
	AdvanceTurnIndex(dbc dbctx.Context, id uuid.UUID, index int) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *types.TrainingSession) (*types.TrainingSession, error) {
	if row == nil {
		return nil, fmt.Errorf("missing session")
	}
	if row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// GetByID returns nil without error when the session does not exist.
func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingSession, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var rows []*types.TrainingSession
	if err := dbc.DB(r.db).
		Model(&types.TrainingSession{}).
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

func (r *sessionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, includeArchived bool, limit int) ([]*types.TrainingSession, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := dbc.DB(r.db).
		Model(&types.TrainingSession{}).
		Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var out []*types.TrainingSession
	if err := q.Order("updated_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) Archive(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return false, fmt.Errorf("missing user_id or id")
	}
	res := dbc.DB(r.db).
		Model(&types.TrainingSession{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"is_archived": true,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LockByID takes a row lock on the session for the lifetime of dbc.Tx.
func (r *sessionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.TrainingSession, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.TrainingSession
	if err := dbc.DB(nil).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceTurnIndex only moves forward; a stale index is a no-op.
func (r *sessionRepo) AdvanceTurnIndex(dbc dbctx.Context, id uuid.UUID, index int) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).
		Model(&types.TrainingSession{}).
		Where("id = ? AND last_turn_index < ?", id, index).
		Updates(map[string]interface{}{
			"last_turn_index": index,
			"updated_at":      time.Now().UTC(),
		}).Error
}
