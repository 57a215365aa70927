package kb

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type UserCardRepo interface {
	Create(dbc dbctx.Context, row *types.UserCard) (*types.UserCard, error)
	GetByID(dbc dbctx.Context, userID, id uuid.UUID) (*types.UserCard, error)
	GetByIDAnyOwner(dbc dbctx.Context, id uuid.UUID) (*types.UserCard, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, scenario, sourceType string, limit int) ([]*types.UserCard, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
	ListCandidates(dbc dbctx.Context, userID uuid.UUID, scenario string, requireEmbedding bool, limit int) ([]*types.UserCard, error)
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error
	ListMissingEmbedding(dbc dbctx.Context, limit int) ([]uuid.UUID, error)
}

type userCardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserCardRepo(db *gorm.DB, log *logger.Logger) UserCardRepo {
	return &userCardRepo{db: db, log: log.With("repo", "UserCardRepo")}
}

func (r *userCardRepo) Create(dbc dbctx.Context, row *types.UserCard) (*types.UserCard, error) {
	if row == nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("card requires user_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if len(row.Embedding) == 0 {
		row.Embedding = types.EncodeEmbedding(nil)
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *userCardRepo) GetByID(dbc dbctx.Context, userID, id uuid.UUID) (*types.UserCard, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, fmt.Errorf("missing user_id or id")
	}
	var rows []*types.UserCard
	if err := dbc.DB(r.db).
		Model(&types.UserCard{}).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetByIDAnyOwner is for background jobs that act on a card id alone.
func (r *userCardRepo) GetByIDAnyOwner(dbc dbctx.Context, id uuid.UUID) (*types.UserCard, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var rows []*types.UserCard
	if err := dbc.DB(r.db).
		Model(&types.UserCard{}).
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

func (r *userCardRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, scenario, sourceType string, limit int) ([]*types.UserCard, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	q := dbc.DB(r.db).
		Model(&types.UserCard{}).
		Where("user_id = ?", userID)
	if scenario != "" {
		q = q.Where("scenario = ?", scenario)
	}
	if sourceType != "" {
		q = q.Where("source_type = ?", sourceType)
	}
	var out []*types.UserCard
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userCardRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return false, fmt.Errorf("missing user_id or id")
	}
	res := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.UserCard{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userCardRepo) ListCandidates(dbc dbctx.Context, userID uuid.UUID, scenario string, requireEmbedding bool, limit int) ([]*types.UserCard, error) {
	if userID == uuid.Nil || scenario == "" {
		return nil, fmt.Errorf("missing user_id or scenario")
	}
	if limit <= 0 {
		limit = 500
	}
	q := dbc.DB(r.db).
		Model(&types.UserCard{}).
		Where("user_id = ? AND scenario = ?", userID, scenario)
	if requireEmbedding {
		q = q.Where("embedding <> '[]'::jsonb")
	}
	var out []*types.UserCard
	if err := q.Order("created_at DESC").Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userCardRepo) UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).
		Model(&types.UserCard{}).
		Where("id = ?", id).
		UpdateColumn("embedding", types.EncodeEmbedding(emb)).Error
}

func (r *userCardRepo) ListMissingEmbedding(dbc dbctx.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.UserCard{}).
		Where("embedding = '[]'::jsonb").
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
