package kb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

// PublicCardFilter narrows curated cards. Empty Subskills means any subskill.
type PublicCardFilter struct {
	Scenario  string
	Level     string
	Subskills []string
}

type PublicCardRepo interface {
	Upsert(dbc dbctx.Context, row *types.PublicCard) (*types.PublicCard, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PublicCard, error)
	ListCandidates(dbc dbctx.Context, f PublicCardFilter, requireEmbedding bool, limit int) ([]*types.PublicCard, error)
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error
	ListMissingEmbedding(dbc dbctx.Context, limit int) ([]uuid.UUID, error)
}

type publicCardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPublicCardRepo(db *gorm.DB, log *logger.Logger) PublicCardRepo {
	return &publicCardRepo{db: db, log: log.With("repo", "PublicCardRepo")}
}

// Upsert keys on (title, scenario). The stored embedding is cleared so the
// backfill re-embeds the imported text.
func (r *publicCardRepo) Upsert(dbc dbctx.Context, row *types.PublicCard) (*types.PublicCard, error) {
	if row == nil || row.Title == "" || row.Scenario == "" {
		return nil, fmt.Errorf("card requires title and scenario")
	}
	row.ID = uuid.Nil
	row.UpdatedAt = time.Now().UTC()
	if len(row.Embedding) == 0 {
		row.Embedding = types.EncodeEmbedding(nil)
	}
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "title"}, {Name: "scenario"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"track",
				"level",
				"subskill",
				"region_style",
				"content",
				"when_to_use",
				"source_type",
				"is_active",
				"embedding",
				"updated_at",
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *publicCardRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PublicCard, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var rows []*types.PublicCard
	if err := dbc.DB(r.db).
		Model(&types.PublicCard{}).
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

func (r *publicCardRepo) ListCandidates(dbc dbctx.Context, f PublicCardFilter, requireEmbedding bool, limit int) ([]*types.PublicCard, error) {
	if f.Scenario == "" || f.Level == "" {
		return nil, fmt.Errorf("missing scenario or level")
	}
	if limit <= 0 {
		limit = 500
	}
	q := dbc.DB(r.db).
		Model(&types.PublicCard{}).
		Where("scenario = ? AND level = ? AND is_active = ?", f.Scenario, f.Level, true)
	if len(f.Subskills) > 0 {
		q = q.Where("subskill IN ?", f.Subskills)
	}
	if requireEmbedding {
		q = q.Where("embedding <> '[]'::jsonb")
	}
	var out []*types.PublicCard
	if err := q.Order("updated_at DESC").Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *publicCardRepo) UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).
		Model(&types.PublicCard{}).
		Where("id = ?", id).
		UpdateColumn("embedding", types.EncodeEmbedding(emb)).Error
}

func (r *publicCardRepo) ListMissingEmbedding(dbc dbctx.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.PublicCard{}).
		Where("is_active = ? AND embedding = '[]'::jsonb", true).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
