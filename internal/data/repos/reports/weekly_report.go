package reports

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/english-trainer-backend/internal/domain/reports"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type WeeklyReportRepo interface {
	Upsert(dbc dbctx.Context, row *types.WeeklyReport) error
	GetLatest(dbc dbctx.Context, userID uuid.UUID) (*types.WeeklyReport, error)
	ListActiveUserIDs(dbc dbctx.Context, from, to time.Time) ([]uuid.UUID, error)
}

type weeklyReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWeeklyReportRepo(db *gorm.DB, log *logger.Logger) WeeklyReportRepo {
	return &weeklyReportRepo{db: db, log: log.With("repo", "WeeklyReportRepo")}
}

func (r *weeklyReportRepo) Upsert(dbc dbctx.Context, row *types.WeeklyReport) error {
	if row == nil || row.UserID == uuid.Nil {
		return fmt.Errorf("report requires user_id")
	}
	row.ID = uuid.Nil
	row.UpdatedAt = time.Now().UTC()
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "period_start"}, {Name: "period_end"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
		}).
		Create(row).Error
}

func (r *weeklyReportRepo) GetLatest(dbc dbctx.Context, userID uuid.UUID) (*types.WeeklyReport, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var rows []*types.WeeklyReport
	if err := dbc.DB(r.db).
		Model(&types.WeeklyReport{}).
		Where("user_id = ?", userID).
		Order("period_end DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListActiveUserIDs returns users with at least one turn in [from, to).
func (r *weeklyReportRepo) ListActiveUserIDs(dbc dbctx.Context, from, to time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Table("training_turn").
		Where("created_at >= ? AND created_at < ?", from, to).
		Distinct("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
