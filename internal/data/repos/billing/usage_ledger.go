package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

// UsageLedgerRepo is append-only; it exposes no update or delete.
type UsageLedgerRepo interface {
	Append(dbc dbctx.Context, row *types.UsageEntry) error
	SumUnits(dbc dbctx.Context, userID uuid.UUID, feature string, from, to time.Time) (int, error)
	CountByTurn(dbc dbctx.Context, turnID uuid.UUID) (int64, error)
}

type usageLedgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageLedgerRepo(db *gorm.DB, log *logger.Logger) UsageLedgerRepo {
	return &usageLedgerRepo{db: db, log: log.With("repo", "UsageLedgerRepo")}
}

func (r *usageLedgerRepo) Append(dbc dbctx.Context, row *types.UsageEntry) error {
	if row == nil || row.UserID == uuid.Nil || row.Feature == "" {
		return fmt.Errorf("usage entry requires user_id and feature")
	}
	if row.Units <= 0 {
		return fmt.Errorf("usage entry requires positive units")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(row).Error
}

// SumUnits covers [from, to).
func (r *usageLedgerRepo) SumUnits(dbc dbctx.Context, userID uuid.UUID, feature string, from, to time.Time) (int, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id")
	}
	var total int
	if err := dbc.DB(r.db).
		Model(&types.UsageEntry{}).
		Where("user_id = ? AND feature = ? AND created_at >= ? AND created_at < ?", userID, feature, from, to).
		Select("COALESCE(SUM(units), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *usageLedgerRepo) CountByTurn(dbc dbctx.Context, turnID uuid.UUID) (int64, error) {
	if turnID == uuid.Nil {
		return 0, fmt.Errorf("missing turn_id")
	}
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.UsageEntry{}).
		Where("related_turn_id = ?", turnID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
