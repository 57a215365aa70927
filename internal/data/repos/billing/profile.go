package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
)

type ProfileRepo interface {
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	GetOrCreate(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	LockByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	UpdatePlan(dbc dbctx.Context, userID uuid.UUID, plan, status string) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, log *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: log.With("repo", "ProfileRepo")}
}

func (r *profileRepo) ensure(dbc dbctx.Context, userID uuid.UUID) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(types.DefaultProfile(userID, time.Now().UTC())).Error
}

// GetByUserID returns nil when the user has no profile row yet.
func (r *profileRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out types.Profile
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// GetOrCreate lazily provisions a free, active profile.
func (r *profileRepo) GetOrCreate(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if err := r.ensure(dbc, userID); err != nil {
		return nil, err
	}
	var out types.Profile
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// LockByUserID serializes quota decisions for one user within dbc.Tx.
func (r *profileRepo) LockByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByUserID requires dbc.Tx")
	}
	if err := r.ensure(dbc, userID); err != nil {
		return nil, err
	}
	var out types.Profile
	if err := dbc.DB(nil).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *profileRepo) UpdatePlan(dbc dbctx.Context, userID uuid.UUID, plan, status string) error {
	if userID == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	if _, err := r.GetOrCreate(dbc, userID); err != nil {
		return err
	}
	return dbc.DB(r.db).
		Model(&types.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"plan":               plan,
			"plan_status":        status,
			"monthly_turn_limit": types.DefaultMonthlyTurnLimit(plan),
			"updated_at":         time.Now().UTC(),
		}).Error
}
