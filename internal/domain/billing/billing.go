package billing

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree  = "free"
	PlanBasic = "basic"
	PlanPro   = "pro"

	PlanStatusActive   = "active"
	PlanStatusInactive = "inactive"
	PlanStatusTrial    = "trial"

	FeatureTurnSubmit     = "turn_submit"
	FeatureTemplateSave   = "template_save"
	FeatureReportGenerate = "report_generate"
)

// DefaultMonthlyTurnLimit returns the cap for plan; unknown plans get the free cap.
func DefaultMonthlyTurnLimit(plan string) int {
	switch plan {
	case PlanPro:
		return 500
	case PlanBasic:
		return 100
	default:
		return 10
	}
}

// Profile holds a user's plan. Consumption is never stored here.
type Profile struct {
	UserID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Plan             string    `gorm:"column:plan;not null;default:'free'" json:"plan"`
	PlanStatus       string    `gorm:"column:plan_status;not null;default:'active'" json:"plan_status"`
	MonthlyTurnLimit int       `gorm:"column:monthly_turn_limit;not null;default:10" json:"monthly_turn_limit"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Profile) TableName() string { return "billing_profile" }

// DefaultProfile is the free, active plan every user starts on.
func DefaultProfile(userID uuid.UUID, now time.Time) *Profile {
	return &Profile{
		UserID:           userID,
		Plan:             PlanFree,
		PlanStatus:       PlanStatusActive,
		MonthlyTurnLimit: DefaultMonthlyTurnLimit(PlanFree),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// UsageEntry is an append-only ledger row.
type UsageEntry struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_ledger_user_feature_time,priority:1" json:"user_id"`

	Feature string `gorm:"column:feature;not null;index:idx_usage_ledger_user_feature_time,priority:2" json:"feature"`
	Units   int    `gorm:"column:units;not null;default:1" json:"units"`

	RelatedSessionID *uuid.UUID `gorm:"type:uuid;column:related_session_id;index" json:"related_session_id,omitempty"`
	RelatedTurnID    *uuid.UUID `gorm:"type:uuid;column:related_turn_id;uniqueIndex" json:"related_turn_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index:idx_usage_ledger_user_feature_time,priority:3" json:"created_at"`
}

func (UsageEntry) TableName() string { return "usage_ledger" }

// PeriodBounds returns the calendar month (UTC) containing t.
func PeriodBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

const (
	DenyPlanInactive        = "plan_inactive"
	DenyMonthlyLimitReached = "monthly_limit_reached"
)

// QuotaDecision is the outcome of a quota check for the current period.
type QuotaDecision struct {
	Allowed bool      `json:"allowed"`
	Reason  string    `json:"reason,omitempty"`
	ResetAt time.Time `json:"reset_at"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
}

// Remaining never goes below zero.
func (d QuotaDecision) Remaining() int {
	if d.Used >= d.Limit {
		return 0
	}
	return d.Limit - d.Used
}
