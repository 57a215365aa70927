package reports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WeeklyReport struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_weekly_report_period,priority:1" json:"user_id"`

	PeriodStart time.Time `gorm:"type:date;not null;uniqueIndex:idx_weekly_report_period,priority:2" json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null;uniqueIndex:idx_weekly_report_period,priority:3" json:"period_end"`

	Summary datatypes.JSON `gorm:"type:jsonb;column:summary;not null;default:'{}'" json:"summary"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WeeklyReport) TableName() string { return "weekly_report" }

// Summary is the decoded rollup stored on a WeeklyReport.
type Summary struct {
	TotalTurns       int                `json:"total_turns"`
	AverageScores    map[string]float64 `json:"average_scores"`
	TopErrorTags     []TagCount         `json:"top_error_tags"`
	TurnsByScenario  map[string]int     `json:"turns_by_scenario"`
	RecommendedFocus string             `json:"recommended_focus"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
