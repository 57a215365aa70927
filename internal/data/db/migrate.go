package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/reports"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		// Billing
		&billing.Profile{},
		&billing.UsageEntry{},

		// Knowledge base
		&kb.PublicCard{},
		&kb.UserCard{},

		// Trainer
		&trainer.TrainingSession{},
		&trainer.TrainingTurn{},
		&trainer.ErrorEvent{},

		// Reports
		&reports.WeeklyReport{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	// Curated card import upserts on (title, scenario).
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_kb_public_card_title_scenario ON kb_public_card (title, scenario)`).Error; err != nil {
		return fmt.Errorf("create kb_public_card title index: %w", err)
	}
	return nil
}
