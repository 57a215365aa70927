package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/english-trainer-backend/internal/domain/billing"
	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
)

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, scenario, level string) *trainer.TrainingSession {
	tb.Helper()
	s := &trainer.TrainingSession{
		ID:       uuid.New(),
		UserID:   userID,
		Scenario: scenario,
		Track:    trainer.TrackWorkplace,
		Level:    level,
		Title:    "session",
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan, status string, limit int) *billing.Profile {
	tb.Helper()
	p := &billing.Profile{
		UserID:           userID,
		Plan:             plan,
		PlanStatus:       status,
		MonthlyTurnLimit: limit,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedPublicCard(tb testing.TB, ctx context.Context, tx *gorm.DB, scenario, level, subskill, sourceType string, emb []float32) *kb.PublicCard {
	tb.Helper()
	c := &kb.PublicCard{
		ID:          uuid.New(),
		Track:       trainer.TrackWorkplace,
		Scenario:    scenario,
		Level:       level,
		Subskill:    subskill,
		RegionStyle: kb.RegionEU,
		Title:       "card " + uuid.NewString()[:8],
		Content:     "content",
		SourceType:  sourceType,
		Embedding:   kb.EncodeEmbedding(emb),
		IsActive:    true,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed public card: %v", err)
	}
	return c
}

func SeedUserCard(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, scenario string, emb []float32) *kb.UserCard {
	tb.Helper()
	c := &kb.UserCard{
		ID:         uuid.New(),
		UserID:     userID,
		Scenario:   scenario,
		SourceType: kb.UserSourceSavedTemplate,
		Title:      "template",
		Content:    "I [action] which resulted in [metric].",
		Embedding:  kb.EncodeEmbedding(emb),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed user card: %v", err)
	}
	return c
}
