package trainer

import (
	"time"

	"github.com/google/uuid"
)

type TrainingSession struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Scenario string `gorm:"column:scenario;not null;index" json:"scenario"`
	Track    string `gorm:"column:track;not null" json:"track"`
	Level    string `gorm:"column:level;not null" json:"level"`
	Title    string `gorm:"column:title;not null;default:''" json:"title"`

	IsArchived bool `gorm:"column:is_archived;not null;default:false;index" json:"is_archived"`

	// Last issued turn index; advanced only under a row lock.
	LastTurnIndex int `gorm:"column:last_turn_index;not null;default:0" json:"last_turn_index"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (TrainingSession) TableName() string { return "training_session" }
