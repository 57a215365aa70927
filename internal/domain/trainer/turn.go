package trainer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TrainingTurn struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_training_turn_session_index,priority:1" json:"session_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TurnIndex int       `gorm:"column:turn_index;not null;uniqueIndex:idx_training_turn_session_index,priority:2" json:"turn_index"`

	UserInput        string         `gorm:"column:user_input;type:text;not null" json:"user_input"`
	NormalizedIntent datatypes.JSON `gorm:"column:normalized_intent;type:jsonb;not null;default:'{}'" json:"normalized_intent"`

	RetrievedUserCardIDs   datatypes.JSON `gorm:"column:retrieved_user_card_ids;type:jsonb;not null;default:'[]'" json:"retrieved_user_card_ids"`
	RetrievedPublicCardIDs datatypes.JSON `gorm:"column:retrieved_public_card_ids;type:jsonb;not null;default:'[]'" json:"retrieved_public_card_ids"`

	Output    datatypes.JSON `gorm:"column:llm_output;type:jsonb;not null;default:'{}'" json:"output"`
	Status    string         `gorm:"column:status;not null;index" json:"status"`
	LatencyMS int64          `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (TrainingTurn) TableName() string { return "training_turn" }

type ErrorEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	TurnID    uuid.UUID `gorm:"type:uuid;not null;index" json:"turn_id"`
	Scenario  string    `gorm:"column:scenario;not null" json:"scenario"`
	ErrorTag  string    `gorm:"column:error_tag;not null;index" json:"error_tag"`
	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (ErrorEvent) TableName() string { return "training_error_event" }
