package kb

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SourceTemplate        = "template"
	SourceRubric          = "rubric"
	SourceExample         = "example"
	SourceQuestionPattern = "question_pattern"

	UserSourceSavedTemplate    = "saved_template"
	UserSourceUploadedMaterial = "uploaded_material"
	UserSourceBestOutput       = "best_output"

	RegionEU   = "EU"
	RegionUS   = "US"
	RegionAPAC = "APAC"

	EmbeddingDim = 1536
)

// PublicCard is a curated knowledge card managed by the product team.
type PublicCard struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Track       string `gorm:"column:track;not null;index" json:"track"`
	Scenario    string `gorm:"column:scenario;not null;index:idx_kb_public_card_filter,priority:1" json:"scenario"`
	Level       string `gorm:"column:level;not null;index:idx_kb_public_card_filter,priority:2" json:"level"`
	Subskill    string `gorm:"column:subskill;not null;default:'general';index:idx_kb_public_card_filter,priority:3" json:"subskill"`
	RegionStyle string `gorm:"column:region_style;not null;default:'EU'" json:"region_style"`

	Title      string `gorm:"column:title;not null" json:"title"`
	Content    string `gorm:"column:content;type:text;not null" json:"content"`
	WhenToUse  string `gorm:"column:when_to_use;type:text;not null;default:''" json:"when_to_use"`
	SourceType string `gorm:"column:source_type;not null;default:'template'" json:"source_type"`

	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding;not null;default:'[]'" json:"-"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (PublicCard) TableName() string { return "kb_public_card" }

// EmbeddingText is the text embedded for similarity search.
func (c PublicCard) EmbeddingText() string {
	return c.Title + "\n" + c.Content + "\n" + c.WhenToUse
}

// UserCard is a card owned by one learner, typically a saved template.
type UserCard struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_kb_user_card_owner,priority:1" json:"user_id"`

	Scenario   string `gorm:"column:scenario;not null;index:idx_kb_user_card_owner,priority:2" json:"scenario"`
	SourceType string `gorm:"column:source_type;not null;default:'saved_template';index" json:"source_type"`
	Title      string `gorm:"column:title;not null;default:''" json:"title"`
	Content    string `gorm:"column:content;type:text;not null" json:"content"`

	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding;not null;default:'[]'" json:"-"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserCard) TableName() string { return "kb_user_card" }

func (c UserCard) EmbeddingText() string {
	return c.Title + "\n" + c.Content
}

// DecodeEmbedding returns nil for empty or malformed vectors.
func DecodeEmbedding(raw datatypes.JSON) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}

func EncodeEmbedding(v []float32) datatypes.JSON {
	if len(v) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
