package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StageChecklist is a catalog checklist item belonging to exactly one stage.
type StageChecklist struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	StageID     string `gorm:"type:uuid;not null;index" json:"stage_id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Sequence    int    `gorm:"not null;default:0" json:"sequence"`
	IsRequired  bool   `gorm:"not null;default:true" json:"is_required"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id,omitempty"`

	// Relationships
	Stage Stage `gorm:"foreignKey:StageID" json:"-"`
}

func (c *StageChecklist) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (StageChecklist) TableName() string {
	return "stage_checklists"
}

// ChecklistCompletion ties one checklist item to one stage assignment of a
// case. Upserted by the write path; reset (not deleted) when a case returns
// to a stage it previously occupied.
type ChecklistCompletion struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StageAssignmentID string `gorm:"type:uuid;not null;uniqueIndex:idx_completion_assignment_item" json:"stage_assignment_id"`
	ChecklistItemID   string `gorm:"type:uuid;not null;uniqueIndex:idx_completion_assignment_item" json:"checklist_item_id"`

	IsCompleted   bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CompletedByID *string    `gorm:"type:uuid" json:"completed_by_id,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	StageAssignment StageAssignment `gorm:"foreignKey:StageAssignmentID" json:"-"`
	ChecklistItem   StageChecklist  `gorm:"foreignKey:ChecklistItemID" json:"checklist_item,omitempty"`
	CompletedBy     *User           `gorm:"foreignKey:CompletedByID" json:"completed_by,omitempty"`
}

func (c *ChecklistCompletion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (ChecklistCompletion) TableName() string {
	return "checklist_completions"
}
