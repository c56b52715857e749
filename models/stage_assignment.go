package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StageAssignment records that a case occupies a stage starting at a
// timestamp. At most one assignment per case is active at a time; previous
// assignments are deactivated, never deleted.
type StageAssignment struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExpedienteID string `gorm:"type:uuid;not null;index:idx_assignment_case_active" json:"expediente_id"`
	StageID      string `gorm:"type:uuid;not null;index" json:"stage_id"`
	IsActive     bool   `gorm:"not null;default:true;index:idx_assignment_case_active" json:"is_active"`

	AssignedAt time.Time  `gorm:"not null" json:"assigned_at"`
	DueDate    *time.Time `json:"due_date,omitempty"`

	// User responsible while the case sits in this stage, when auto-assigned
	AssignedToID *string `gorm:"type:uuid" json:"assigned_to_id,omitempty"`

	// Relationships
	Expediente Expediente `gorm:"foreignKey:ExpedienteID" json:"-"`
	Stage      Stage      `gorm:"foreignKey:StageID" json:"stage,omitempty"`
	AssignedTo *User      `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`

	Completions []ChecklistCompletion `gorm:"foreignKey:StageAssignmentID" json:"completions,omitempty"`
}

// BeforeCreate hook to generate UUID and set AssignedAt
func (a *StageAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name
func (StageAssignment) TableName() string {
	return "stage_assignments"
}

// DaysInStage returns full days elapsed since the assignment started
func (a *StageAssignment) DaysInStage() int {
	return int(time.Since(a.AssignedAt).Hours() / 24)
}
