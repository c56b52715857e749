package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Progression types
const (
	ProgressionForward  = "FORWARD"
	ProgressionBackward = "BACKWARD"
	ProgressionJump     = "JUMP"
)

// StageProgression is an immutable audit record of a stage transition.
type StageProgression struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ExpedienteID string `gorm:"type:uuid;not null;index" json:"expediente_id"`
	FromStage    string `gorm:"size:50;not null" json:"from_stage"`
	ToStage      string `gorm:"size:50;not null;index" json:"to_stage"`

	ProgressionType string `gorm:"size:10;not null" json:"progression_type"`

	Reason       string `gorm:"type:text" json:"reason,omitempty"`
	Observations string `gorm:"type:text" json:"observations,omitempty"`

	// Actor and approval
	PerformedByID    string  `gorm:"type:uuid;not null" json:"performed_by_id"`
	ApprovedByID     *string `gorm:"type:uuid" json:"approved_by_id,omitempty"`
	RequiresApproval bool    `gorm:"not null;default:false" json:"requires_approval"`

	// Full days spent in the prior stage; nil when no active assignment existed
	DaysInPriorStage *int `json:"days_in_prior_stage,omitempty"`

	// Request metadata
	IPAddress string `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`

	// Relationships
	Expediente  Expediente `gorm:"foreignKey:ExpedienteID" json:"-"`
	PerformedBy User       `gorm:"foreignKey:PerformedByID" json:"performed_by,omitempty"`
	ApprovedBy  *User      `gorm:"foreignKey:ApprovedByID" json:"approved_by,omitempty"`
}

// BeforeCreate generates the UUID
func (p *StageProgression) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification (immutability)
func (p *StageProgression) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// BeforeDelete prevents deletion (immutability)
func (p *StageProgression) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// TableName specifies the table name
func (StageProgression) TableName() string {
	return "stage_progressions"
}
