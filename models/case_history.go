package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseHistory captures a before/after value of a single Expediente field.
// Stage changes always produce one row with Field = "current_stage".
type CaseHistory struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ExpedienteID string `gorm:"type:uuid;not null;index" json:"expediente_id"`
	Field        string `gorm:"size:50;not null" json:"field"`
	PreviousValue string `gorm:"type:text" json:"previous_value"`
	NewValue      string `gorm:"type:text" json:"new_value"`

	// Full days spent with the previous value, when known
	DurationDays *int `json:"duration_days,omitempty"`

	ChangedByID string `gorm:"type:uuid;not null" json:"changed_by_id"`

	// Relationships
	Expediente Expediente `gorm:"foreignKey:ExpedienteID" json:"-"`
	ChangedBy  User       `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
}

func (h *CaseHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification (immutability)
func (h *CaseHistory) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// BeforeDelete prevents deletion (immutability)
func (h *CaseHistory) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// TableName specifies the table name
func (CaseHistory) TableName() string {
	return "case_histories"
}
