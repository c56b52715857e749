package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Meeting statuses
const (
	MeetingStatusScheduled = "SCHEDULED"
	MeetingStatusCompleted = "COMPLETED"
	MeetingStatusCancelled = "CANCELLED"
)

// Meeting is a scheduled coordination meeting, optionally linked to a case.
type Meeting struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ExpedienteID *string `gorm:"type:uuid;index" json:"expediente_id,omitempty"`

	Title       string    `gorm:"size:255;not null" json:"title"`
	Agenda      string    `gorm:"type:text" json:"agenda,omitempty"`
	Location    string    `gorm:"size:255" json:"location,omitempty"`
	ScheduledAt time.Time `gorm:"not null;index" json:"scheduled_at"`
	DurationMin int       `gorm:"not null;default:60" json:"duration_min"`
	Status      string    `gorm:"size:20;not null;default:SCHEDULED" json:"status"`

	OrganizerID string `gorm:"type:uuid;not null;index" json:"organizer_id"`

	// Relationships
	Expediente *Expediente `gorm:"foreignKey:ExpedienteID" json:"expediente,omitempty"`
	Organizer  User        `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
}

func (m *Meeting) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Meeting) TableName() string {
	return "meetings"
}
