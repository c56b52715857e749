package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTypeStageChange     = "STAGE_CHANGE"
	NotificationTypeStageReturn     = "STAGE_RETURN"
	NotificationTypeApprovalRequest = "APPROVAL_REQUEST"
	NotificationTypeMeeting         = "MEETING"
	NotificationTypeSystem          = "SYSTEM"
)

// StageNotification is a per-recipient message tied to a case and stage.
// Created in bulk, one row per eligible recipient, after a progression.
type StageNotification struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID       string  `gorm:"type:uuid;not null;index" json:"user_id"`
	ExpedienteID *string `gorm:"type:uuid;index" json:"expediente_id,omitempty"`
	StageName    string  `gorm:"size:50" json:"stage_name,omitempty"`

	Type    string `gorm:"size:30;not null" json:"type"`
	Title   string `gorm:"not null" json:"title"`
	Message string `gorm:"type:text" json:"message"`

	// Read tracking
	ReadAt *time.Time `json:"read_at,omitempty"`

	// Relationships
	User       User        `gorm:"foreignKey:UserID" json:"-"`
	Expediente *Expediente `gorm:"foreignKey:ExpedienteID" json:"expediente,omitempty"`
}

func (n *StageNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (StageNotification) TableName() string {
	return "stage_notifications"
}

// IsRead reports whether the notification has been read
func (n *StageNotification) IsRead() bool {
	return n.ReadAt != nil
}
