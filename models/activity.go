package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityAction represents the type of operation performed
type ActivityAction string

const (
	ActivityActionCreate         ActivityAction = "CREATE"
	ActivityActionUpdate         ActivityAction = "UPDATE"
	ActivityActionDelete         ActivityAction = "DELETE"
	ActivityActionStageChange    ActivityAction = "STAGE_CHANGE"
	ActivityActionStageReturn    ActivityAction = "STAGE_RETURN"
	ActivityActionChecklistCheck ActivityAction = "CHECKLIST_CHECK"
	ActivityActionDownload       ActivityAction = "DOWNLOAD"
	ActivityActionLogin          ActivityAction = "LOGIN"
	ActivityActionLogout         ActivityAction = "LOGOUT"
)

// Activity is an immutable record of a mutating operation.
type Activity struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_activity_created_at" json:"created_at"`

	// Actor identification, denormalized for historical accuracy
	UserID   *string `gorm:"type:uuid;index:idx_activity_user" json:"user_id,omitempty"`
	UserName string  `gorm:"not null" json:"user_name"`
	UserRole string  `gorm:"not null" json:"user_role"`

	// Target entity
	EntityType string `gorm:"not null;index:idx_activity_entity" json:"entity_type"`
	EntityID   string `gorm:"type:uuid;not null;index:idx_activity_entity" json:"entity_id"`
	EntityName string `json:"entity_name,omitempty"`

	Action      ActivityAction `gorm:"not null;index:idx_activity_action" json:"action"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Metadata    string         `gorm:"type:text" json:"metadata,omitempty"` // JSON encoded

	// Request metadata
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// BeforeCreate generates UUID
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification of activity rows (immutability)
func (a *Activity) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// BeforeDelete prevents deletion of activity rows (immutability)
func (a *Activity) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound
}

// TableName specifies the table name
func (Activity) TableName() string {
	return "activities"
}
