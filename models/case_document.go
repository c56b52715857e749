package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseDocument stores metadata for a file attached to an expediente.
// Re-uploading under the same title creates a new version and flags the
// previous one as no longer current; bytes live in the storage provider.
type CaseDocument struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ExpedienteID string `gorm:"type:uuid;not null;index" json:"expediente_id"`
	StageName    string `gorm:"size:50" json:"stage_name,omitempty"` // stage the case was in when uploaded

	Title     string `gorm:"size:255;not null;index" json:"title"`
	Version   int    `gorm:"not null;default:1" json:"version"`
	IsCurrent bool   `gorm:"not null;default:true" json:"is_current"`

	// Storage
	StorageKey       string `gorm:"size:512;not null" json:"-"`
	FileName         string `gorm:"size:255;not null" json:"file_name"`
	FileOriginalName string `gorm:"size:255" json:"file_original_name"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `gorm:"size:100" json:"mime_type"`

	UploadedByID string `gorm:"type:uuid;not null" json:"uploaded_by_id"`

	// Relationships
	Expediente Expediente `gorm:"foreignKey:ExpedienteID" json:"-"`
	UploadedBy User       `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
}

// BeforeCreate hook to generate UUID
func (d *CaseDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (CaseDocument) TableName() string {
	return "case_documents"
}
