package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Department codes used by the stage catalog
const (
	DeptDespacho   = "DESPACHO"
	DeptJuridico   = "JURIDICO"
	DeptTecnico    = "TECNICO"
	DeptAvaluos    = "AVALUOS"
	DeptFinanciero = "FINANCIERO"
)

// Department represents an organizational unit responsible for one or more
// workflow stages.
type Department struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code        string `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	Users []User `gorm:"foreignKey:DepartmentID" json:"users,omitempty"`
}

// BeforeCreate hook to generate UUID
func (d *Department) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Department) TableName() string {
	return "departments"
}

// DepartmentTransfer records a user moving between departments. The latest
// row per user reflects the current primary assignment; older rows are kept
// as history.
type DepartmentTransfer struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID           string  `gorm:"type:uuid;not null;index" json:"user_id"`
	FromDepartmentID *string `gorm:"type:uuid" json:"from_department_id,omitempty"`
	ToDepartmentID   string  `gorm:"type:uuid;not null" json:"to_department_id"`
	TransferredByID  string  `gorm:"type:uuid;not null" json:"transferred_by_id"`
	Reason           string  `gorm:"type:text" json:"reason,omitempty"`

	User           User        `gorm:"foreignKey:UserID" json:"-"`
	FromDepartment *Department `gorm:"foreignKey:FromDepartmentID" json:"from_department,omitempty"`
	ToDepartment   Department  `gorm:"foreignKey:ToDepartmentID" json:"to_department,omitempty"`
}

func (t *DepartmentTransfer) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (DepartmentTransfer) TableName() string {
	return "department_transfers"
}
