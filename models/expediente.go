package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Expediente status constants
const (
	ExpedienteStatusPendiente  = "PENDIENTE"
	ExpedienteStatusEnProgreso = "EN_PROGRESO"
	ExpedienteStatusCompletado = "COMPLETADO"
	ExpedienteStatusSuspendido = "SUSPENDIDO"
	ExpedienteStatusCancelado  = "CANCELADO"
	ExpedienteStatusArchivado  = "ARCHIVADO"
)

// Expediente priority constants
const (
	PriorityBaja    = "BAJA"
	PriorityMedia   = "MEDIA"
	PriorityAlta    = "ALTA"
	PriorityUrgente = "URGENTE"
)

// Expediente represents a single expropriation case file.
type Expediente struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Identification
	FileNumber string `gorm:"size:50;not null;uniqueIndex" json:"file_number"`

	// Workflow position
	CurrentStage string `gorm:"size:50;not null;index" json:"current_stage"`
	Status       string `gorm:"size:20;not null;default:PENDIENTE;index" json:"status"`
	Priority     string `gorm:"size:20;not null;default:MEDIA" json:"priority"`
	ProgressPct  int    `gorm:"not null;default:0" json:"progress_pct"`

	// Property and owner information
	OwnerName     string   `gorm:"size:255;not null" json:"owner_name"`
	OwnerCedula   string   `gorm:"size:20;not null;index" json:"owner_cedula"`
	Address       string   `gorm:"type:text" json:"address"`
	Municipality  string   `gorm:"size:100" json:"municipality"`
	Province      string   `gorm:"size:100" json:"province"`
	LandArea      *float64 `json:"land_area,omitempty"`
	AppraisalValue *float64 `json:"appraisal_value,omitempty"`

	// Ownership and assignment
	DepartmentID string  `gorm:"type:uuid;not null;index" json:"department_id"`
	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	SupervisorID *string `gorm:"type:uuid" json:"supervisor_id,omitempty"`
	CreatedByID  string  `gorm:"type:uuid;not null" json:"created_by_id"`

	// Lifecycle
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Soft delete tracking beyond gorm's DeletedAt
	DeletedByID *string `gorm:"type:uuid" json:"deleted_by_id,omitempty"`

	// Relationships
	Department Department       `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	AssignedTo *User            `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	Supervisor *User            `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
	CreatedBy  User             `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Documents  []CaseDocument   `gorm:"foreignKey:ExpedienteID" json:"documents,omitempty"`
	Assignments []StageAssignment `gorm:"foreignKey:ExpedienteID" json:"assignments,omitempty"`
}

// BeforeCreate hook to generate UUID and set StartedAt
func (e *Expediente) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt == nil {
		now := time.Now()
		e.StartedAt = &now
	}
	return nil
}

// TableName specifies the table name for Expediente model
func (Expediente) TableName() string {
	return "expedientes"
}

// IsCompleted checks if the case reached the terminal stage
func (e *Expediente) IsCompleted() bool {
	return e.Status == ExpedienteStatusCompletado
}

// DaysInProcess returns how many days the case has been open
func (e *Expediente) DaysInProcess() int {
	start := e.CreatedAt
	if e.StartedAt != nil {
		start = *e.StartedAt
	}
	return int(time.Since(start).Hours() / 24)
}

// IsValidExpedienteStatus checks if the status is valid
func IsValidExpedienteStatus(status string) bool {
	switch status {
	case ExpedienteStatusPendiente, ExpedienteStatusEnProgreso, ExpedienteStatusCompletado,
		ExpedienteStatusSuspendido, ExpedienteStatusCancelado, ExpedienteStatusArchivado:
		return true
	}
	return false
}

// IsValidPriority checks if the priority is valid
func IsValidPriority(priority string) bool {
	switch priority {
	case PriorityBaja, PriorityMedia, PriorityAlta, PriorityUrgente:
		return true
	}
	return false
}
