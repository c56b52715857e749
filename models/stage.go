package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stage names for the 16-step expropriation workflow, in sequence order.
const (
	StageRecepcionSolicitud      = "RECEPCION_SOLICITUD"
	StageVerificacionRequisitos  = "VERIFICACION_REQUISITOS"
	StageCargaDocumentos         = "CARGA_DOCUMENTOS"
	StageRevisionJuridica        = "REVISION_JURIDICA"
	StageInspeccionTecnica       = "INSPECCION_TECNICA"
	StageLevantamientoPlanos     = "LEVANTAMIENTO_PLANOS"
	StageTasacionInmueble        = "TASACION_INMUEBLE"
	StageRevisionTasacion        = "REVISION_TASACION"
	StageElaboracionResolucion   = "ELABORACION_RESOLUCION"
	StageAprobacionResolucion    = "APROBACION_RESOLUCION"
	StageNotificacionPropietario = "NOTIFICACION_PROPIETARIO"
	StageNegociacionPago         = "NEGOCIACION_PAGO"
	StageAutorizacionPago        = "AUTORIZACION_PAGO"
	StageEjecucionPago           = "EJECUCION_PAGO"
	StageTransferenciaTitulo     = "TRANSFERENCIA_TITULO"
	StageArchivoExpediente       = "ARCHIVO_EXPEDIENTE"
)

// Stage is a catalog entry: one step of the expropriation workflow.
// Reference data, loaded once per request and never mutated by handlers.
type Stage struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name          string `gorm:"size:50;not null;uniqueIndex" json:"name"`
	DisplayName   string `gorm:"size:150;not null" json:"display_name"`
	SequenceOrder int    `gorm:"not null;uniqueIndex" json:"sequence_order"`

	// Department responsible for cases sitting in this stage
	DepartmentCode string `gorm:"size:20;not null" json:"department_code"`

	EstimatedDays int  `gorm:"not null;default:5" json:"estimated_days"`
	IsActive      bool `gorm:"default:true" json:"is_active"`

	// When set, progressing into this stage reassigns the case to the
	// least-loaded active user holding this role in the responsible
	// department.
	AutoAssignRole *string `gorm:"size:30" json:"auto_assign_role,omitempty"`

	// Relationships
	ChecklistItems []StageChecklist `gorm:"foreignKey:StageID" json:"checklist_items,omitempty"`
}

// BeforeCreate hook to generate UUID
func (s *Stage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Stage) TableName() string {
	return "stages"
}
