package services

import (
	"log"
	"os"

	"expediente_flow_go/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// stageSeed defines one catalog entry of the 16-step expropriation workflow
type stageSeed struct {
	Name           string
	DisplayName    string
	SequenceOrder  int
	DepartmentCode string
	EstimatedDays  int
	AutoAssignRole string // empty = no auto-assignment
	Checklist      []checklistSeed
}

type checklistSeed struct {
	Title      string
	IsRequired bool
}

var departmentSeeds = []models.Department{
	{Code: models.DeptDespacho, Name: "Despacho Superior", Description: "Recepción y aprobación final"},
	{Code: models.DeptJuridico, Name: "Departamento Jurídico", Description: "Revisión legal y resoluciones"},
	{Code: models.DeptTecnico, Name: "Departamento Técnico", Description: "Inspecciones y levantamientos"},
	{Code: models.DeptAvaluos, Name: "Departamento de Avalúos", Description: "Tasación de inmuebles"},
	{Code: models.DeptFinanciero, Name: "Departamento Financiero", Description: "Autorización y ejecución de pagos"},
}

var stageSeeds = []stageSeed{
	{models.StageRecepcionSolicitud, "Recepción de Solicitud", 1, models.DeptDespacho, 3, models.RoleAnalyst, []checklistSeed{
		{"Solicitud registrada con número de expediente", true},
		{"Datos del propietario verificados", true},
	}},
	{models.StageVerificacionRequisitos, "Verificación de Requisitos", 2, models.DeptJuridico, 5, models.RoleAnalyst, []checklistSeed{
		{"Cédula o RNC del propietario validado", true},
		{"Título de propiedad presentado", true},
		{"Certificación de estado jurídico del inmueble", true},
	}},
	{models.StageCargaDocumentos, "Carga de Documentos", 3, models.DeptJuridico, 5, "", []checklistSeed{
		{"Documentos digitalizados y cargados", true},
		{"Índice documental completo", true},
		{"Fotografías del inmueble anexadas", false},
	}},
	{models.StageRevisionJuridica, "Revisión Jurídica", 4, models.DeptJuridico, 10, models.RoleAnalyst, []checklistSeed{
		{"Dictamen jurídico emitido", true},
		{"Gravámenes y cargas verificados", true},
	}},
	{models.StageInspeccionTecnica, "Inspección Técnica", 5, models.DeptTecnico, 7, models.RoleAnalyst, []checklistSeed{
		{"Visita de campo realizada", true},
		{"Informe de inspección firmado", true},
	}},
	{models.StageLevantamientoPlanos, "Levantamiento de Planos", 6, models.DeptTecnico, 10, "", []checklistSeed{
		{"Plano catastral levantado", true},
		{"Coordenadas georreferenciadas", true},
	}},
	{models.StageTasacionInmueble, "Tasación del Inmueble", 7, models.DeptAvaluos, 10, models.RoleAnalyst, []checklistSeed{
		{"Avalúo del terreno completado", true},
		{"Avalúo de mejoras completado", true},
	}},
	{models.StageRevisionTasacion, "Revisión de Tasación", 8, models.DeptAvaluos, 5, "", []checklistSeed{
		{"Tasación revisada por supervisor", true},
	}},
	{models.StageElaboracionResolucion, "Elaboración de Resolución", 9, models.DeptJuridico, 7, "", []checklistSeed{
		{"Borrador de resolución redactado", true},
		{"Resolución revisada por encargado jurídico", true},
	}},
	{models.StageAprobacionResolucion, "Aprobación de Resolución", 10, models.DeptDespacho, 5, "", []checklistSeed{
		{"Resolución firmada por la autoridad competente", true},
	}},
	{models.StageNotificacionPropietario, "Notificación al Propietario", 11, models.DeptJuridico, 5, "", []checklistSeed{
		{"Propietario notificado formalmente", true},
		{"Acuse de recibo archivado", true},
	}},
	{models.StageNegociacionPago, "Negociación de Pago", 12, models.DeptFinanciero, 15, models.RoleAnalyst, []checklistSeed{
		{"Acuerdo de pago negociado", true},
	}},
	{models.StageAutorizacionPago, "Autorización de Pago", 13, models.DeptFinanciero, 5, "", []checklistSeed{
		{"Pago autorizado por dirección financiera", true},
	}},
	{models.StageEjecucionPago, "Ejecución de Pago", 14, models.DeptFinanciero, 10, "", []checklistSeed{
		{"Pago ejecutado y comprobante archivado", true},
	}},
	{models.StageTransferenciaTitulo, "Transferencia de Título", 15, models.DeptJuridico, 15, "", []checklistSeed{
		{"Título transferido al Estado", true},
		{"Registro de títulos actualizado", true},
	}},
	{models.StageArchivoExpediente, "Archivo del Expediente", 16, models.DeptDespacho, 3, "", []checklistSeed{
		{"Expediente físico archivado", true},
	}},
}

// SeedCatalog creates departments, the stage catalog, and default checklist
// items. Idempotent: existing rows (matched by code/name) are left untouched.
func SeedCatalog(db *gorm.DB) error {
	for _, dept := range departmentSeeds {
		var count int64
		if err := db.Model(&models.Department{}).Where("code = ?", dept.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		d := dept
		d.IsActive = true
		if err := db.Create(&d).Error; err != nil {
			return err
		}
	}

	seeded := 0
	for _, seed := range stageSeeds {
		var count int64
		if err := db.Model(&models.Stage{}).Where("name = ?", seed.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		stage := models.Stage{
			Name:           seed.Name,
			DisplayName:    seed.DisplayName,
			SequenceOrder:  seed.SequenceOrder,
			DepartmentCode: seed.DepartmentCode,
			EstimatedDays:  seed.EstimatedDays,
			IsActive:       true,
		}
		if seed.AutoAssignRole != "" {
			role := seed.AutoAssignRole
			stage.AutoAssignRole = &role
		}
		if err := db.Create(&stage).Error; err != nil {
			return err
		}

		for i, item := range seed.Checklist {
			checklist := models.StageChecklist{
				StageID:    stage.ID,
				Title:      item.Title,
				Sequence:   i + 1,
				IsRequired: item.IsRequired,
				IsActive:   true,
			}
			if err := db.Create(&checklist).Error; err != nil {
				return err
			}
		}
		seeded++
	}

	if seeded > 0 {
		log.Printf("[SEED] Created %d workflow stages", seeded)
	}
	return nil
}

// SeedSuperadminFromEnv creates a super_admin user from environment
// variables. Only runs if SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD are set
// and no super_admin user exists yet.
func SeedSuperadminFromEnv(db *gorm.DB) error {
	email := os.Getenv("SUPERADMIN_EMAIL")
	password := os.Getenv("SUPERADMIN_PASSWORD")
	name := os.Getenv("SUPERADMIN_NAME")

	if email == "" || password == "" {
		return nil
	}

	if name == "" {
		name = "Superadmin"
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("[SEED] Superadmin user already exists, skipping seed")
		return nil
	}

	var existingUser models.User
	if err := db.Where("email = ?", email).First(&existingUser).Error; err == nil {
		log.Printf("[SEED] User with email %s already exists, skipping superadmin seed", email)
		return nil
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    email,
		Password: hashedPassword,
		Role:     models.RoleSuperAdmin,
		IsActive: true,
	}

	if err := db.Create(user).Error; err != nil {
		return err
	}

	log.Printf("[SEED] Created superadmin user: %s", email)
	return nil
}
