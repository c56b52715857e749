package services

import (
	"testing"
	"time"

	"expediente_flow_go/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupProgressionTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	db.AutoMigrate(
		&models.Department{},
		&models.User{},
		&models.Stage{},
		&models.StageChecklist{},
		&models.Expediente{},
		&models.StageAssignment{},
		&models.ChecklistCompletion{},
		&models.StageProgression{},
		&models.StageNotification{},
		&models.Activity{},
		&models.CaseHistory{},
	)
	return db
}

// seedWorkflow creates a three-stage catalog with one required checklist item
// on the middle stage, plus the two responsible departments.
func seedWorkflow(db *gorm.DB) (s1, s2, s3 models.Stage, requiredItem models.StageChecklist) {
	despacho := models.Department{Code: models.DeptDespacho, Name: "Despacho", IsActive: true}
	juridico := models.Department{Code: models.DeptJuridico, Name: "Jurídico", IsActive: true}
	db.Create(&despacho)
	db.Create(&juridico)

	s1 = models.Stage{Name: models.StageRecepcionSolicitud, DisplayName: "Recepción", SequenceOrder: 1, DepartmentCode: models.DeptDespacho, EstimatedDays: 3, IsActive: true}
	s2 = models.Stage{Name: models.StageVerificacionRequisitos, DisplayName: "Verificación", SequenceOrder: 2, DepartmentCode: models.DeptJuridico, EstimatedDays: 5, IsActive: true}
	s3 = models.Stage{Name: models.StageCargaDocumentos, DisplayName: "Carga", SequenceOrder: 3, DepartmentCode: models.DeptJuridico, EstimatedDays: 5, IsActive: true}
	db.Create(&s1)
	db.Create(&s2)
	db.Create(&s3)

	requiredItem = models.StageChecklist{StageID: s2.ID, Title: "Cédula validada", Sequence: 1, IsRequired: true, IsActive: true}
	db.Create(&requiredItem)

	return s1, s2, s3, requiredItem
}

func createSupervisor(db *gorm.DB, deptCode string) models.User {
	var dept models.Department
	db.Where("code = ?", deptCode).First(&dept)

	user := models.User{
		Name:         "Supervisor Test",
		Email:        "supervisor-" + deptCode + "@test.local",
		Password:     "x",
		Role:         models.RoleSupervisor,
		IsActive:     true,
		DepartmentID: &dept.ID,
	}
	db.Create(&user)
	return user
}

// createCaseAt creates an expediente sitting at the given stage with an
// active assignment.
func createCaseAt(db *gorm.DB, stage models.Stage, createdBy models.User) models.Expediente {
	var dept models.Department
	db.Where("code = ?", stage.DepartmentCode).First(&dept)

	exp := models.Expediente{
		FileNumber:   "EXP-TEST-" + uuid.New().String()[:8],
		CurrentStage: stage.Name,
		Status:       models.ExpedienteStatusEnProgreso,
		Priority:     models.PriorityMedia,
		OwnerName:    "Juan Pérez",
		OwnerCedula:  "001-0000000-1",
		DepartmentID: dept.ID,
		CreatedByID:  createdBy.ID,
	}
	db.Create(&exp)

	assignment := models.StageAssignment{
		ExpedienteID: exp.ID,
		StageID:      stage.ID,
		IsActive:     true,
		AssignedAt:   time.Now().Add(-48 * time.Hour),
	}
	db.Create(&assignment)

	return exp
}

func TestClassifyProgression(t *testing.T) {
	a := &models.Stage{SequenceOrder: 2}
	b := &models.Stage{SequenceOrder: 5}
	same := &models.Stage{SequenceOrder: 2}

	assert.Equal(t, models.ProgressionForward, ClassifyProgression(a, b))
	assert.Equal(t, models.ProgressionBackward, ClassifyProgression(b, a))
	assert.Equal(t, models.ProgressionJump, ClassifyProgression(a, same))
}

func TestProgressStageChecklistGate(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, s3, item := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	input := ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s3.Name,
		ActorID:      supervisor.ID,
	}

	// Required item incomplete: the forward move is rejected with the
	// missing item's ID.
	_, err := ProgressStage(db, input)
	assert.Error(t, err)
	var checklistErr *ChecklistIncompleteError
	assert.ErrorAs(t, err, &checklistErr)
	assert.Contains(t, checklistErr.MissingItems, item.ID)

	// Complete the item and retry.
	_, err = SetChecklistCompletion(db, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)

	result, err := ProgressStage(db, input)
	assert.NoError(t, err)
	assert.Equal(t, s3.Name, result.Expediente.CurrentStage)
	assert.Equal(t, models.ProgressionForward, result.Progression.ProgressionType)
}

func TestProgressStageSingleActiveAssignment(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)

	var active []models.StageAssignment
	db.Where("expediente_id = ? AND is_active = ?", exp.ID, true).Find(&active)
	assert.Len(t, active, 1)
	assert.Equal(t, result.NewAssignment.ID, active[0].ID)
	assert.Equal(t, s2.ID, active[0].StageID)

	var inactive int64
	db.Model(&models.StageAssignment{}).
		Where("expediente_id = ? AND is_active = ?", exp.ID, false).
		Count(&inactive)
	assert.Equal(t, int64(1), inactive)
}

func TestProgressStageJumpBypassesGate(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	// Lateral move to the same stage ignores the incomplete required item
	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ProgressionJump, result.Progression.ProgressionType)
}

func TestProgressStageForbiddenForUnassignedAnalyst(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	var dept models.Department
	db.Where("code = ?", models.DeptDespacho).First(&dept)
	analyst := models.User{
		Name: "Analista", Email: "analyst@test.local", Password: "x",
		Role: models.RoleAnalyst, IsActive: true, DepartmentID: &dept.ID,
	}
	db.Create(&analyst)

	_, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      analyst.ID,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	// The same analyst may progress once assigned to the case
	db.Model(&models.Expediente{}).Where("id = ?", exp.ID).Update("assigned_to_id", analyst.ID)

	_, err = ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      analyst.ID,
	})
	assert.NoError(t, err)
}

func TestProgressToTerminalStageCompletesCase(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, s3, item := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	_, err := SetChecklistCompletion(db, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s3.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ExpedienteStatusCompletado, result.Expediente.Status)
	assert.NotNil(t, result.Expediente.CompletedAt)
	assert.Equal(t, 100, result.Expediente.ProgressPct)
}

func TestProgressToNonTerminalStageSetsEnProgreso(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)
	db.Model(&models.Expediente{}).Where("id = ?", exp.ID).
		Update("status", models.ExpedienteStatusPendiente)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ExpedienteStatusEnProgreso, result.Expediente.Status)
	assert.Nil(t, result.Expediente.CompletedAt)
}

func TestReturnStageResetsCompletions(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, s3, item := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	// Complete the required item and move forward to s3
	completion, err := SetChecklistCompletion(db, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)

	_, err = ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s3.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)

	// Return to s2: the completion recorded during the first visit is reset
	result, err := ReturnStage(db, ReturnInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		Reason:       "Documentación incompleta detectada",
		Observations: "Falta certificación del estado jurídico del inmueble",
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ProgressionBackward, result.Progression.ProgressionType)
	assert.Equal(t, s2.Name, result.Expediente.CurrentStage)

	var reloaded models.ChecklistCompletion
	db.First(&reloaded, "id = ?", completion.ID)
	assert.False(t, reloaded.IsCompleted)
	assert.Nil(t, reloaded.CompletedAt)
	assert.Nil(t, reloaded.CompletedByID)

	// A supervisor self-approves the return
	assert.False(t, result.Progression.RequiresApproval)
	assert.NotNil(t, result.Progression.ApprovedByID)
	assert.Equal(t, supervisor.ID, *result.Progression.ApprovedByID)
}

func TestReturnStageRejectsForwardTarget(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, s3, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	_, err := ReturnStage(db, ReturnInput{
		ExpedienteID: exp.ID,
		ToStage:      s3.Name,
		Reason:       "Motivo suficientemente largo",
		Observations: "Observaciones suficientemente largas para el esquema",
		ActorID:      supervisor.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidReturn)

	// Same stage is also not a valid return target
	_, err = ReturnStage(db, ReturnInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		Reason:       "Motivo suficientemente largo",
		Observations: "Observaciones suficientemente largas para el esquema",
		ActorID:      supervisor.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidReturn)
}

func TestReturnStageUpdatesPriority(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	result, err := ReturnStage(db, ReturnInput{
		ExpedienteID: exp.ID,
		ToStage:      s1.Name,
		Reason:       "Se requiere revisión urgente",
		Observations: "El propietario presentó documentación adicional relevante",
		ActorID:      supervisor.ID,
		Priority:     models.PriorityUrgente,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.PriorityUrgente, result.Expediente.Priority)

	var reloaded models.Expediente
	db.First(&reloaded, "id = ?", exp.ID)
	assert.Equal(t, models.PriorityUrgente, reloaded.Priority)
}

func TestProgressionRecordsDaysInPriorStage(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)
	assert.NotNil(t, result.Progression.DaysInPriorStage)
	assert.Equal(t, 2, *result.Progression.DaysInPriorStage)
}

func TestProgressionMovesCaseToTargetDepartment(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)

	var juridico models.Department
	db.Where("code = ?", models.DeptJuridico).First(&juridico)
	assert.Equal(t, juridico.ID, result.Expediente.DepartmentID)
}

func TestAutoAssignLeastLoadedUser(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)

	role := models.RoleAnalyst
	db.Model(&models.Stage{}).Where("id = ?", s2.ID).Update("auto_assign_role", role)

	var juridico models.Department
	db.Where("code = ?", models.DeptJuridico).First(&juridico)

	busy := models.User{Name: "Ocupado", Email: "busy@test.local", Password: "x",
		Role: models.RoleAnalyst, IsActive: true, DepartmentID: &juridico.ID}
	free := models.User{Name: "Libre", Email: "free@test.local", Password: "x",
		Role: models.RoleAnalyst, IsActive: true, DepartmentID: &juridico.ID}
	db.Create(&busy)
	db.Create(&free)

	// Give the busy analyst an open case
	loaded := createCaseAt(db, s1, supervisor)
	db.Model(&models.Expediente{}).Where("id = ?", loaded.ID).Update("assigned_to_id", busy.ID)

	exp := createCaseAt(db, s1, supervisor)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)
	assert.NotNil(t, result.Expediente.AssignedToID)
	assert.Equal(t, free.ID, *result.Expediente.AssignedToID)
	assert.NotNil(t, result.NewAssignment.AssignedToID)
	assert.Equal(t, free.ID, *result.NewAssignment.AssignedToID)
}

func TestGetReturnableStages(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, s3, item := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	// s1 -> s2 -> s3
	_, err := ProgressStage(db, ProgressionInput{ExpedienteID: exp.ID, ToStage: s2.Name, ActorID: supervisor.ID})
	assert.NoError(t, err)
	_, err = SetChecklistCompletion(db, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)
	_, err = ProgressStage(db, ProgressionInput{ExpedienteID: exp.ID, ToStage: s3.Name, ActorID: supervisor.ID})
	assert.NoError(t, err)

	returnable, err := GetReturnableStages(db, exp.ID)
	assert.NoError(t, err)
	assert.Len(t, returnable, 2)
	assert.Equal(t, s1.Name, returnable[0].Stage.Name)
	assert.Equal(t, int64(1), returnable[0].VisitCount)
	assert.False(t, returnable[0].RecentlyReturned)

	// Two returns to s2 within the window flag it as recently returned
	_, err = ReturnStage(db, ReturnInput{
		ExpedienteID: exp.ID, ToStage: s2.Name, ActorID: supervisor.ID,
		Reason: "Primera devolución de prueba", Observations: "Observaciones de la primera devolución de prueba",
	})
	assert.NoError(t, err)
	_, err = SetChecklistCompletion(db, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)
	_, err = ProgressStage(db, ProgressionInput{ExpedienteID: exp.ID, ToStage: s3.Name, ActorID: supervisor.ID})
	assert.NoError(t, err)
	_, err = ReturnStage(db, ReturnInput{
		ExpedienteID: exp.ID, ToStage: s2.Name, ActorID: supervisor.ID,
		Reason: "Segunda devolución de prueba", Observations: "Observaciones de la segunda devolución de prueba",
	})
	assert.NoError(t, err)
	_, err = SetChecklistCompletion(db, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)
	_, err = ProgressStage(db, ProgressionInput{ExpedienteID: exp.ID, ToStage: s3.Name, ActorID: supervisor.ID})
	assert.NoError(t, err)

	returnable, err = GetReturnableStages(db, exp.ID)
	assert.NoError(t, err)
	found := false
	for _, r := range returnable {
		if r.Stage.Name == s2.Name {
			found = true
			assert.True(t, r.RecentlyReturned)
			assert.Equal(t, int64(3), r.VisitCount)
		}
	}
	assert.True(t, found)
}

func TestProgressionRowIsImmutable(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	result, err := ProgressStage(db, ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)

	err = db.Model(result.Progression).Update("reason", "tampered").Error
	assert.Error(t, err)

	err = db.Delete(result.Progression).Error
	assert.Error(t, err)
}
