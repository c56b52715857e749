package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type handlerTestValidator struct {
	v *validator.Validate
}

func (h *handlerTestValidator) Validate(i interface{}) error {
	return h.v.Struct(i)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &handlerTestValidator{v: validator.New()}
	return e
}

// setupHandlerTest points the global connection at a fresh in-memory database
// and seeds a three-stage workflow.
func setupHandlerTest(t *testing.T) (s1, s2, s3 models.Stage, requiredItem models.StageChecklist) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	gdb.AutoMigrate(
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
	db.DB = gdb
	NotificationSvc = &services.NotificationService{DB: gdb}
	EmailSvc = nil

	despacho := models.Department{Code: models.DeptDespacho, Name: "Despacho", IsActive: true}
	juridico := models.Department{Code: models.DeptJuridico, Name: "Jurídico", IsActive: true}
	gdb.Create(&despacho)
	gdb.Create(&juridico)

	s1 = models.Stage{Name: models.StageRecepcionSolicitud, DisplayName: "Recepción", SequenceOrder: 1, DepartmentCode: models.DeptDespacho, EstimatedDays: 3, IsActive: true}
	s2 = models.Stage{Name: models.StageVerificacionRequisitos, DisplayName: "Verificación", SequenceOrder: 2, DepartmentCode: models.DeptJuridico, EstimatedDays: 5, IsActive: true}
	s3 = models.Stage{Name: models.StageCargaDocumentos, DisplayName: "Carga", SequenceOrder: 3, DepartmentCode: models.DeptJuridico, EstimatedDays: 5, IsActive: true}
	gdb.Create(&s1)
	gdb.Create(&s2)
	gdb.Create(&s3)

	requiredItem = models.StageChecklist{StageID: s2.ID, Title: "Cédula validada", Sequence: 1, IsRequired: true, IsActive: true}
	gdb.Create(&requiredItem)

	return s1, s2, s3, requiredItem
}

func createTestUser(role, deptCode string) models.User {
	user := models.User{
		Name:     "Usuario Test",
		Email:    "user-" + uuid.New().String()[:8] + "@test.local",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	if deptCode != "" {
		var dept models.Department
		db.DB.Where("code = ?", deptCode).First(&dept)
		user.DepartmentID = &dept.ID
	}
	db.DB.Create(&user)
	return user
}

func createTestCase(stage models.Stage, createdBy models.User) models.Expediente {
	var dept models.Department
	db.DB.Where("code = ?", stage.DepartmentCode).First(&dept)

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
	db.DB.Create(&exp)

	assignment := models.StageAssignment{
		ExpedienteID: exp.ID,
		StageID:      stage.ID,
		IsActive:     true,
		AssignedAt:   time.Now().Add(-24 * time.Hour),
	}
	db.DB.Create(&assignment)

	return exp
}

// doRequest invokes a handler directly with an authenticated echo context
func doRequest(t *testing.T, handler echo.HandlerFunc, method, body string, user *models.User, expedienteID string) (*httptest.ResponseRecorder, map[string]interface{}) {
	e := newTestEcho()

	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	c := e.NewContext(req, rec)
	if expedienteID != "" {
		c.SetParamNames("id")
		c.SetParamValues(expedienteID)
	}
	if user != nil {
		c.Set(middleware.ContextKeyUser, user)
	}

	err := handler(c)
	assert.NoError(t, err)

	var parsed map[string]interface{}
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

func TestPostStageProgressionChecklistIncomplete(t *testing.T) {
	_, s2, s3, item := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	body := `{"toStage": "` + s3.Name + `"}`
	rec, parsed := doRequest(t, PostStageProgressionHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ChecklistIncomplete", parsed["error"])

	missing, ok := parsed["missingItems"].([]interface{})
	assert.True(t, ok)
	assert.Contains(t, missing, item.ID)

	// The case did not move
	var fresh models.Expediente
	db.DB.First(&fresh, "id = ?", exp.ID)
	assert.Equal(t, s2.Name, fresh.CurrentStage)
}

func TestPostStageProgressionSuccess(t *testing.T) {
	_, s2, s3, item := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	analyst := createTestUser(models.RoleAnalyst, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	_, err := services.SetChecklistCompletion(db.DB, exp.ID, item.ID, true, supervisor.ID, "")
	assert.NoError(t, err)

	body := `{"toStage": "` + s3.Name + `", "reason": "Requisitos completos"}`
	rec, parsed := doRequest(t, PostStageProgressionHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, parsed["progression"])

	var fresh models.Expediente
	db.DB.First(&fresh, "id = ?", exp.ID)
	assert.Equal(t, s3.Name, fresh.CurrentStage)

	// Side effects: notification fan-out to the target department, history,
	// and the activity trail
	var notifCount int64
	db.DB.Model(&models.StageNotification{}).
		Where("user_id = ? AND expediente_id = ?", analyst.ID, exp.ID).
		Count(&notifCount)
	assert.Equal(t, int64(1), notifCount)

	var historyCount int64
	db.DB.Model(&models.CaseHistory{}).Where("expediente_id = ?", exp.ID).Count(&historyCount)
	assert.Equal(t, int64(1), historyCount)

	// Activity logging is asynchronous
	assert.Eventually(t, func() bool {
		var count int64
		db.DB.Model(&models.Activity{}).
			Where("entity_id = ? AND action = ?", exp.ID, models.ActivityActionStageChange).
			Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPostStageProgressionMissingToStage(t *testing.T) {
	_, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	rec, parsed := doRequest(t, PostStageProgressionHandler, http.MethodPost, `{"reason": "sin destino"}`, &supervisor, exp.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", parsed["error"])
}

func TestPostStageProgressionUnknownCase(t *testing.T) {
	setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)

	rec, parsed := doRequest(t, PostStageProgressionHandler, http.MethodPost, `{"toStage": "x"}`, &supervisor, "no-such-id")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Expediente not found", parsed["error"])
}

func TestPostStageProgressionForeignDepartment(t *testing.T) {
	_, s2, s3, _ := setupHandlerTest(t)
	owner := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	outsider := createTestUser(models.RoleAnalyst, models.DeptDespacho)
	exp := createTestCase(s2, owner)

	body := `{"toStage": "` + s3.Name + `"}`
	rec, _ := doRequest(t, PostStageProgressionHandler, http.MethodPost, body, &outsider, exp.ID)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostStageProgressionTypeReturnShortReason(t *testing.T) {
	s1, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	body := `{"toStage": "` + s1.Name + `", "type": "return", "reason": "corto"}`
	rec, parsed := doRequest(t, PostStageProgressionHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", parsed["error"])
}

func TestPostStageProgressionTypeReturnShortObservations(t *testing.T) {
	s1, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	body := `{"toStage": "` + s1.Name + `", "type": "return", "reason": "Documentación incompleta detectada", "observations": "breve"}`
	rec, parsed := doRequest(t, PostStageProgressionHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", parsed["error"])

	var reloaded models.Expediente
	assert.NoError(t, db.DB.First(&reloaded, "id = ?", exp.ID).Error)
	assert.Equal(t, s2.Name, reloaded.CurrentStage)
}

func TestPostStageReturnSuccess(t *testing.T) {
	s1, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	body := `{
		"toStage": "` + s1.Name + `",
		"reason": "Documentación incompleta en recepción",
		"observations": "Falta la certificación del estado jurídico del inmueble",
		"priority": "ALTA"
	}`
	rec, parsed := doRequest(t, PostStageReturnHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, parsed["progression"])

	var fresh models.Expediente
	db.DB.First(&fresh, "id = ?", exp.ID)
	assert.Equal(t, s1.Name, fresh.CurrentStage)
	assert.Equal(t, models.PriorityAlta, fresh.Priority)

	assert.Eventually(t, func() bool {
		var count int64
		db.DB.Model(&models.Activity{}).
			Where("entity_id = ? AND action = ?", exp.ID, models.ActivityActionStageReturn).
			Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPostStageReturnValidation(t *testing.T) {
	s1, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	// Observations under the 20-character minimum
	body := `{
		"toStage": "` + s1.Name + `",
		"reason": "Documentación incompleta",
		"observations": "muy breve",
		"priority": "ALTA"
	}`
	rec, parsed := doRequest(t, PostStageReturnHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", parsed["error"])
}

func TestPostStageReturnForwardTargetRejected(t *testing.T) {
	_, s2, s3, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	body := `{
		"toStage": "` + s3.Name + `",
		"reason": "Intento de avance disfrazado",
		"observations": "Esto no debería ser aceptado como devolución",
		"priority": "MEDIA"
	}`
	rec, parsed := doRequest(t, PostStageReturnHandler, http.MethodPost, body, &supervisor, exp.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidReturn", parsed["error"])
}

func TestPostStageReturnWithApprovalNotifiesApprovers(t *testing.T) {
	s1, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	analyst := createTestUser(models.RoleAnalyst, models.DeptJuridico)
	deptAdmin := createTestUser(models.RoleDepartmentAdmin, models.DeptDespacho)
	exp := createTestCase(s2, supervisor)

	// Analysts cannot self-approve, so their return stays pending approval
	db.DB.Model(&models.Expediente{}).Where("id = ?", exp.ID).
		Update("assigned_to_id", analyst.ID)

	body := `{
		"toStage": "` + s1.Name + `",
		"reason": "Documentación incompleta en recepción",
		"observations": "Requiere visto bueno del encargado antes de devolver",
		"priority": "MEDIA",
		"requiresApproval": true
	}`
	rec, _ := doRequest(t, PostStageReturnHandler, http.MethodPost, body, &analyst, exp.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The return moved the case to s1's department, whose admins get the
	// approval request
	var approvalCount int64
	db.DB.Model(&models.StageNotification{}).
		Where("user_id = ? AND type = ?", deptAdmin.ID, models.NotificationTypeApprovalRequest).
		Count(&approvalCount)
	assert.Equal(t, int64(1), approvalCount)
}

func TestGetStageProgressionHandler(t *testing.T) {
	_, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s2, supervisor)

	rec, parsed := doRequest(t, GetStageProgressionHandler, http.MethodGet, "", &supervisor, exp.ID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, s2.Name, parsed["current_stage"])
	assert.NotNil(t, parsed["progressions"])
}

func TestGetStageReturnHandler(t *testing.T) {
	s1, s2, _, _ := setupHandlerTest(t)
	supervisor := createTestUser(models.RoleSupervisor, models.DeptJuridico)
	exp := createTestCase(s1, supervisor)

	// Move forward once so s1 becomes returnable
	_, err := services.ProgressStage(db.DB, services.ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      s2.Name,
		ActorID:      supervisor.ID,
	})
	assert.NoError(t, err)

	rec, parsed := doRequest(t, GetStageReturnHandler, http.MethodGet, "", &supervisor, exp.ID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, s2.Name, parsed["current_stage"])

	returnable, ok := parsed["returnable_stages"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, returnable, 1)
}
