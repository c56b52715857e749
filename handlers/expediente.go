package handlers

import (
	"errors"
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetExpedientesHandler lists cases with filters and pagination. Non-admin
// users only see cases of their own department or assigned to them.
func GetExpedientesHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	query := db.DB.Model(&models.Expediente{}).
		Preload("Department").
		Preload("AssignedTo")

	if user.Role != models.RoleSuperAdmin {
		if user.DepartmentID != nil {
			query = query.Where("department_id = ? OR assigned_to_id = ? OR supervisor_id = ? OR created_by_id = ?",
				*user.DepartmentID, user.ID, user.ID, user.ID)
		} else {
			query = query.Where("assigned_to_id = ? OR supervisor_id = ? OR created_by_id = ?",
				user.ID, user.ID, user.ID)
		}
	}

	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := c.QueryParam("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if stage := c.QueryParam("stage"); stage != "" {
		query = query.Where("current_stage = ?", stage)
	}
	if deptID := c.QueryParam("department_id"); deptID != "" {
		query = query.Where("department_id = ?", deptID)
	}
	if assignedTo := c.QueryParam("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to_id = ?", assignedTo)
	}
	if search := c.QueryParam("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("file_number LIKE ? OR owner_name LIKE ? OR owner_cedula LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to count expedientes"})
	}

	page, pageSize := paginationParams(c)

	var expedientes []models.Expediente
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&expedientes).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load expedientes"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"expedientes": expedientes,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

type createExpedienteRequest struct {
	OwnerName      string   `json:"ownerName" validate:"required,min=3"`
	OwnerCedula    string   `json:"ownerCedula" validate:"required,min=9"`
	Address        string   `json:"address"`
	Municipality   string   `json:"municipality"`
	Province       string   `json:"province"`
	LandArea       *float64 `json:"landArea"`
	AppraisalValue *float64 `json:"appraisalValue"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=BAJA MEDIA ALTA URGENTE"`
	SupervisorID   *string  `json:"supervisorId"`
}

// CreateExpedienteHandler registers a new case at the first workflow stage
func CreateExpedienteHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	var req createExpedienteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}

	// Intake cases start at the first stage's department
	var firstStage models.Stage
	if err := db.DB.Where("is_active = ?", true).Order("sequence_order ASC").First(&firstStage).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Stage catalog is empty"})
	}
	var dept models.Department
	if err := db.DB.Where("code = ?", firstStage.DepartmentCode).First(&dept).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Intake department not found"})
	}

	exp := &models.Expediente{
		OwnerName:      sanitize(req.OwnerName),
		OwnerCedula:    sanitize(req.OwnerCedula),
		Address:        sanitize(req.Address),
		Municipality:   sanitize(req.Municipality),
		Province:       sanitize(req.Province),
		LandArea:       req.LandArea,
		AppraisalValue: req.AppraisalValue,
		Priority:       req.Priority,
		DepartmentID:   dept.ID,
		SupervisorID:   req.SupervisorID,
		CreatedByID:    user.ID,
	}

	if err := services.CreateExpediente(db.DB, exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create expediente"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionCreate, "Expediente", exp.ID, exp.FileNumber,
		"Expediente creado: "+exp.FileNumber, nil)

	return c.JSON(http.StatusCreated, exp)
}

// GetExpedienteHandler returns one case with its relationships
func GetExpedienteHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}
	return c.JSON(http.StatusOK, exp)
}

type updateExpedienteRequest struct {
	OwnerName      *string  `json:"ownerName"`
	Address        *string  `json:"address"`
	Municipality   *string  `json:"municipality"`
	Province       *string  `json:"province"`
	LandArea       *float64 `json:"landArea"`
	AppraisalValue *float64 `json:"appraisalValue"`
	Priority       *string  `json:"priority"`
	Status         *string  `json:"status"`
	AssignedToID   *string  `json:"assignedToId"`
	SupervisorID   *string  `json:"supervisorId"`
}

// UpdateExpedienteHandler applies a partial update to case metadata. Workflow
// position is never updated here; that is the progression engine's job.
func UpdateExpedienteHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	var req updateExpedienteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.OwnerName != nil {
		updates["owner_name"] = sanitize(*req.OwnerName)
	}
	if req.Address != nil {
		updates["address"] = sanitize(*req.Address)
	}
	if req.Municipality != nil {
		updates["municipality"] = sanitize(*req.Municipality)
	}
	if req.Province != nil {
		updates["province"] = sanitize(*req.Province)
	}
	if req.LandArea != nil {
		updates["land_area"] = *req.LandArea
	}
	if req.AppraisalValue != nil {
		updates["appraisal_value"] = *req.AppraisalValue
	}
	if req.Priority != nil {
		if !models.IsValidPriority(*req.Priority) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "invalid priority"})
		}
		updates["priority"] = *req.Priority
	}
	if req.Status != nil {
		if !models.IsValidExpedienteStatus(*req.Status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "invalid status"})
		}
		updates["status"] = *req.Status
	}
	if req.AssignedToID != nil {
		if *req.AssignedToID == "" {
			updates["assigned_to_id"] = nil
		} else {
			var assignee models.User
			if err := db.DB.First(&assignee, "id = ?", *req.AssignedToID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return c.JSON(http.StatusNotFound, echo.Map{"error": "Assignee not found"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load assignee"})
			}
			updates["assigned_to_id"] = assignee.ID
		}
	}
	if req.SupervisorID != nil {
		if *req.SupervisorID == "" {
			updates["supervisor_id"] = nil
		} else {
			updates["supervisor_id"] = *req.SupervisorID
		}
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusOK, exp)
	}

	if err := db.DB.Model(&models.Expediente{}).Where("id = ?", exp.ID).Updates(updates).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update expediente"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionUpdate, "Expediente", exp.ID, exp.FileNumber,
		"Expediente actualizado", updates)

	var updated models.Expediente
	if err := db.DB.Preload("Department").Preload("AssignedTo").First(&updated, "id = ?", exp.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to reload expediente"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteExpedienteHandler soft-deletes a case. Admin-only.
func DeleteExpedienteHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	user := middleware.GetCurrentUser(c)
	if err := services.SoftDeleteExpediente(db.DB, exp.ID, user.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete expediente"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionDelete, "Expediente", exp.ID, exp.FileNumber,
		"Expediente eliminado: "+exp.FileNumber, nil)

	return c.JSON(http.StatusOK, echo.Map{"message": "Expediente deleted"})
}

// GetExpedienteActivityHandler returns the activity trail of a case
func GetExpedienteActivityHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	activities, err := services.GetCaseActivity(db.DB, exp.ID, 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load activity"})
	}
	return c.JSON(http.StatusOK, echo.Map{"activities": activities})
}

// GetExpedienteHistoryHandler returns the field-change history of a case
func GetExpedienteHistoryHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	history, err := services.GetCaseHistory(db.DB, exp.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load history"})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": history})
}
