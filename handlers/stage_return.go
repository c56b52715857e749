package handlers

import (
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// GetStageReturnHandler enumerates previously visited stages eligible for a
// return, with visit counts and recent-return warnings.
func GetStageReturnHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	stages, err := services.GetReturnableStages(db.DB, exp.ID)
	if err != nil {
		return progressionErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"current_stage":     exp.CurrentStage,
		"returnable_stages": stages,
	})
}

type returnRequest struct {
	ToStage          string `json:"toStage" validate:"required"`
	Reason           string `json:"reason" validate:"required,min=10"`
	Observations     string `json:"observations" validate:"required,min=20"`
	RequiresApproval bool   `json:"requiresApproval"`
	Priority         string `json:"priority" validate:"required,oneof=BAJA MEDIA ALTA URGENTE"`
}

// PostStageReturnHandler performs a backward progression with the stricter
// justification schema.
func PostStageReturnHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	var req returnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}

	return executeReturn(c, exp, req)
}

// executeReturn runs the return variant and its side effects. Shared by the
// dedicated endpoint and the type="return" branch of the progression endpoint.
func executeReturn(c echo.Context, exp *models.Expediente, req returnRequest) error {
	if len(req.Reason) < 10 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "reason must be at least 10 characters"})
	}
	if len(req.Observations) < 20 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "observations must be at least 20 characters"})
	}

	user := middleware.GetCurrentUser(c)
	result, err := services.ReturnStage(db.DB, services.ReturnInput{
		ExpedienteID:     exp.ID,
		ToStage:          req.ToStage,
		Reason:           sanitize(req.Reason),
		Observations:     sanitize(req.Observations),
		ActorID:          user.ID,
		RequiresApproval: req.RequiresApproval,
		Priority:         req.Priority,
		IPAddress:        c.RealIP(),
		UserAgent:        c.Request().UserAgent(),
	})
	if err != nil {
		return progressionErrorResponse(c, err)
	}

	finishProgression(c, result)

	if result.Progression.RequiresApproval {
		var targetStage models.Stage
		if err := db.DB.Where("name = ?", result.Progression.ToStage).First(&targetStage).Error; err == nil {
			notificationService().NotifyApprovalRequest(result.Expediente, &targetStage, user)
		}
	}

	return c.JSON(http.StatusOK, result)
}
