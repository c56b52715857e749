package handlers

import (
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// NotificationSvc is the shared notification service, wired at startup.
var NotificationSvc *services.NotificationService

func notificationService() *services.NotificationService {
	if NotificationSvc != nil {
		return NotificationSvc
	}
	return services.NewNotificationService(db.DB)
}

// GetStageProgressionHandler lists the progression history and current stage
// of a case.
func GetStageProgressionHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	progressions, err := services.GetProgressionHistory(db.DB, exp.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load progression history"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"current_stage": exp.CurrentStage,
		"status":        exp.Status,
		"progressions":  progressions,
	})
}

type progressionRequest struct {
	ToStage      string `json:"toStage" validate:"required"`
	Reason       string `json:"reason"`
	Observations string `json:"observations"`
	Type         string `json:"type"` // "return" selects the stricter variant
}

// PostStageProgressionHandler moves a case to another stage. A body with
// type="return" is delegated to the return variant with its stricter schema.
func PostStageProgressionHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	var req progressionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "toStage is required"})
	}

	if req.Type == "return" {
		return executeReturn(c, exp, returnRequest{
			ToStage:      req.ToStage,
			Reason:       req.Reason,
			Observations: req.Observations,
		})
	}

	user := middleware.GetCurrentUser(c)
	result, err := services.ProgressStage(db.DB, services.ProgressionInput{
		ExpedienteID: exp.ID,
		ToStage:      req.ToStage,
		Reason:       sanitize(req.Reason),
		Observations: sanitize(req.Observations),
		ActorID:      user.ID,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return progressionErrorResponse(c, err)
	}

	finishProgression(c, result)

	return c.JSON(http.StatusOK, result)
}

// finishProgression runs the post-commit side effects of a successful move:
// notification fan-out, case history, and the activity trail. All best-effort.
func finishProgression(c echo.Context, result *services.ProgressionResult) {
	prog := result.Progression
	exp := result.Expediente

	var targetStage models.Stage
	if err := db.DB.Where("name = ?", prog.ToStage).First(&targetStage).Error; err == nil {
		notificationService().NotifyStageChange(exp, &targetStage, prog)
	}

	actor := middleware.GetActorContext(c)
	services.RecordStageHistory(db.DB, exp.ID, prog.FromStage, prog.ToStage, prog.PerformedByID, prog.DaysInPriorStage)

	action := models.ActivityActionStageChange
	description := "Expediente " + exp.FileNumber + " avanzado a " + prog.ToStage
	if prog.ProgressionType == models.ProgressionBackward {
		action = models.ActivityActionStageReturn
		description = "Expediente " + exp.FileNumber + " devuelto a " + prog.ToStage
	}
	services.LogActivity(db.DB, actor, action, "Expediente", exp.ID, exp.FileNumber, description, map[string]interface{}{
		"from_stage":       prog.FromStage,
		"to_stage":         prog.ToStage,
		"progression_type": prog.ProgressionType,
		"reason":           prog.Reason,
	})
}
