package handlers

import (
	"errors"
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// GetChecklistHandler returns checklist items with completion state and
// progress for the case's current stage, or for ?stage= when given.
func GetChecklistHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	stageName := c.QueryParam("stage")
	if stageName == "" {
		stageName = exp.CurrentStage
	}

	stage, err := services.GetStageByName(db.DB, stageName)
	if err != nil {
		if errors.Is(err, services.ErrStageNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Stage not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load stage"})
	}

	progress, err := services.GetChecklistProgress(db.DB, exp.ID, stage)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load checklist"})
	}

	return c.JSON(http.StatusOK, progress)
}

type createChecklistItemRequest struct {
	Title       string `json:"title" validate:"required,min=3"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// PostChecklistHandler creates a checklist item on the case's current stage.
// Admin-only.
func PostChecklistHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	var req createChecklistItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}

	stage, err := services.GetStageByName(db.DB, exp.CurrentStage)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load stage"})
	}

	user := middleware.GetCurrentUser(c)
	item, err := services.CreateChecklistItem(db.DB, stage, sanitize(req.Title), sanitize(req.Description), req.IsRequired, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create checklist item"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionCreate, "StageChecklist", item.ID, item.Title,
		"Nuevo requisito agregado a la etapa "+stage.DisplayName, nil)

	return c.JSON(http.StatusCreated, item)
}

type setCompletionRequest struct {
	ChecklistItemID string `json:"checklistItemId" validate:"required"`
	IsCompleted     bool   `json:"isCompleted"`
	Notes           string `json:"notes"`
}

// PutChecklistHandler upserts a completion record for the case's active
// assignment and returns the updated progress summary.
func PutChecklistHandler(c echo.Context) error {
	exp, err := loadExpediente(c)
	if exp == nil {
		return err
	}

	var req setCompletionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}

	user := middleware.GetCurrentUser(c)
	completion, err := services.SetChecklistCompletion(db.DB, exp.ID, req.ChecklistItemID, req.IsCompleted, user.ID, sanitize(req.Notes))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChecklistItemNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Checklist item not found"})
		case errors.Is(err, services.ErrChecklistStageMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Checklist item does not belong to the current stage"})
		case errors.Is(err, services.ErrNoActiveAssignment):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Case has no active stage assignment"})
		case errors.Is(err, services.ErrCaseNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Expediente not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update checklist"})
		}
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionChecklistCheck, "Expediente", exp.ID, exp.FileNumber,
		"Requisito actualizado", map[string]interface{}{
			"checklist_item_id": req.ChecklistItemID,
			"is_completed":      req.IsCompleted,
		})

	stage, err := services.GetStageByName(db.DB, exp.CurrentStage)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"completion": completion})
	}
	progress, err := services.GetChecklistProgress(db.DB, exp.ID, stage)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"completion": completion})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"completion": completion,
		"progress":   progress,
	})
}
