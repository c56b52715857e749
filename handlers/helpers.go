package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// EmailSvc is the shared email service, wired at startup. Nil disables email.
var EmailSvc *services.EmailService

// sanitizePolicy strips all HTML from user-supplied free text
var sanitizePolicy = bluemonday.StrictPolicy()

// sanitize cleans free-text input before it reaches the database
func sanitize(s string) string {
	return strings.TrimSpace(sanitizePolicy.Sanitize(s))
}

// loadExpediente fetches a case by path param and enforces the department
// scope of the current user. Writes the error response itself and returns nil
// when access is denied.
func loadExpediente(c echo.Context) (*models.Expediente, error) {
	id := c.Param("id")

	var exp models.Expediente
	err := db.DB.Preload("Department").
		Preload("AssignedTo").
		Preload("Supervisor").
		Preload("CreatedBy").
		First(&exp, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "Expediente not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load expediente"})
	}

	if !middleware.CanAccessExpediente(c, &exp) {
		return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
	}

	return &exp, nil
}

// progressionErrorResponse maps service errors from the progression engine to
// the HTTP error taxonomy.
func progressionErrorResponse(c echo.Context, err error) error {
	var checklistErr *services.ChecklistIncompleteError
	if errors.As(err, &checklistErr) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":        "ChecklistIncomplete",
			"missingItems": checklistErr.MissingItems,
		})
	}

	switch {
	case errors.Is(err, services.ErrCaseNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrStageNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidReturn):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "InvalidReturn"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ProgressionFailed"})
	}
}

// paginationParams reads page/page_size query params with sane bounds
func paginationParams(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
