package handlers

import (
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/models"

	"github.com/labstack/echo/v4"
)

// GetStagesHandler lists the workflow stage catalog with checklist items
func GetStagesHandler(c echo.Context) error {
	var stages []models.Stage
	if err := db.DB.Where("is_active = ?", true).
		Preload("ChecklistItems", "is_active = ?", true).
		Order("sequence_order ASC").
		Find(&stages).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load stages"})
	}

	return c.JSON(http.StatusOK, echo.Map{"stages": stages})
}
