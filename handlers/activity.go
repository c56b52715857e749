package handlers

import (
	"net/http"
	"time"

	"expediente_flow_go/db"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// GetActivityLogHandler returns the paginated global activity log. Admin-only.
func GetActivityLogHandler(c echo.Context) error {
	filters := services.ActivityFilters{
		UserID:     c.QueryParam("user_id"),
		EntityType: c.QueryParam("entity_type"),
		Action:     c.QueryParam("action"),
	}
	if from := c.QueryParam("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filters.DateFrom = t
		}
	}
	if to := c.QueryParam("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filters.DateTo = t.AddDate(0, 0, 1)
		}
	}

	page, pageSize := paginationParams(c)

	activities, total, err := services.GetActivityLog(db.DB, filters, page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load activity log"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"activities": activities,
		"total":      total,
		"page":       page,
		"page_size":  pageSize,
	})
}
