package handlers

import (
	"net/http"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// GetDashboardHandler returns the aggregate figures for the main dashboard
func GetDashboardHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	stats, err := services.GetDashboardStats(db.DB, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to compute dashboard"})
	}

	return c.JSON(http.StatusOK, stats)
}
