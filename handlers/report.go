package handlers

import (
	"net/http"
	"time"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// ExportExpedientesHandler streams the case register as an xlsx file
func ExportExpedientesHandler(c echo.Context) error {
	filters := services.ReportFilters{
		Status:       c.QueryParam("status"),
		Priority:     c.QueryParam("priority"),
		DepartmentID: c.QueryParam("department_id"),
		Stage:        c.QueryParam("stage"),
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

	// Non-admins export their own department only
	user := middleware.GetCurrentUser(c)
	if user.Role != models.RoleSuperAdmin && user.DepartmentID != nil {
		filters.DepartmentID = *user.DepartmentID
	}

	file, err := services.ExportExpedientesXLSX(db.DB, filters)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to build report"})
	}
	defer file.Close()

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionDownload, "Report", "expedientes-export", "Registro de expedientes",
		"Registro de expedientes exportado", nil)

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+services.ReportFileName()+`"`)
	c.Response().Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)

	return file.Write(c.Response().Writer)
}
