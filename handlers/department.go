package handlers

import (
	"errors"
	"net/http"
	"strings"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetDepartmentsHandler lists departments
func GetDepartmentsHandler(c echo.Context) error {
	var departments []models.Department
	if err := db.DB.Order("name ASC").Find(&departments).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load departments"})
	}
	return c.JSON(http.StatusOK, echo.Map{"departments": departments})
}

type createDepartmentRequest struct {
	Code        string `json:"code" validate:"required,min=2,max=20"`
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description"`
}

// CreateDepartmentHandler registers a new department. Superadmin-only.
func CreateDepartmentHandler(c echo.Context) error {
	var req createDepartmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var existing models.Department
	if err := db.DB.Where("code = ?", code).First(&existing).Error; err == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "department code already in use"})
	}

	dept := &models.Department{
		Code:        code,
		Name:        sanitize(req.Name),
		Description: sanitize(req.Description),
		IsActive:    true,
	}
	if err := db.DB.Create(dept).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create department"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionCreate, "Department", dept.ID, dept.Name,
		"Departamento creado: "+dept.Code, nil)

	return c.JSON(http.StatusCreated, dept)
}

// GetDepartmentStatisticsHandler returns workload figures for one department
func GetDepartmentStatisticsHandler(c echo.Context) error {
	stats, err := services.GetDepartmentStatistics(db.DB, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Department not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to compute statistics"})
	}
	return c.JSON(http.StatusOK, stats)
}
