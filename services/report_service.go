package services

import (
	"fmt"
	"time"

	"expediente_flow_go/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportFilters narrows the expediente register export
type ReportFilters struct {
	Status       string
	Priority     string
	DepartmentID string
	Stage        string
	DateFrom     time.Time
	DateTo       time.Time
}

// ExportExpedientesXLSX builds an xlsx register of expedientes matching the
// filters. The caller owns the returned file and must Close it.
func ExportExpedientesXLSX(db *gorm.DB, filters ReportFilters) (*excelize.File, error) {
	query := db.Model(&models.Expediente{}).
		Preload("Department").
		Preload("AssignedTo").
		Preload("CreatedBy")

	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if filters.DepartmentID != "" {
		query = query.Where("department_id = ?", filters.DepartmentID)
	}
	if filters.Stage != "" {
		query = query.Where("current_stage = ?", filters.Stage)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}

	var expedientes []models.Expediente
	if err := query.Order("created_at DESC").Find(&expedientes).Error; err != nil {
		return nil, fmt.Errorf("failed to load expedientes for export: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Expedientes"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Número de Expediente", "Propietario", "Cédula/RNC", "Dirección",
		"Municipio", "Provincia", "Área (m²)", "Valor de Tasación",
		"Etapa Actual", "Estado", "Prioridad", "Departamento",
		"Asignado a", "Creado por", "Fecha de Creación", "Días en Proceso",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheet, "A1", lastCell, headerStyle)
	}

	for i, exp := range expedientes {
		row := i + 2

		assignedName := ""
		if exp.AssignedTo != nil {
			assignedName = exp.AssignedTo.Name
		}

		var landArea, appraisal float64
		if exp.LandArea != nil {
			landArea = *exp.LandArea
		}
		if exp.AppraisalValue != nil {
			appraisal = *exp.AppraisalValue
		}

		values := []interface{}{
			exp.FileNumber,
			exp.OwnerName,
			exp.OwnerCedula,
			exp.Address,
			exp.Municipality,
			exp.Province,
			landArea,
			appraisal,
			exp.CurrentStage,
			exp.Status,
			exp.Priority,
			exp.Department.Name,
			assignedName,
			exp.CreatedBy.Name,
			exp.CreatedAt.Format("2006-01-02"),
			exp.DaysInProcess(),
		}
		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "D", 25)
	f.SetColWidth(sheet, "I", "N", 22)

	return f, nil
}

// ReportFileName builds the download name for the register export
func ReportFileName() string {
	return fmt.Sprintf("expedientes_%s.xlsx", time.Now().Format("20060102_150405"))
}
