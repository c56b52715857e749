package services

import (
	"strings"
	"testing"

	"expediente_flow_go/models"

	"github.com/stretchr/testify/assert"
)

func TestExportExpedientesXLSX(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)

	expA := createCaseAt(db, s1, supervisor)
	expB := createCaseAt(db, s2, supervisor)
	db.Model(&models.Expediente{}).Where("id = ?", expB.ID).
		Update("priority", models.PriorityUrgente)

	f, err := ExportExpedientesXLSX(db, ReportFilters{})
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Expedientes")
	assert.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, "Número de Expediente", rows[0][0])
	assert.Equal(t, "Días en Proceso", rows[0][15])

	fileNumbers := []string{rows[1][0], rows[2][0]}
	assert.Contains(t, fileNumbers, expA.FileNumber)
	assert.Contains(t, fileNumbers, expB.FileNumber)
}

func TestExportExpedientesXLSXFiltered(t *testing.T) {
	db := setupProgressionTestDB()
	s1, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)

	createCaseAt(db, s1, supervisor)
	target := createCaseAt(db, s2, supervisor)

	f, err := ExportExpedientesXLSX(db, ReportFilters{Stage: s2.Name})
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Expedientes")
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, target.FileNumber, rows[1][0])
}

func TestReportFileName(t *testing.T) {
	name := ReportFileName()
	assert.True(t, strings.HasPrefix(name, "expedientes_"))
	assert.True(t, strings.HasSuffix(name, ".xlsx"))
}
