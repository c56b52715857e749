package services

import (
	"testing"

	"expediente_flow_go/models"

	"github.com/stretchr/testify/assert"
)

func TestGetChecklistProgress(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, _, required := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	optional := models.StageChecklist{StageID: s2.ID, Title: "Fotografías anexadas", Sequence: 2, IsRequired: false, IsActive: true}
	db.Create(&optional)

	progress, err := GetChecklistProgress(db, exp.ID, &s2)
	assert.NoError(t, err)
	assert.Equal(t, 2, progress.Total)
	assert.Equal(t, 0, progress.Completed)
	assert.Equal(t, 0, progress.Percentage)
	assert.False(t, progress.CanProgress)

	// Required items sort before optional ones
	assert.Equal(t, required.ID, progress.Items[0].Item.ID)

	// Completing the optional item does not unlock progression
	_, err = SetChecklistCompletion(db, exp.ID, optional.ID, true, supervisor.ID, "")
	assert.NoError(t, err)

	progress, err = GetChecklistProgress(db, exp.ID, &s2)
	assert.NoError(t, err)
	assert.Equal(t, 1, progress.Completed)
	assert.Equal(t, 0, progress.Percentage)
	assert.False(t, progress.CanProgress)

	// Completing the required item does
	_, err = SetChecklistCompletion(db, exp.ID, required.ID, true, supervisor.ID, "ok")
	assert.NoError(t, err)

	progress, err = GetChecklistProgress(db, exp.ID, &s2)
	assert.NoError(t, err)
	assert.Equal(t, 2, progress.Completed)
	assert.Equal(t, 100, progress.Percentage)
	assert.True(t, progress.CanProgress)
}

func TestGetChecklistProgressNoRequiredItems(t *testing.T) {
	db := setupProgressionTestDB()
	s1, _, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	// s1 has no checklist items at all
	progress, err := GetChecklistProgress(db, exp.ID, &s1)
	assert.NoError(t, err)
	assert.Equal(t, 0, progress.Total)
	assert.Equal(t, 100, progress.Percentage)
	assert.True(t, progress.CanProgress)
}

func TestSetChecklistCompletionUpsert(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, _, required := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	first, err := SetChecklistCompletion(db, exp.ID, required.ID, true, supervisor.ID, "listo")
	assert.NoError(t, err)
	assert.True(t, first.IsCompleted)
	assert.NotNil(t, first.CompletedAt)
	assert.NotNil(t, first.CompletedByID)
	assert.Equal(t, supervisor.ID, *first.CompletedByID)

	// Unchecking updates the same row and clears the completion metadata
	second, err := SetChecklistCompletion(db, exp.ID, required.ID, false, supervisor.ID, "")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.IsCompleted)
	assert.Nil(t, second.CompletedAt)
	assert.Nil(t, second.CompletedByID)

	var count int64
	db.Model(&models.ChecklistCompletion{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSetChecklistCompletionStageMismatch(t *testing.T) {
	db := setupProgressionTestDB()
	s1, _, _, required := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptDespacho)
	exp := createCaseAt(db, s1, supervisor)

	// The required item belongs to s2 but the case sits at s1
	_, err := SetChecklistCompletion(db, exp.ID, required.ID, true, supervisor.ID, "")
	assert.ErrorIs(t, err, ErrChecklistStageMismatch)
}

func TestSetChecklistCompletionUnknownItem(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)
	exp := createCaseAt(db, s2, supervisor)

	_, err := SetChecklistCompletion(db, exp.ID, "missing-item-id", true, supervisor.ID, "")
	assert.ErrorIs(t, err, ErrChecklistItemNotFound)
}

func TestCreateChecklistItemAppendsSequence(t *testing.T) {
	db := setupProgressionTestDB()
	_, s2, _, _ := seedWorkflow(db)
	supervisor := createSupervisor(db, models.DeptJuridico)

	item, err := CreateChecklistItem(db, &s2, "Nuevo requisito", "", true, supervisor.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, item.Sequence)

	item2, err := CreateChecklistItem(db, &s2, "Otro requisito", "", false, supervisor.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, item2.Sequence)
}
