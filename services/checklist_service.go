package services

import (
	"errors"
	"time"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

// Checklist-related errors
var (
	ErrChecklistItemNotFound  = errors.New("checklist item not found")
	ErrChecklistStageMismatch = errors.New("checklist item does not belong to the case's current stage")
	ErrNoActiveAssignment     = errors.New("case has no active stage assignment")
)

// ChecklistItemState joins a catalog item with its completion under the
// case's active assignment.
type ChecklistItemState struct {
	Item       models.StageChecklist       `json:"item"`
	Completion *models.ChecklistCompletion `json:"completion,omitempty"`
}

// ChecklistProgress summarizes checklist state for one stage of a case.
type ChecklistProgress struct {
	Items       []ChecklistItemState `json:"items"`
	Completed   int                  `json:"completed"`
	Total       int                  `json:"total"`
	Percentage  int                  `json:"percentage"`
	CanProgress bool                 `json:"can_progress"`
}

// GetChecklistProgress returns the checklist items of a stage with their
// completion state under the case's active assignment. Percentage and
// CanProgress consider required active items only.
func GetChecklistProgress(db *gorm.DB, expedienteID string, stage *models.Stage) (*ChecklistProgress, error) {
	var items []models.StageChecklist
	if err := db.Where("stage_id = ? AND is_active = ?", stage.ID, true).
		Order("is_required DESC, sequence ASC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	assignment, err := GetActiveAssignment(db, expedienteID)
	if err != nil {
		return nil, err
	}

	completions := map[string]*models.ChecklistCompletion{}
	if assignment != nil {
		var rows []models.ChecklistCompletion
		if err := db.Where("stage_assignment_id = ?", assignment.ID).
			Preload("CompletedBy").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			completions[rows[i].ChecklistItemID] = &rows[i]
		}
	}

	progress := &ChecklistProgress{Items: make([]ChecklistItemState, 0, len(items))}
	requiredTotal := 0
	requiredDone := 0
	for _, item := range items {
		state := ChecklistItemState{Item: item, Completion: completions[item.ID]}
		progress.Items = append(progress.Items, state)
		progress.Total++
		done := state.Completion != nil && state.Completion.IsCompleted
		if done {
			progress.Completed++
		}
		if item.IsRequired {
			requiredTotal++
			if done {
				requiredDone++
			}
		}
	}

	if requiredTotal > 0 {
		progress.Percentage = requiredDone * 100 / requiredTotal
	} else {
		progress.Percentage = 100
	}
	progress.CanProgress = progress.Percentage == 100

	return progress, nil
}

// SetChecklistCompletion upserts the completion record for one item under
// the case's active assignment. The item must belong to the case's current
// stage. CompletedAt/CompletedBy are set only when transitioning to
// completed and cleared otherwise.
func SetChecklistCompletion(db *gorm.DB, expedienteID, checklistItemID string, isCompleted bool, actorID, notes string) (*models.ChecklistCompletion, error) {
	var exp models.Expediente
	if err := db.First(&exp, "id = ?", expedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	currentStage, err := GetStageByName(db, exp.CurrentStage)
	if err != nil {
		return nil, err
	}

	var item models.StageChecklist
	if err := db.First(&item, "id = ?", checklistItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChecklistItemNotFound
		}
		return nil, err
	}
	if item.StageID != currentStage.ID {
		return nil, ErrChecklistStageMismatch
	}

	assignment, err := GetActiveAssignment(db, expedienteID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrNoActiveAssignment
	}

	var completion models.ChecklistCompletion
	err = db.Where("stage_assignment_id = ? AND checklist_item_id = ?", assignment.ID, item.ID).
		First(&completion).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	completion.StageAssignmentID = assignment.ID
	completion.ChecklistItemID = item.ID
	completion.IsCompleted = isCompleted
	completion.Notes = notes
	if isCompleted {
		now := time.Now()
		completion.CompletedAt = &now
		completion.CompletedByID = &actorID
	} else {
		completion.CompletedAt = nil
		completion.CompletedByID = nil
	}

	if completion.ID == "" {
		if err := db.Create(&completion).Error; err != nil {
			return nil, err
		}
	} else {
		if err := db.Model(&models.ChecklistCompletion{}).
			Where("id = ?", completion.ID).
			Updates(map[string]interface{}{
				"is_completed":    completion.IsCompleted,
				"completed_at":    completion.CompletedAt,
				"completed_by_id": completion.CompletedByID,
				"notes":           completion.Notes,
			}).Error; err != nil {
			return nil, err
		}
	}

	return &completion, nil
}

// CreateChecklistItem adds a catalog checklist item to a stage, appended
// after the existing items.
func CreateChecklistItem(db *gorm.DB, stage *models.Stage, title, description string, isRequired bool, createdByID string) (*models.StageChecklist, error) {
	var maxSeq int
	db.Model(&models.StageChecklist{}).
		Where("stage_id = ?", stage.ID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq)

	item := &models.StageChecklist{
		StageID:     stage.ID,
		Title:       title,
		Description: description,
		Sequence:    maxSeq + 1,
		IsRequired:  isRequired,
		IsActive:    true,
		CreatedByID: &createdByID,
	}

	if err := db.Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}
