package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

// Progression-related errors
var (
	ErrCaseNotFound      = errors.New("expediente not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrStageNotFound     = errors.New("stage not found")
	ErrForbidden         = errors.New("insufficient permissions for stage progression")
	ErrInvalidReturn     = errors.New("target stage must precede the current stage")
	ErrProgressionFailed = errors.New("stage progression failed")
)

// ChecklistIncompleteError is returned when a forward move is blocked by
// outstanding required checklist items.
type ChecklistIncompleteError struct {
	MissingItems []string
}

func (e *ChecklistIncompleteError) Error() string {
	return fmt.Sprintf("checklist incomplete: %d required items outstanding", len(e.MissingItems))
}

// ProgressionInput carries everything needed to move a case to another stage.
type ProgressionInput struct {
	ExpedienteID string
	ToStage      string
	Reason       string
	Observations string
	ActorID      string
	IPAddress    string
	UserAgent    string
}

// ProgressionResult is returned on a successful stage move.
type ProgressionResult struct {
	Progression   *models.StageProgression `json:"progression"`
	Expediente    *models.Expediente       `json:"expediente"`
	NewAssignment *models.StageAssignment  `json:"new_assignment"`
}

// ClassifyProgression compares sequence orders: strictly greater is FORWARD,
// strictly less is BACKWARD, equal is JUMP (lateral move).
func ClassifyProgression(current, target *models.Stage) string {
	switch {
	case target.SequenceOrder > current.SequenceOrder:
		return models.ProgressionForward
	case target.SequenceOrder < current.SequenceOrder:
		return models.ProgressionBackward
	default:
		return models.ProgressionJump
	}
}

// GetStageByName loads a catalog stage by its name
func GetStageByName(db *gorm.DB, name string) (*models.Stage, error) {
	var stage models.Stage
	err := db.Where("name = ?", strings.ToUpper(strings.TrimSpace(name))).First(&stage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	return &stage, nil
}

// GetTerminalStage returns the catalog stage with the highest sequence order
func GetTerminalStage(db *gorm.DB) (*models.Stage, error) {
	var stage models.Stage
	err := db.Where("is_active = ?", true).Order("sequence_order DESC").First(&stage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	return &stage, nil
}

// GetActiveAssignment returns the case's active stage assignment, or nil when
// none exists.
func GetActiveAssignment(db *gorm.DB, expedienteID string) (*models.StageAssignment, error) {
	var assignment models.StageAssignment
	err := db.Where("expediente_id = ? AND is_active = ?", expedienteID, true).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// canActorProgress applies the role gate: privileged roles always may, an
// analyst only when assigned to the case.
func canActorProgress(actor *models.User, exp *models.Expediente) bool {
	if actor.CanProgressCases() {
		return true
	}
	if actor.Role == models.RoleAnalyst && exp.AssignedToID != nil && *exp.AssignedToID == actor.ID {
		return true
	}
	return false
}

// missingRequiredItems returns the IDs of required active checklist items of
// the given stage that lack a completed completion under the assignment.
func missingRequiredItems(db *gorm.DB, stage *models.Stage, assignment *models.StageAssignment) ([]string, error) {
	var items []models.StageChecklist
	if err := db.Where("stage_id = ? AND is_required = ? AND is_active = ?", stage.ID, true, true).
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	completed := map[string]bool{}
	if assignment != nil {
		var completions []models.ChecklistCompletion
		if err := db.Where("stage_assignment_id = ? AND is_completed = ?", assignment.ID, true).
			Find(&completions).Error; err != nil {
			return nil, err
		}
		for _, c := range completions {
			completed[c.ChecklistItemID] = true
		}
	}

	var missing []string
	for _, item := range items {
		if !completed[item.ID] {
			missing = append(missing, item.ID)
		}
	}
	return missing, nil
}

// ProgressStage moves a case to the target stage. Forward moves are gated on
// checklist completion; the whole write sequence runs in one transaction and
// rolls back on any failure.
func ProgressStage(db *gorm.DB, input ProgressionInput) (*ProgressionResult, error) {
	var actor models.User
	if err := db.First(&actor, "id = ?", input.ActorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var exp models.Expediente
	if err := db.First(&exp, "id = ?", input.ExpedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	if !canActorProgress(&actor, &exp) {
		return nil, ErrForbidden
	}

	currentStage, err := GetStageByName(db, exp.CurrentStage)
	if err != nil {
		return nil, err
	}
	targetStage, err := GetStageByName(db, input.ToStage)
	if err != nil {
		return nil, err
	}

	progressionType := ClassifyProgression(currentStage, targetStage)

	activeAssignment, err := GetActiveAssignment(db, exp.ID)
	if err != nil {
		return nil, err
	}

	// Checklist gate applies to forward moves only
	if progressionType == models.ProgressionForward {
		missing, err := missingRequiredItems(db, currentStage, activeAssignment)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, &ChecklistIncompleteError{MissingItems: missing}
		}
	}

	return executeProgression(db, &exp, &actor, currentStage, targetStage, progressionType, activeAssignment, input, &actor.ID, false)
}

// ReturnInput carries a backward progression request with its stricter
// justification fields.
type ReturnInput struct {
	ExpedienteID     string
	ToStage          string
	Reason           string
	Observations     string
	ActorID          string
	RequiresApproval bool
	Priority         string
	IPAddress        string
	UserAgent        string
}

// ReturnStage performs the stricter backward-only variant. The target stage
// must strictly precede the current one; checklist completions previously
// recorded for the target stage are reset to incomplete.
func ReturnStage(db *gorm.DB, input ReturnInput) (*ProgressionResult, error) {
	var actor models.User
	if err := db.First(&actor, "id = ?", input.ActorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var exp models.Expediente
	if err := db.First(&exp, "id = ?", input.ExpedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	if !canActorProgress(&actor, &exp) {
		return nil, ErrForbidden
	}

	currentStage, err := GetStageByName(db, exp.CurrentStage)
	if err != nil {
		return nil, err
	}
	targetStage, err := GetStageByName(db, input.ToStage)
	if err != nil {
		return nil, err
	}

	if targetStage.SequenceOrder >= currentStage.SequenceOrder {
		return nil, ErrInvalidReturn
	}

	activeAssignment, err := GetActiveAssignment(db, exp.ID)
	if err != nil {
		return nil, err
	}

	// Privileged roles self-approve; anyone else leaves the progression
	// flagged as pending approval and the fan-out notifies approvers.
	var approvedBy *string
	requiresApproval := input.RequiresApproval
	if actor.CanSelfApproveReturns() {
		approvedBy = &actor.ID
		requiresApproval = false
	} else {
		requiresApproval = true
	}

	if input.Priority != "" && models.IsValidPriority(input.Priority) {
		exp.Priority = input.Priority
	}

	progInput := ProgressionInput{
		ExpedienteID: input.ExpedienteID,
		ToStage:      input.ToStage,
		Reason:       input.Reason,
		Observations: input.Observations,
		ActorID:      input.ActorID,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
	}

	return executeProgression(db, &exp, &actor, currentStage, targetStage, models.ProgressionBackward, activeAssignment, progInput, approvedBy, requiresApproval)
}

// executeProgression performs the multi-statement write sequence atomically:
// progression row, case update, assignment rotation, optional auto-assign,
// and (for backward moves) checklist reset.
func executeProgression(
	db *gorm.DB,
	exp *models.Expediente,
	actor *models.User,
	currentStage, targetStage *models.Stage,
	progressionType string,
	activeAssignment *models.StageAssignment,
	input ProgressionInput,
	approvedBy *string,
	requiresApproval bool,
) (*ProgressionResult, error) {
	var daysInPrior *int
	if activeAssignment != nil {
		d := activeAssignment.DaysInStage()
		daysInPrior = &d
	}

	terminal, err := GetTerminalStage(db)
	if err != nil {
		return nil, err
	}

	var totalStages int64
	if err := db.Model(&models.Stage{}).Where("is_active = ?", true).Count(&totalStages).Error; err != nil {
		return nil, err
	}

	var targetDept models.Department
	deptFound := db.Where("code = ?", targetStage.DepartmentCode).First(&targetDept).Error == nil

	progression := &models.StageProgression{
		ExpedienteID:     exp.ID,
		FromStage:        currentStage.Name,
		ToStage:          targetStage.Name,
		ProgressionType:  progressionType,
		Reason:           input.Reason,
		Observations:     input.Observations,
		PerformedByID:    actor.ID,
		ApprovedByID:     approvedBy,
		RequiresApproval: requiresApproval,
		DaysInPriorStage: daysInPrior,
		IPAddress:        input.IPAddress,
		UserAgent:        input.UserAgent,
	}

	newAssignment := &models.StageAssignment{
		ExpedienteID: exp.ID,
		StageID:      targetStage.ID,
		IsActive:     true,
		AssignedAt:   time.Now(),
	}
	if targetStage.EstimatedDays > 0 {
		due := time.Now().AddDate(0, 0, targetStage.EstimatedDays)
		newAssignment.DueDate = &due
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(progression).Error; err != nil {
			return err
		}

		// Case state
		exp.CurrentStage = targetStage.Name
		if targetStage.ID == terminal.ID {
			exp.Status = models.ExpedienteStatusCompletado
			now := time.Now()
			exp.CompletedAt = &now
			exp.ProgressPct = 100
		} else {
			exp.Status = models.ExpedienteStatusEnProgreso
			exp.CompletedAt = nil
			if totalStages > 0 {
				pct := targetStage.SequenceOrder * 100 / int(totalStages)
				if pct > 100 {
					pct = 100
				}
				exp.ProgressPct = pct
			}
		}
		if deptFound {
			exp.DepartmentID = targetDept.ID
		}

		// Auto-assign the least-loaded eligible user before saving the case
		if targetStage.AutoAssignRole != nil && deptFound {
			if userID, err := leastLoadedUser(tx, targetDept.ID, *targetStage.AutoAssignRole); err == nil && userID != "" {
				exp.AssignedToID = &userID
				newAssignment.AssignedToID = &userID
			}
		}

		if err := tx.Model(&models.Expediente{}).Where("id = ?", exp.ID).
			Updates(map[string]interface{}{
				"current_stage":  exp.CurrentStage,
				"status":         exp.Status,
				"completed_at":   exp.CompletedAt,
				"progress_pct":   exp.ProgressPct,
				"department_id":  exp.DepartmentID,
				"assigned_to_id": exp.AssignedToID,
				"priority":       exp.Priority,
			}).Error; err != nil {
			return err
		}

		// Deactivate every active assignment for the case, then create the
		// replacement, so the one-active-assignment invariant survives races.
		if err := tx.Model(&models.StageAssignment{}).
			Where("expediente_id = ? AND is_active = ?", exp.ID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		if err := tx.Create(newAssignment).Error; err != nil {
			return err
		}

		// Returning to a previously visited stage invalidates its earlier
		// checklist completions.
		if progressionType == models.ProgressionBackward {
			sub := tx.Model(&models.StageAssignment{}).
				Select("id").
				Where("expediente_id = ? AND stage_id = ?", exp.ID, targetStage.ID)
			if err := tx.Model(&models.ChecklistCompletion{}).
				Where("stage_assignment_id IN (?)", sub).
				Updates(map[string]interface{}{
					"is_completed":    false,
					"completed_at":    nil,
					"completed_by_id": nil,
				}).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProgressionFailed, err)
	}

	return &ProgressionResult{
		Progression:   progression,
		Expediente:    exp,
		NewAssignment: newAssignment,
	}, nil
}

// leastLoadedUser returns the active user in the department holding the role
// with the fewest open cases assigned, or "" when no one qualifies.
func leastLoadedUser(db *gorm.DB, departmentID, role string) (string, error) {
	var users []models.User
	if err := db.Where("department_id = ? AND role = ? AND is_active = ?", departmentID, role, true).
		Find(&users).Error; err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", nil
	}

	best := ""
	bestCount := int64(-1)
	for _, u := range users {
		var count int64
		if err := db.Model(&models.Expediente{}).
			Where("assigned_to_id = ? AND status NOT IN (?)", u.ID,
				[]string{models.ExpedienteStatusCompletado, models.ExpedienteStatusCancelado, models.ExpedienteStatusArchivado}).
			Count(&count).Error; err != nil {
			return "", err
		}
		if bestCount == -1 || count < bestCount {
			best = u.ID
			bestCount = count
		}
	}
	return best, nil
}

// GetProgressionHistory lists the transitions of a case, newest first
func GetProgressionHistory(db *gorm.DB, expedienteID string) ([]models.StageProgression, error) {
	var progressions []models.StageProgression
	err := db.Where("expediente_id = ?", expedienteID).
		Preload("PerformedBy").
		Preload("ApprovedBy").
		Order("created_at DESC").
		Find(&progressions).Error
	return progressions, err
}

// ReturnableStage annotates a previously visited stage eligible for a return.
type ReturnableStage struct {
	Stage            models.Stage `json:"stage"`
	VisitCount       int64        `json:"visit_count"`
	RecentlyReturned bool         `json:"recently_returned"`
}

// GetReturnableStages enumerates previously visited stages with a sequence
// order below the current stage. A stage re-entered more than once within the
// trailing 7 days is flagged as recently returned.
func GetReturnableStages(db *gorm.DB, expedienteID string) ([]ReturnableStage, error) {
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

	var stages []models.Stage
	if err := db.Where("sequence_order < ? AND is_active = ?", currentStage.SequenceOrder, true).
		Order("sequence_order ASC").
		Find(&stages).Error; err != nil {
		return nil, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	result := make([]ReturnableStage, 0, len(stages))
	for _, stage := range stages {
		var visits int64
		if err := db.Model(&models.StageAssignment{}).
			Where("expediente_id = ? AND stage_id = ?", expedienteID, stage.ID).
			Count(&visits).Error; err != nil {
			return nil, err
		}
		if visits == 0 {
			continue
		}

		var recentReturns int64
		if err := db.Model(&models.StageProgression{}).
			Where("expediente_id = ? AND to_stage = ? AND progression_type = ? AND created_at > ?",
				expedienteID, stage.Name, models.ProgressionBackward, weekAgo).
			Count(&recentReturns).Error; err != nil {
			return nil, err
		}

		result = append(result, ReturnableStage{
			Stage:            stage,
			VisitCount:       visits,
			RecentlyReturned: recentReturns > 1,
		})
	}

	return result, nil
}
