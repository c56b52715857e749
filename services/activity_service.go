package services

import (
	"encoding/json"
	"log"
	"time"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

// ActorContext contains contextual information for activity logging
type ActorContext struct {
	UserID    string
	UserName  string
	UserRole  string
	IPAddress string
	UserAgent string
}

// LogActivity creates a new activity entry asynchronously. Activity logging
// never blocks or fails the parent operation.
func LogActivity(
	db *gorm.DB,
	ctx ActorContext,
	action models.ActivityAction,
	entityType string,
	entityID string,
	entityName string,
	description string,
	metadata interface{},
) {
	go func() {
		var metaJSON string
		if metadata != nil {
			if bytes, err := json.Marshal(metadata); err == nil {
				metaJSON = string(bytes)
			}
		}

		activity := models.Activity{
			UserID:      ptrIfNotEmpty(ctx.UserID),
			UserName:    ctx.UserName,
			UserRole:    ctx.UserRole,
			EntityType:  entityType,
			EntityID:    entityID,
			EntityName:  entityName,
			Action:      action,
			Description: description,
			Metadata:    metaJSON,
			IPAddress:   ctx.IPAddress,
			UserAgent:   ctx.UserAgent,
		}

		if err := db.Create(&activity).Error; err != nil {
			log.Printf("[AUDIT] Failed to create activity entry: %v", err)
		}
	}()
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordStageHistory writes the case-history row for a stage change.
// Synchronous, unlike LogActivity, because tests and readers rely on the row
// existing once the progression response is returned.
func RecordStageHistory(db *gorm.DB, expedienteID, fromStage, toStage, changedByID string, durationDays *int) error {
	history := models.CaseHistory{
		ExpedienteID:  expedienteID,
		Field:         "current_stage",
		PreviousValue: fromStage,
		NewValue:      toStage,
		DurationDays:  durationDays,
		ChangedByID:   changedByID,
	}
	if err := db.Create(&history).Error; err != nil {
		log.Printf("[AUDIT] Failed to create case history entry: %v", err)
		return err
	}
	return nil
}

// GetCaseActivity retrieves the activity trail for an expediente, newest first
func GetCaseActivity(db *gorm.DB, expedienteID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	var activities []models.Activity
	err := db.Where("entity_type = ? AND entity_id = ?", "Expediente", expedienteID).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

// GetCaseHistory retrieves the field-change history for an expediente
func GetCaseHistory(db *gorm.DB, expedienteID string) ([]models.CaseHistory, error) {
	var history []models.CaseHistory
	err := db.Where("expediente_id = ?", expedienteID).
		Preload("ChangedBy").
		Order("created_at DESC").
		Find(&history).Error
	return history, err
}

// ActivityFilters contains filter options for the global activity query
type ActivityFilters struct {
	UserID     string
	EntityType string
	Action     string
	DateFrom   time.Time
	DateTo     time.Time
}

// GetActivityLog retrieves paginated activity entries for administrators
func GetActivityLog(db *gorm.DB, filters ActivityFilters, page, pageSize int) ([]models.Activity, int64, error) {
	query := db.Model(&models.Activity{})

	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.EntityType != "" {
		query = query.Where("entity_type = ?", filters.EntityType)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var activities []models.Activity
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&activities).Error

	return activities, total, err
}
