package services

import (
	"errors"
	"fmt"
	"time"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

// GenerateFileNumber builds the next sequential file number for the current
// year, in the form EXP-<year>-<seq>.
func GenerateFileNumber(db *gorm.DB) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("EXP-%d-", year)

	var count int64
	if err := db.Model(&models.Expediente{}).
		Unscoped().
		Where("file_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to count expedientes: %w", err)
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

// EnsureUniqueFileNumber generates a file number, retrying past collisions
// left behind by concurrent intakes.
func EnsureUniqueFileNumber(db *gorm.DB) (string, error) {
	base, err := GenerateFileNumber(db)
	if err != nil {
		return "", err
	}

	number := base
	for attempt := 0; attempt < 10; attempt++ {
		var existing int64
		if err := db.Model(&models.Expediente{}).
			Unscoped().
			Where("file_number = ?", number).
			Count(&existing).Error; err != nil {
			return "", err
		}
		if existing == 0 {
			return number, nil
		}

		// Collision left behind by a concurrent intake: probe the next slot
		number = fmt.Sprintf("%s-%d", base, attempt+1)
	}
	return "", errors.New("failed to generate a unique file number")
}

// CreateExpediente registers a new case at the first catalog stage, with its
// initial active stage assignment.
func CreateExpediente(db *gorm.DB, exp *models.Expediente) error {
	var firstStage models.Stage
	if err := db.Where("is_active = ?", true).Order("sequence_order ASC").First(&firstStage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStageNotFound
		}
		return err
	}

	if exp.FileNumber == "" {
		number, err := EnsureUniqueFileNumber(db)
		if err != nil {
			return err
		}
		exp.FileNumber = number
	}

	exp.CurrentStage = firstStage.Name
	if exp.Status == "" {
		exp.Status = models.ExpedienteStatusPendiente
	}
	if exp.Priority == "" {
		exp.Priority = models.PriorityMedia
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(exp).Error; err != nil {
			return err
		}

		assignment := models.StageAssignment{
			ExpedienteID: exp.ID,
			StageID:      firstStage.ID,
			IsActive:     true,
			AssignedAt:   time.Now(),
		}
		if firstStage.EstimatedDays > 0 {
			due := time.Now().AddDate(0, 0, firstStage.EstimatedDays)
			assignment.DueDate = &due
		}
		return tx.Create(&assignment).Error
	})
}

// SoftDeleteExpediente marks a case deleted without removing the row
func SoftDeleteExpediente(db *gorm.DB, expedienteID, deletedByID string) error {
	var exp models.Expediente
	if err := db.First(&exp, "id = ?", expedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCaseNotFound
		}
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Expediente{}).
			Where("id = ?", expedienteID).
			Update("deleted_by_id", deletedByID).Error; err != nil {
			return err
		}
		return tx.Delete(&exp).Error
	})
}
