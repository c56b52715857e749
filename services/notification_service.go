package services

import (
	"fmt"
	"log"
	"time"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

// Roles eligible for stage-change notifications within the responsible
// department.
var stageNotificationRoles = []string{
	models.RoleDepartmentAdmin,
	models.RoleSupervisor,
	models.RoleAnalyst,
}

type NotificationService struct {
	DB    *gorm.DB
	Email *EmailService // optional; nil disables email delivery
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// NotifyStageChange fans out one notification per active user of the
// department responsible for the new stage. Best-effort: failures are logged
// and never propagated to the caller.
func (s *NotificationService) NotifyStageChange(exp *models.Expediente, newStage *models.Stage, progression *models.StageProgression) []models.StageNotification {
	var dept models.Department
	if err := s.DB.Where("code = ?", newStage.DepartmentCode).First(&dept).Error; err != nil {
		log.Printf("[WARNING] Stage notification skipped: department %s not found: %v", newStage.DepartmentCode, err)
		return nil
	}

	var recipients []models.User
	if err := s.DB.Where("department_id = ? AND is_active = ? AND role IN (?)",
		dept.ID, true, stageNotificationRoles).
		Find(&recipients).Error; err != nil {
		log.Printf("[WARNING] Stage notification skipped: failed to load recipients: %v", err)
		return nil
	}

	notifType := models.NotificationTypeStageChange
	title := "Expediente transferido a su departamento"
	message := fmt.Sprintf("El expediente %s ha avanzado a la etapa %s.", exp.FileNumber, newStage.DisplayName)
	if progression.ProgressionType == models.ProgressionBackward {
		notifType = models.NotificationTypeStageReturn
		title = "Expediente devuelto a su departamento"
		message = fmt.Sprintf("El expediente %s ha sido devuelto a la etapa %s. Motivo: %s",
			exp.FileNumber, newStage.DisplayName, progression.Reason)
	}

	created := make([]models.StageNotification, 0, len(recipients))
	for _, recipient := range recipients {
		notification := models.StageNotification{
			UserID:       recipient.ID,
			ExpedienteID: &exp.ID,
			StageName:    newStage.Name,
			Type:         notifType,
			Title:        title,
			Message:      message,
		}
		if err := s.DB.Create(&notification).Error; err != nil {
			log.Printf("[WARNING] Failed to create stage notification for user %s: %v", recipient.ID, err)
			continue
		}
		created = append(created, notification)

		if s.Email != nil {
			if err := s.Email.SendStageChangeEmail(recipient.Email, recipient.Name, exp.FileNumber, newStage.DisplayName, message); err != nil {
				log.Printf("[WARNING] Failed to send stage notification email to %s: %v", recipient.Email, err)
			}
		}
	}

	return created
}

// NotifyApprovalRequest notifies department admins and supervisors that a
// return is pending approval.
func (s *NotificationService) NotifyApprovalRequest(exp *models.Expediente, targetStage *models.Stage, requestedBy *models.User) {
	var approvers []models.User
	if err := s.DB.Where("department_id = ? AND is_active = ? AND role IN (?)",
		exp.DepartmentID, true, []string{models.RoleDepartmentAdmin, models.RoleSupervisor}).
		Find(&approvers).Error; err != nil {
		log.Printf("[WARNING] Approval request notification skipped: %v", err)
		return
	}

	for _, approver := range approvers {
		notification := models.StageNotification{
			UserID:       approver.ID,
			ExpedienteID: &exp.ID,
			StageName:    targetStage.Name,
			Type:         models.NotificationTypeApprovalRequest,
			Title:        "Devolución pendiente de aprobación",
			Message: fmt.Sprintf("%s solicitó devolver el expediente %s a la etapa %s.",
				requestedBy.Name, exp.FileNumber, targetStage.DisplayName),
		}
		if err := s.DB.Create(&notification).Error; err != nil {
			log.Printf("[WARNING] Failed to create approval request notification: %v", err)
		}
	}
}

// GetUnreadNotifications lists the newest unread notifications for a user
func (s *NotificationService) GetUnreadNotifications(userID string, limit int) ([]models.StageNotification, error) {
	if limit <= 0 {
		limit = 20
	}
	var notifications []models.StageNotification
	err := s.DB.Where("user_id = ? AND read_at IS NULL", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// GetNotificationCount returns the number of unread notifications for a user
func (s *NotificationService) GetNotificationCount(userID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.StageNotification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// MarkAsRead marks one of the user's notifications as read
func (s *NotificationService) MarkAsRead(notificationID, userID string) error {
	now := time.Now()
	result := s.DB.Model(&models.StageNotification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user as read
func (s *NotificationService) MarkAllAsRead(userID string) error {
	now := time.Now()
	return s.DB.Model(&models.StageNotification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now).Error
}
