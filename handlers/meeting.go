package handlers

import (
	"errors"
	"net/http"
	"time"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetMeetingsHandler lists meetings, optionally filtered by case or window
func GetMeetingsHandler(c echo.Context) error {
	query := db.DB.Model(&models.Meeting{}).
		Preload("Organizer").
		Preload("Expediente")

	if expID := c.QueryParam("expediente_id"); expID != "" {
		query = query.Where("expediente_id = ?", expID)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if from := c.QueryParam("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			query = query.Where("scheduled_at >= ?", t)
		}
	}
	if to := c.QueryParam("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			query = query.Where("scheduled_at < ?", t.AddDate(0, 0, 1))
		}
	}

	var meetings []models.Meeting
	if err := query.Order("scheduled_at ASC").Find(&meetings).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load meetings"})
	}

	return c.JSON(http.StatusOK, echo.Map{"meetings": meetings})
}

type createMeetingRequest struct {
	Title        string  `json:"title" validate:"required,min=3"`
	Agenda       string  `json:"agenda"`
	Location     string  `json:"location"`
	ScheduledAt  string  `json:"scheduledAt" validate:"required"`
	DurationMin  int     `json:"durationMin"`
	ExpedienteID *string `json:"expedienteId"`
}

// CreateMeetingHandler schedules a meeting, optionally linked to a case
func CreateMeetingHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	var req createMeetingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "scheduledAt must be RFC3339"})
	}

	if req.ExpedienteID != nil && *req.ExpedienteID != "" {
		var exp models.Expediente
		if err := db.DB.First(&exp, "id = ?", *req.ExpedienteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "Expediente not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load expediente"})
		}
	} else {
		req.ExpedienteID = nil
	}

	durationMin := req.DurationMin
	if durationMin <= 0 {
		durationMin = 60
	}

	meeting := &models.Meeting{
		Title:        sanitize(req.Title),
		Agenda:       sanitize(req.Agenda),
		Location:     sanitize(req.Location),
		ScheduledAt:  scheduledAt,
		DurationMin:  durationMin,
		Status:       models.MeetingStatusScheduled,
		ExpedienteID: req.ExpedienteID,
		OrganizerID:  user.ID,
	}
	if err := db.DB.Create(meeting).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create meeting"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionCreate, "Meeting", meeting.ID, meeting.Title,
		"Reunión programada: "+meeting.Title, nil)

	// Notify department members linked to the case, if any
	if meeting.ExpedienteID != nil {
		go notifyMeetingParticipants(meeting)
	}

	return c.JSON(http.StatusCreated, meeting)
}

// notifyMeetingParticipants creates MEETING notifications for the case's
// department members. Best-effort.
func notifyMeetingParticipants(meeting *models.Meeting) {
	var exp models.Expediente
	if err := db.DB.First(&exp, "id = ?", *meeting.ExpedienteID).Error; err != nil {
		return
	}

	var recipients []models.User
	if err := db.DB.Where("department_id = ? AND is_active = ?", exp.DepartmentID, true).
		Find(&recipients).Error; err != nil {
		return
	}

	for _, recipient := range recipients {
		if recipient.ID == meeting.OrganizerID {
			continue
		}
		notification := models.StageNotification{
			UserID:       recipient.ID,
			ExpedienteID: meeting.ExpedienteID,
			StageName:    exp.CurrentStage,
			Type:         models.NotificationTypeMeeting,
			Title:        "Reunión programada",
			Message:      "Reunión \"" + meeting.Title + "\" sobre el expediente " + exp.FileNumber,
		}
		db.DB.Create(&notification)

		if EmailSvc != nil {
			EmailSvc.SendMeetingInviteEmail(recipient.Email, recipient.Name, meeting.Title,
				meeting.ScheduledAt.Format("02/01/2006 15:04"))
		}
	}
}

type updateMeetingRequest struct {
	Title       *string `json:"title"`
	Agenda      *string `json:"agenda"`
	Location    *string `json:"location"`
	ScheduledAt *string `json:"scheduledAt"`
	DurationMin *int    `json:"durationMin"`
	Status      *string `json:"status"`
}

// UpdateMeetingHandler updates a meeting. Organizer or admins only.
func UpdateMeetingHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	var meeting models.Meeting
	if err := db.DB.First(&meeting, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Meeting not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load meeting"})
	}

	if meeting.OrganizerID != user.ID && !user.CanManageUsers() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
	}

	var req updateMeetingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = sanitize(*req.Title)
	}
	if req.Agenda != nil {
		updates["agenda"] = sanitize(*req.Agenda)
	}
	if req.Location != nil {
		updates["location"] = sanitize(*req.Location)
	}
	if req.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "scheduledAt must be RFC3339"})
		}
		updates["scheduled_at"] = t
	}
	if req.DurationMin != nil && *req.DurationMin > 0 {
		updates["duration_min"] = *req.DurationMin
	}
	if req.Status != nil {
		switch *req.Status {
		case models.MeetingStatusScheduled, models.MeetingStatusCompleted, models.MeetingStatusCancelled:
			updates["status"] = *req.Status
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "invalid status"})
		}
	}

	if len(updates) > 0 {
		if err := db.DB.Model(&models.Meeting{}).Where("id = ?", meeting.ID).Updates(updates).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update meeting"})
		}
	}

	var updated models.Meeting
	if err := db.DB.Preload("Organizer").First(&updated, "id = ?", meeting.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to reload meeting"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteMeetingHandler cancels and removes a meeting
func DeleteMeetingHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	var meeting models.Meeting
	if err := db.DB.First(&meeting, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Meeting not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load meeting"})
	}

	if meeting.OrganizerID != user.ID && !user.CanManageUsers() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
	}

	if err := db.DB.Delete(&meeting).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete meeting"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionDelete, "Meeting", meeting.ID, meeting.Title,
		"Reunión eliminada: "+meeting.Title, nil)

	return c.JSON(http.StatusOK, echo.Map{"message": "Meeting deleted"})
}
