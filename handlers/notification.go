package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"expediente_flow_go/middleware"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetNotificationsHandler lists the user's unread notifications with a count
func GetNotificationsHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	svc := notificationService()

	notifications, err := svc.GetUnreadNotifications(user.ID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load notifications"})
	}
	count, err := svc.GetNotificationCount(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to count notifications"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"unread_count":  count,
	})
}

// MarkNotificationReadHandler marks one notification as read
func MarkNotificationReadHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	err := notificationService().MarkAsRead(c.Param("id"), user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to mark notification"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Notification marked as read"})
}

// MarkAllNotificationsReadHandler marks every unread notification as read
func MarkAllNotificationsReadHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	if err := notificationService().MarkAllAsRead(user.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to mark notifications"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "All notifications marked as read"})
}
