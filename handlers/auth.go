package handlers

import (
	"net/http"
	"strings"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

// Package level variable to hold the dummy hash for timing mitigation
var globalDummyHash = "$2a$10$X7.G.t8./.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t"

func init() {
	// Generate a real dummy hash at startup to ensure consistent timing
	hash, _ := services.HashPassword("dummy_password_for_timing_mitigation")
	if hash != "" {
		globalDummyHash = hash
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginHandler authenticates a user and issues a session cookie
func LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and password are required"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := db.DB.Preload("Department").Where("email = ?", email).First(&user).Error
	if err != nil {
		// Timing attack mitigation: always run the bcrypt comparison
		services.CheckPassword(req.Password, globalDummyHash)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
	}

	if !services.CheckPassword(req.Password, user.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
	}

	if !user.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Account is deactivated"})
	}

	session, err := services.CreateSession(db.DB, user.ID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create session"})
	}

	middleware.SetSessionCookie(c, session.Token, int(services.DefaultSessionDuration.Seconds()))

	services.LogActivity(db.DB, services.ActorContext{
		UserID:    user.ID,
		UserName:  user.Name,
		UserRole:  user.Role,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}, models.ActivityActionLogin, "User", user.ID, user.Name, "Inicio de sesión", nil)

	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// LogoutHandler destroys the current session
func LogoutHandler(c echo.Context) error {
	cookie, err := c.Cookie(middleware.SessionCookieName)
	if err == nil {
		services.DeleteSession(db.DB, cookie.Value)
	}
	middleware.ClearSessionCookie(c)

	if user := middleware.GetCurrentUser(c); user != nil {
		services.LogActivity(db.DB, middleware.GetActorContext(c),
			models.ActivityActionLogout, "User", user.ID, user.Name, "Cierre de sesión", nil)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

// MeHandler returns the authenticated user's profile
func MeHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}
