package main

import (
	"log"
	"net/http"
	"time"

	"expediente_flow_go/config"
	"expediente_flow_go/db"
	"expediente_flow_go/handlers"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// requestValidator adapts go-playground/validator to echo's Validator interface
type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(
		&models.Department{},
		&models.DepartmentTransfer{},
		&models.User{},
		&models.Session{},
		&models.Stage{},
		&models.StageChecklist{},
		&models.Expediente{},
		&models.StageAssignment{},
		&models.ChecklistCompletion{},
		&models.StageProgression{},
		&models.StageNotification{},
		&models.Activity{},
		&models.CaseHistory{},
		&models.CaseDocument{},
		&models.Meeting{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed the workflow catalog and the initial superadmin
	if err := services.SeedCatalog(db.DB); err != nil {
		log.Fatalf("Failed to seed workflow catalog: %v", err)
	}
	if err := services.SeedSuperadminFromEnv(db.DB); err != nil {
		log.Fatalf("Failed to seed superadmin: %v", err)
	}

	// Storage and email
	services.InitializeStorage(cfg)
	handlers.EmailSvc = services.NewEmailService(cfg)
	handlers.NotificationSvc = &services.NotificationService{DB: db.DB, Email: handlers.EmailSvc}

	// Create Echo instance
	e := echo.New()
	e.Validator = &requestValidator{validator: validator.New()}

	// Middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
	}))

	// Make config available to handlers
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("config", cfg)
			return next(c)
		}
	})

	// Public routes
	e.POST("/api/auth/login", handlers.LoginHandler, middleware.LoginRateLimiter.Middleware())

	// Protected routes
	api := e.Group("/api")
	api.Use(middleware.RequireAuth())
	api.Use(middleware.ActorContext())
	api.Use(middleware.APIRateLimiter.Middleware())
	{
		api.POST("/auth/logout", handlers.LogoutHandler)
		api.GET("/me", handlers.MeHandler)

		// Stage catalog
		api.GET("/stages", handlers.GetStagesHandler)

		// Expedientes
		api.GET("/expedientes", handlers.GetExpedientesHandler)
		api.POST("/expedientes", handlers.CreateExpedienteHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin, models.RoleSupervisor, models.RoleAnalyst))
		api.GET("/expedientes/:id", handlers.GetExpedienteHandler)
		api.PUT("/expedientes/:id", handlers.UpdateExpedienteHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin, models.RoleSupervisor, models.RoleAnalyst))
		api.DELETE("/expedientes/:id", handlers.DeleteExpedienteHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin))
		api.GET("/expedientes/:id/activity", handlers.GetExpedienteActivityHandler)
		api.GET("/expedientes/:id/history", handlers.GetExpedienteHistoryHandler)

		// Stage progression
		api.GET("/expedientes/:id/stage-progression", handlers.GetStageProgressionHandler)
		api.POST("/expedientes/:id/stage-progression", handlers.PostStageProgressionHandler)
		api.GET("/expedientes/:id/stage-return", handlers.GetStageReturnHandler)
		api.POST("/expedientes/:id/stage-return", handlers.PostStageReturnHandler)

		// Checklist
		api.GET("/expedientes/:id/checklist", handlers.GetChecklistHandler)
		api.POST("/expedientes/:id/checklist", handlers.PostChecklistHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin))
		api.PUT("/expedientes/:id/checklist", handlers.PutChecklistHandler)

		// Documents
		api.GET("/expedientes/:id/documents", handlers.GetDocumentsHandler)
		api.POST("/expedientes/:id/documents", handlers.UploadDocumentHandler,
			middleware.UploadRateLimiter.Middleware())
		api.GET("/expedientes/:id/documents/:docID/download", handlers.DownloadDocumentHandler)
		api.DELETE("/expedientes/:id/documents/:docID", handlers.DeleteDocumentHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin, models.RoleSupervisor))

		// Notifications
		api.GET("/notifications", handlers.GetNotificationsHandler)
		api.PUT("/notifications/:id/read", handlers.MarkNotificationReadHandler)
		api.PUT("/notifications/read-all", handlers.MarkAllNotificationsReadHandler)

		// Users
		api.GET("/users", handlers.GetUsersHandler)
		api.GET("/users/:id", handlers.GetUserHandler)
		api.PUT("/users/:id", handlers.UpdateUserHandler)
		api.POST("/users", handlers.CreateUserHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin))
		api.DELETE("/users/:id", handlers.DeleteUserHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin))

		// Departments
		api.GET("/departments", handlers.GetDepartmentsHandler)
		api.POST("/departments", handlers.CreateDepartmentHandler,
			middleware.RequireRole(models.RoleSuperAdmin))
		api.GET("/departments/:id/statistics", handlers.GetDepartmentStatisticsHandler)

		// Meetings
		api.GET("/meetings", handlers.GetMeetingsHandler)
		api.POST("/meetings", handlers.CreateMeetingHandler)
		api.PUT("/meetings/:id", handlers.UpdateMeetingHandler)
		api.DELETE("/meetings/:id", handlers.DeleteMeetingHandler)

		// Dashboard and reports
		api.GET("/dashboard", handlers.GetDashboardHandler)
		api.GET("/reports/expedientes/export", handlers.ExportExpedientesHandler)

		// Activity log (admin)
		api.GET("/activity", handlers.GetActivityLogHandler,
			middleware.RequireRole(models.RoleSuperAdmin, models.RoleDepartmentAdmin))
	}

	// Background cleanup of expired sessions (runs every hour)
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := services.CleanupExpiredSessions(db.DB); err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
			}
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
