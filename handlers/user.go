package handlers

import (
	"errors"
	"net/http"
	"strings"

	"expediente_flow_go/db"
	"expediente_flow_go/middleware"
	"expediente_flow_go/models"
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetUsersHandler lists users. Department admins only see their department.
func GetUsersHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	query := db.DB.Model(&models.User{}).Preload("Department")

	if user.Role == models.RoleDepartmentAdmin && user.DepartmentID != nil {
		query = query.Where("department_id = ?", *user.DepartmentID)
	}

	if role := c.QueryParam("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if deptID := c.QueryParam("department_id"); deptID != "" {
		query = query.Where("department_id = ?", deptID)
	}
	if active := c.QueryParam("is_active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var users []models.User
	if err := query.Order("name ASC").Find(&users).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load users"})
	}

	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

type createUserRequest struct {
	Name         string  `json:"name" validate:"required,min=3"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	Role         string  `json:"role" validate:"required"`
	DepartmentID *string `json:"departmentId"`
}

// CreateUserHandler registers a new account. Admin-only.
func CreateUserHandler(c echo.Context) error {
	actor := middleware.GetCurrentUser(c)

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": err.Error()})
	}
	if !models.IsValidRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "invalid role"})
	}

	// Only superadmins may create other admins
	if req.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
	}

	// Department admins create users in their own department only
	if actor.Role == models.RoleDepartmentAdmin {
		if req.Role == models.RoleDepartmentAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
		}
		req.DepartmentID = actor.DepartmentID
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var existing models.User
	if err := db.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "email already in use"})
	}

	hash, err := services.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create user"})
	}

	newUser := &models.User{
		Name:         sanitize(req.Name),
		Email:        email,
		Password:     hash,
		Role:         req.Role,
		IsActive:     true,
		DepartmentID: req.DepartmentID,
	}
	if err := db.DB.Create(newUser).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create user"})
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionCreate, "User", newUser.ID, newUser.Name,
		"Usuario creado: "+newUser.Email, nil)

	if EmailSvc != nil {
		EmailSvc.SendWelcomeEmail(newUser.Email, newUser.Name)
	}

	return c.JSON(http.StatusCreated, newUser)
}

// GetUserHandler returns one user
func GetUserHandler(c echo.Context) error {
	var user models.User
	err := db.DB.Preload("Department").First(&user, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load user"})
	}
	return c.JSON(http.StatusOK, user)
}

type updateUserRequest struct {
	Name         *string `json:"name"`
	Role         *string `json:"role"`
	IsActive     *bool   `json:"isActive"`
	Password     *string `json:"password"`
	DepartmentID *string `json:"departmentId"`
}

// UpdateUserHandler applies a partial update to an account
func UpdateUserHandler(c echo.Context) error {
	actor := middleware.GetCurrentUser(c)
	targetID := c.Param("id")

	if !middleware.CanModifyUser(c, targetID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
	}

	var target models.User
	if err := db.DB.First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load user"})
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = sanitize(*req.Name)
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "invalid role"})
		}
		// Role changes are an admin capability, never self-service
		if !actor.CanManageUsers() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
		}
		if *req.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		if !actor.CanManageUsers() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
		}
		updates["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "password must be at least 8 characters"})
		}
		hash, err := services.HashPassword(*req.Password)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update user"})
		}
		updates["password"] = hash
	}
	if req.DepartmentID != nil {
		if !actor.CanManageUsers() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
		}
		if *req.DepartmentID == "" {
			updates["department_id"] = nil
		} else {
			var dept models.Department
			if err := db.DB.First(&dept, "id = ?", *req.DepartmentID).Error; err != nil {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "Department not found"})
			}
			updates["department_id"] = dept.ID

			// Record the transfer when the primary department changes
			if target.DepartmentID == nil || *target.DepartmentID != dept.ID {
				transfer := models.DepartmentTransfer{
					UserID:           target.ID,
					FromDepartmentID: target.DepartmentID,
					ToDepartmentID:   dept.ID,
					TransferredByID:  actor.ID,
				}
				db.DB.Create(&transfer)
			}
		}
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusOK, target)
	}

	if err := db.DB.Model(&models.User{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update user"})
	}

	// Deactivated accounts lose their sessions immediately
	if req.IsActive != nil && !*req.IsActive {
		services.DeleteAllUserSessions(db.DB, target.ID)
	}

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionUpdate, "User", target.ID, target.Name,
		"Usuario actualizado", nil)

	var updated models.User
	if err := db.DB.Preload("Department").First(&updated, "id = ?", target.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to reload user"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteUserHandler deactivates an account (soft delete)
func DeleteUserHandler(c echo.Context) error {
	actor := middleware.GetCurrentUser(c)
	targetID := c.Param("id")

	if actor.ID == targetID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ValidationError", "detail": "cannot delete your own account"})
	}

	var target models.User
	if err := db.DB.First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load user"})
	}

	if target.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
	}

	if err := db.DB.Model(&models.User{}).Where("id = ?", target.ID).Update("is_active", false).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete user"})
	}
	if err := db.DB.Delete(&target).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete user"})
	}

	services.DeleteAllUserSessions(db.DB, target.ID)

	services.LogActivity(db.DB, middleware.GetActorContext(c),
		models.ActivityActionDelete, "User", target.ID, target.Name,
		"Usuario eliminado: "+target.Email, nil)

	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted"})
}
