package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleSuperAdmin      = "super_admin"
	RoleDepartmentAdmin = "department_admin"
	RoleSupervisor      = "supervisor"
	RoleAnalyst         = "analyst"
	RoleViewer          = "viewer"
)

type User struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string     `gorm:"not null" json:"name"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"not null" json:"-"`
	Role        string     `gorm:"not null;default:analyst" json:"role"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`

	// Primary department; secondary assignments live in DepartmentTransfer
	DepartmentID *string     `gorm:"type:uuid;index" json:"department_id"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// HasDepartment checks if the user has a department assigned
func (u *User) HasDepartment() bool {
	return u.DepartmentID != nil && *u.DepartmentID != ""
}

// CanProgressCases reports whether the role alone authorizes stage
// progressions. Analysts additionally qualify when assigned to the case,
// which is checked against the case record.
func (u *User) CanProgressCases() bool {
	switch u.Role {
	case RoleSuperAdmin, RoleDepartmentAdmin, RoleSupervisor:
		return true
	}
	return false
}

// CanSelfApproveReturns reports whether a backward progression by this user
// is approved immediately.
func (u *User) CanSelfApproveReturns() bool {
	switch u.Role {
	case RoleSuperAdmin, RoleDepartmentAdmin, RoleSupervisor:
		return true
	}
	return false
}

// CanManageUsers reports whether the user may administer accounts.
func (u *User) CanManageUsers() bool {
	return u.Role == RoleSuperAdmin || u.Role == RoleDepartmentAdmin
}

// IsValidRole checks if the role name is one of the known roles
func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleDepartmentAdmin, RoleSupervisor, RoleAnalyst, RoleViewer:
		return true
	}
	return false
}
