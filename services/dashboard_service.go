package services

import (
	"time"

	"expediente_flow_go/models"

	"gorm.io/gorm"
)

// DashboardStats aggregates the figures shown on the main dashboard
type DashboardStats struct {
	TotalExpedientes     int64            `json:"total_expedientes"`
	ByStatus             map[string]int64 `json:"by_status"`
	ByPriority           map[string]int64 `json:"by_priority"`
	ByStage              []StageCount     `json:"by_stage"`
	ByDepartment         []DeptCount      `json:"by_department"`
	AvgProcessingDays    float64          `json:"avg_processing_days"`
	OverdueCount         int64            `json:"overdue_count"`
	CompletedThisMonth   int64            `json:"completed_this_month"`
	CreatedThisMonth     int64            `json:"created_this_month"`
	MonthlyTrend         []MonthlyCount   `json:"monthly_trend"`
	UnreadNotifications  int64            `json:"unread_notifications"`
	PendingReturnCount   int64            `json:"pending_return_count"`
	ActiveAssignedToUser int64            `json:"active_assigned_to_user"`
}

// StageCount holds the case count per workflow stage
type StageCount struct {
	Stage         string `json:"stage"`
	DisplayName   string `json:"display_name"`
	SequenceOrder int    `json:"sequence_order"`
	Count         int64  `json:"count"`
}

// DeptCount holds the open-case count per department
type DeptCount struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name"`
	Count          int64  `json:"count"`
}

// MonthlyCount holds created/completed totals for one calendar month
type MonthlyCount struct {
	Month     string `json:"month"` // YYYY-MM
	Created   int64  `json:"created"`
	Completed int64  `json:"completed"`
}

// Overdue threshold in days for open cases
const overdueDays = 30

var openStatuses = []string{
	models.ExpedienteStatusPendiente,
	models.ExpedienteStatusEnProgreso,
	models.ExpedienteStatusSuspendido,
}

// GetDashboardStats computes the dashboard aggregates. The userID scopes the
// per-user counters (unread notifications, active assignments).
func GetDashboardStats(db *gorm.DB, userID string) (*DashboardStats, error) {
	stats := &DashboardStats{
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	if err := db.Model(&models.Expediente{}).Count(&stats.TotalExpedientes).Error; err != nil {
		return nil, err
	}

	type kv struct {
		Key   string
		Count int64
	}

	var statusRows []kv
	if err := db.Model(&models.Expediente{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Key] = row.Count
	}

	var priorityRows []kv
	if err := db.Model(&models.Expediente{}).
		Select("priority AS key, COUNT(*) AS count").
		Group("priority").
		Scan(&priorityRows).Error; err != nil {
		return nil, err
	}
	for _, row := range priorityRows {
		stats.ByPriority[row.Key] = row.Count
	}

	if err := db.Model(&models.Expediente{}).
		Select("stages.name AS stage, stages.display_name AS display_name, stages.sequence_order AS sequence_order, COUNT(expedientes.id) AS count").
		Joins("JOIN stages ON stages.name = expedientes.current_stage").
		Where("expedientes.status IN (?)", openStatuses).
		Group("stages.name, stages.display_name, stages.sequence_order").
		Order("stages.sequence_order ASC").
		Scan(&stats.ByStage).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Expediente{}).
		Select("departments.id AS department_id, departments.name AS department_name, COUNT(expedientes.id) AS count").
		Joins("JOIN departments ON departments.id = expedientes.department_id").
		Where("expedientes.status IN (?)", openStatuses).
		Group("departments.id, departments.name").
		Scan(&stats.ByDepartment).Error; err != nil {
		return nil, err
	}

	// Average elapsed days for completed cases
	var avg struct {
		Avg *float64
	}
	if err := db.Model(&models.Expediente{}).
		Select("AVG(julianday(completed_at) - julianday(created_at)) AS avg").
		Where("status = ? AND completed_at IS NOT NULL", models.ExpedienteStatusCompletado).
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg.Avg != nil {
		stats.AvgProcessingDays = *avg.Avg
	}

	cutoff := time.Now().AddDate(0, 0, -overdueDays)
	if err := db.Model(&models.Expediente{}).
		Where("status IN (?) AND created_at < ?", openStatuses, cutoff).
		Count(&stats.OverdueCount).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.Expediente{}).
		Where("completed_at >= ?", monthStart).
		Count(&stats.CompletedThisMonth).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Expediente{}).
		Where("created_at >= ?", monthStart).
		Count(&stats.CreatedThisMonth).Error; err != nil {
		return nil, err
	}

	trend, err := monthlyTrend(db, 6)
	if err != nil {
		return nil, err
	}
	stats.MonthlyTrend = trend

	if userID != "" {
		if err := db.Model(&models.StageNotification{}).
			Where("user_id = ? AND read_at IS NULL", userID).
			Count(&stats.UnreadNotifications).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Expediente{}).
			Where("assigned_to_id = ? AND status IN (?)", userID, openStatuses).
			Count(&stats.ActiveAssignedToUser).Error; err != nil {
			return nil, err
		}
	}

	if err := db.Model(&models.StageProgression{}).
		Where("requires_approval = ? AND approved_by_id IS NULL", true).
		Count(&stats.PendingReturnCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// monthlyTrend returns created/completed counts for the trailing N months,
// oldest first.
func monthlyTrend(db *gorm.DB, months int) ([]MonthlyCount, error) {
	now := time.Now()
	trend := make([]MonthlyCount, 0, months)

	for i := months - 1; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0)

		entry := MonthlyCount{Month: start.Format("2006-01")}

		if err := db.Model(&models.Expediente{}).
			Where("created_at >= ? AND created_at < ?", start, end).
			Count(&entry.Created).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Expediente{}).
			Where("completed_at >= ? AND completed_at < ?", start, end).
			Count(&entry.Completed).Error; err != nil {
			return nil, err
		}

		trend = append(trend, entry)
	}

	return trend, nil
}

// DepartmentStatistics aggregates figures for one department's detail view
type DepartmentStatistics struct {
	DepartmentID   string           `json:"department_id"`
	DepartmentName string           `json:"department_name"`
	TotalCases     int64            `json:"total_cases"`
	OpenCases      int64            `json:"open_cases"`
	ByStatus       map[string]int64 `json:"by_status"`
	ActiveUsers    int64            `json:"active_users"`
	AvgDaysInDept  float64          `json:"avg_days_in_dept"`
}

// GetDepartmentStatistics computes per-department workload figures
func GetDepartmentStatistics(db *gorm.DB, departmentID string) (*DepartmentStatistics, error) {
	var dept models.Department
	if err := db.First(&dept, "id = ?", departmentID).Error; err != nil {
		return nil, err
	}

	stats := &DepartmentStatistics{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		ByStatus:       make(map[string]int64),
	}

	if err := db.Model(&models.Expediente{}).
		Where("department_id = ?", departmentID).
		Count(&stats.TotalCases).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Expediente{}).
		Where("department_id = ? AND status IN (?)", departmentID, openStatuses).
		Count(&stats.OpenCases).Error; err != nil {
		return nil, err
	}

	type kv struct {
		Key   string
		Count int64
	}
	var statusRows []kv
	if err := db.Model(&models.Expediente{}).
		Select("status AS key, COUNT(*) AS count").
		Where("department_id = ?", departmentID).
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Key] = row.Count
	}

	if err := db.Model(&models.User{}).
		Where("department_id = ? AND is_active = ?", departmentID, true).
		Count(&stats.ActiveUsers).Error; err != nil {
		return nil, err
	}

	// Average days cases spend in this department's stages
	var avg struct {
		Avg *float64
	}
	if err := db.Model(&models.StageAssignment{}).
		Select("AVG(julianday(CURRENT_TIMESTAMP) - julianday(stage_assignments.assigned_at)) AS avg").
		Joins("JOIN stages ON stages.id = stage_assignments.stage_id").
		Joins("JOIN departments ON departments.code = stages.department_code").
		Where("departments.id = ? AND stage_assignments.is_active = ?", departmentID, true).
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg.Avg != nil {
		stats.AvgDaysInDept = *avg.Avg
	}

	return stats, nil
}
