package model

// Permission codes carried in admin tokens.
const (
	PermissionSchedulesWrite = "schedules:write"
	PermissionExamsRefresh   = "exams:refresh"
	PermissionExamsMonitor   = "exams:monitor"
)
