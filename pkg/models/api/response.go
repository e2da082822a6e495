package api

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse summarizes the automation host for the dashboard
type StatusResponse struct {
	Timestamp time.Time       `json:"timestamp"`
	Database  DatabaseStatus  `json:"database"`
	Scheduler SchedulerStatus `json:"scheduler"`
}

// DatabaseStatus describes stored-record counts
type DatabaseStatus struct {
	Connected    bool  `json:"connected"`
	TotalRecords int64 `json:"total_records"`
	Recent24h    int64 `json:"recent_24h"`
}

// SchedulerStatus describes the scheduler for the dashboard
type SchedulerStatus struct {
	Running  bool          `json:"running"`
	JobCount int           `json:"job_count"`
	Jobs     []JobResponse `json:"jobs"`
}

// JobResponse represents a scheduled job in API responses
type JobResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Paused   bool      `json:"paused"`
	NextFire time.Time `json:"next_fire"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}
