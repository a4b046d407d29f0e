package types

import "time"

// Telemetry payloads queued by capture collaborators. Shapes mirror the
// backend tables; the delivery queue treats them as opaque.

// Screenshot is the metadata record for a captured screen image. ImageURL
// may reference local storage until the upload succeeds.
type Screenshot struct {
	UserID     string    `json:"user_id"`
	TaskID     string    `json:"task_id"`
	ImageURL   string    `json:"image_url"`
	CapturedAt time.Time `json:"captured_at"`
}

// AppLog records time spent in a foreground application.
type AppLog struct {
	UserID          string    `json:"user_id"`
	AppName         string    `json:"app_name"`
	WindowTitle     string    `json:"window_title"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	TimeLogID       string    `json:"time_log_id,omitempty"`
}

// URLLog records a browser navigation.
type URLLog struct {
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Browser   string    `json:"browser,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TimeLogID string    `json:"time_log_id,omitempty"`
}

// IdleLog records an idle period.
type IdleLog struct {
	UserID          string    `json:"user_id"`
	ProjectID       string    `json:"project_id"`
	IdleStart       time.Time `json:"idle_start"`
	IdleEnd         time.Time `json:"idle_end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// TimeLog is either a new session (ID empty, insert) or an update to an
// existing session on the backend (ID set, e.g. closing out idle status).
type TimeLog struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"user_id"`
	ProjectID string     `json:"project_id"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	IsIdle    bool       `json:"is_idle"`
}
