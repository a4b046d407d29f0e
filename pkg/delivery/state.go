// Package delivery implements the durable per-category telemetry queues:
// immediate-send-else-enqueue submission, bounded retry flushing, JSON
// persistence of the queue state, and the backend connectivity probe.
package delivery

import (
	"time"

	"github.com/worklens/desktop-agent/internal/types"
)

// Item is one queued telemetry record. It is owned exclusively by its
// category queue until an upload succeeds or the retry cap drops it.
type Item[T any] struct {
	ID         string    `json:"id"`
	Payload    T         `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Retries    int       `json:"retries"`
}

// State holds every category queue. It is loaded from durable storage at
// startup and persisted after each mutation batch.
type State struct {
	Screenshots []Item[types.Screenshot] `json:"screenshots"`
	AppLogs     []Item[types.AppLog]     `json:"app_logs"`
	URLLogs     []Item[types.URLLog]     `json:"url_logs"`
	IdleLogs    []Item[types.IdleLog]    `json:"idle_logs"`
	TimeLogs    []Item[types.TimeLog]    `json:"time_logs"`
	FraudAlerts []Item[types.FraudAlert] `json:"fraud_alerts"`
}

// Depths reports the number of pending items per category.
type Depths struct {
	Screenshots int `json:"screenshots"`
	AppLogs     int `json:"app_logs"`
	URLLogs     int `json:"url_logs"`
	IdleLogs    int `json:"idle_logs"`
	TimeLogs    int `json:"time_logs"`
	FraudAlerts int `json:"fraud_alerts"`
}

// Total returns the number of pending items across all categories.
func (d Depths) Total() int {
	return d.Screenshots + d.AppLogs + d.URLLogs + d.IdleLogs + d.TimeLogs + d.FraudAlerts
}

func (s *State) depths() Depths {
	return Depths{
		Screenshots: len(s.Screenshots),
		AppLogs:     len(s.AppLogs),
		URLLogs:     len(s.URLLogs),
		IdleLogs:    len(s.IdleLogs),
		TimeLogs:    len(s.TimeLogs),
		FraudAlerts: len(s.FraudAlerts),
	}
}
