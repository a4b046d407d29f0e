package types

import "time"

// Severity of a suspicious-pattern finding.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityMedium
	SeverityHigh
)

// PatternType identifies which heuristic produced a finding.
type PatternType string

const (
	PatternMouseJiggling     PatternType = "mouse_jiggling"
	PatternKeyboardRepeat    PatternType = "keyboard_patterns"
	PatternClickAutomation   PatternType = "click_patterns"
	PatternScreenshotEvasion PatternType = "screenshot_evasion"
)

// SuspiciousActivity is one finding from the pattern analyzer. Details holds
// the numeric evidence the heuristic computed (averages, variances, counts).
type SuspiciousActivity struct {
	Type       PatternType        `json:"type"`
	Severity   Severity           `json:"severity"`
	Details    map[string]float64 `json:"details"`
	Confidence float64            `json:"confidence"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ActivityLevel summarizes raw event volume over the retained history.
type ActivityLevel struct {
	MouseMoves  int `json:"mouse_moves"`
	MouseClicks int `json:"mouse_clicks"`
	Keystrokes  int `json:"keystrokes"`
	TotalEvents int `json:"total_events"`
}

// BehaviorProfile captures aggregate input characteristics used by the
// risk scorer.
type BehaviorProfile struct {
	AvgMouseSpeed      float64 `json:"avg_mouse_speed"`
	MouseSpeedVariance float64 `json:"mouse_speed_variance"`
	ClickFrequency     int     `json:"click_frequency"`
	TypingSpeed        float64 `json:"typing_speed"`
	KeyDiversity       int     `json:"key_diversity"`
	TypingRhythm       float64 `json:"typing_rhythm"`
}

// RiskSnapshot is the output of one risk-scoring pass. RiskScore is bounded
// to [0, 0.6]; it is recomputed each cycle and never persisted.
type RiskSnapshot struct {
	Timestamp             time.Time       `json:"timestamp"`
	TotalSuspiciousEvents int             `json:"total_suspicious_events"`
	RecentActivityLevel   ActivityLevel   `json:"recent_activity_level"`
	BehaviorProfile       BehaviorProfile `json:"behavior_profile"`
	RiskScore             float64         `json:"risk_score"`
}

// SystemContext is a best-effort snapshot of the host, attached to alerts.
type SystemContext struct {
	Hostname       string  `json:"hostname"`
	Platform       string  `json:"platform"`
	OSVersion      string  `json:"os_version,omitempty"`
	UptimeSeconds  uint64  `json:"uptime_seconds"`
	CPUCount       int     `json:"cpu_count"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	AgentVersion   string  `json:"agent_version"`
}

// FraudAlert is produced when a HIGH-severity pattern fires or the risk
// score crosses the alert threshold. It is handed to the delivery queue.
type FraudAlert struct {
	ID                 string               `json:"id"`
	Type               string               `json:"type"`
	Timestamp          time.Time            `json:"timestamp"`
	UserID             string               `json:"user_id"`
	RiskScore          float64              `json:"risk_score"`
	Confidence         float64              `json:"confidence"`
	Details            map[string]float64   `json:"details"`
	SuspiciousPatterns []SuspiciousActivity `json:"suspicious_patterns"`
	Severity           Severity             `json:"severity"`
	ActivityContext    ActivityLevel        `json:"activity_context"`
	SystemContext      SystemContext        `json:"system_context"`
}

// SeverityToString converts a Severity to its wire name.
func SeverityToString(s Severity) string {
	switch s {
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	default:
		return "UNKNOWN"
	}
}
