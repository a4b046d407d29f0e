// Package types defines shared types for activity events, suspicious-pattern
// findings, fraud alerts, and the telemetry records shipped to the backend.
package types

import "time"

// EventKind discriminates the payload carried by an ActivityEvent.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindMouseMove
	EventKindMouseClick
	EventKindKeyboard
	EventKindScreenshot
)

// ActivityEvent is a single observed input or capture event. Exactly one of
// the payload pointers is set for a well-formed event; a nil payload still
// counts as an event envelope of its kind.
type ActivityEvent struct {
	Kind      EventKind
	Timestamp time.Time

	// Event payloads (only one is set)
	Mouse      *MouseMove
	Click      *MouseClick
	Key        *Keystroke
	Screenshot *ScreenshotMark
}

// MouseMove is a sampled cursor position.
type MouseMove struct {
	X         float64
	Y         float64
	Timestamp time.Time
}

// MouseClick is a single button press.
type MouseClick struct {
	Button    string
	Timestamp time.Time
}

// Keystroke is a single key press. Key is the logical identifier ("a",
// "space", "shift"); Code is the physical code when the capture layer
// provides one.
type Keystroke struct {
	Key       string
	Code      string
	Timestamp time.Time
}

// ScreenshotMark records that a screenshot was taken at Timestamp.
type ScreenshotMark struct {
	Timestamp time.Time
}

// KindToString converts an EventKind to its wire name.
func KindToString(k EventKind) string {
	switch k {
	case EventKindMouseMove:
		return "mouse_move"
	case EventKindMouseClick:
		return "mouse_click"
	case EventKindKeyboard:
		return "keyboard"
	case EventKindScreenshot:
		return "screenshot"
	default:
		return "unknown"
	}
}
