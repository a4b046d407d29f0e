package types

import "testing"

func TestKindToString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventKindMouseMove, "mouse_move"},
		{EventKindMouseClick, "mouse_click"},
		{EventKindKeyboard, "keyboard"},
		{EventKindScreenshot, "screenshot"},
		{EventKindUnknown, "unknown"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := KindToString(tt.kind); got != tt.want {
			t.Errorf("KindToString(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestSeverityToString(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityHigh, "HIGH"},
		{SeverityMedium, "MEDIUM"},
		{SeverityUnknown, "UNKNOWN"},
		{Severity(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := SeverityToString(tt.sev); got != tt.want {
			t.Errorf("SeverityToString(%d) = %q, want %q", tt.sev, got, tt.want)
		}
	}
}
