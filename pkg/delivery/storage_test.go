package delivery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/worklens/desktop-agent/internal/types"
)

func testState() State {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return State{
		Screenshots: []Item[types.Screenshot]{
			{ID: "s1", Payload: types.Screenshot{UserID: "u1", ImageURL: "file:///tmp/a.png", CapturedAt: ts}, EnqueuedAt: ts},
		},
		TimeLogs: []Item[types.TimeLog]{
			{ID: "t1", Payload: types.TimeLog{UserID: "u1", ProjectID: "p1", StartTime: &ts}, EnqueuedAt: ts, Retries: 2},
		},
		FraudAlerts: []Item[types.FraudAlert]{
			{ID: "f1", Payload: types.FraudAlert{ID: "a1", Type: "mouse_jiggling", UserID: "u1", RiskScore: 0.5}, EnqueuedAt: ts},
		},
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue-state.json")
	fs := NewFileStorage(path)

	want := testState()
	if err := fs.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(got)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("round trip mismatch:\n%s\n%s", wantJSON, gotJSON)
	}
	if got.depths().Total() != 3 {
		t.Errorf("pending after round trip = %d, want 3", got.depths().Total())
	}
}

func TestFileStorage_MissingFile(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "nope.json"))
	st, err := fs.Load()
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if st.depths().Total() != 0 {
		t.Errorf("missing file should yield empty state, got %d pending", st.depths().Total())
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue-state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStorage(path)
	st, err := fs.Load()
	if err == nil {
		t.Error("corrupt file should report the parse error")
	}
	if st.depths().Total() != 0 {
		t.Errorf("corrupt file should yield empty state, got %d pending", st.depths().Total())
	}
}

func TestFileStorage_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "queue-state.json")
	fs := NewFileStorage(path)
	if err := fs.Save(testState()); err != nil {
		t.Fatalf("Save into missing dir: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file not written: %v", err)
	}
}
