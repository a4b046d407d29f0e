package delivery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/worklens/desktop-agent/internal/types"
)

func TestProbe_OfflineToOnline_FlushesOnce(t *testing.T) {
	up := newMockUploader()
	up.pingErr = errors.New("unreachable")
	store := NewFileStorage(filepath.Join(t.TempDir(), "queue-state.json"))
	log, _ := logtest.NewNullLogger()
	d := New(Config{}, store, up, log)
	p := NewProbe(d, time.Second, log)

	d.SubmitScreenshot(context.Background(), types.Screenshot{UserID: "u1"})

	if p.Check(context.Background()) {
		t.Fatal("Check should report offline while ping fails")
	}
	if d.Online() {
		t.Error("dispatcher flagged online while unreachable")
	}
	if up.count("screenshots") != 0 {
		t.Error("offline probe must not flush")
	}

	up.mu.Lock()
	up.pingErr = nil
	up.mu.Unlock()

	if !p.Check(context.Background()) {
		t.Fatal("Check should report online")
	}
	if up.count("screenshots") != 1 {
		t.Errorf("transition flush uploads = %d, want 1", up.count("screenshots"))
	}

	// A steady online probe must not flush again.
	up.setFail(true)
	d.SubmitAppLog(context.Background(), types.AppLog{UserID: "u1"})
	attempts := up.count("app_logs")
	p.Check(context.Background())
	if up.count("app_logs") != attempts {
		t.Error("steady-state probe triggered a flush")
	}
	if d.Depths().AppLogs != 1 {
		t.Errorf("depth = %d, want 1", d.Depths().AppLogs)
	}
}

func TestProbe_OnlineToOffline(t *testing.T) {
	up := newMockUploader()
	store := NewFileStorage(filepath.Join(t.TempDir(), "queue-state.json"))
	log, _ := logtest.NewNullLogger()
	d := New(Config{}, store, up, log)
	d.setOnline(true)
	p := NewProbe(d, time.Second, log)

	up.mu.Lock()
	up.pingErr = errors.New("unreachable")
	up.mu.Unlock()

	if p.Check(context.Background()) {
		t.Fatal("Check should report offline")
	}
	if d.Online() {
		t.Error("dispatcher still flagged online")
	}
}
