package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/worklens/desktop-agent/internal/config"
	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/pkg/delivery"
	"github.com/worklens/desktop-agent/pkg/monitor"
)

type stubUploader struct{}

func (stubUploader) UploadScreenshot(ctx context.Context, s types.Screenshot) error { return nil }
func (stubUploader) UploadAppLog(ctx context.Context, l types.AppLog) error         { return nil }
func (stubUploader) UploadURLLog(ctx context.Context, l types.URLLog) error         { return nil }
func (stubUploader) UploadIdleLog(ctx context.Context, l types.IdleLog) error       { return nil }
func (stubUploader) UploadTimeLog(ctx context.Context, l types.TimeLog) error       { return nil }
func (stubUploader) UploadFraudAlert(ctx context.Context, a types.FraudAlert) error { return nil }
func (stubUploader) Ping(ctx context.Context) error                                 { return nil }

func newTestServer(t *testing.T) (*Server, *monitor.Monitor) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	m := monitor.New(monitor.Config{
		UserID:   "user-1",
		Storage:  delivery.NewFileStorage(filepath.Join(t.TempDir(), "queue-state.json")),
		Uploader: stubUploader{},
	}, log)
	return New(config.ServerSettings{HTTPAddr: ":0"}, m, log), m
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /health: status %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("health status = %q", body["status"])
	}
	if body["version"] == "" {
		t.Error("health version should be set")
	}
}

func TestServer_Status(t *testing.T) {
	srv, m := newTestServer(t)
	m.Dispatcher().SubmitScreenshot(context.Background(), types.Screenshot{UserID: "u1"})
	m.Dispatcher().SubmitTimeLog(context.Background(), types.TimeLog{UserID: "u1"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/status: status %d", rec.Code)
	}
	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode status body: %v", err)
	}
	if body.Online {
		t.Error("dispatcher should start offline")
	}
	if body.Queues.Screenshots != 1 || body.Queues.TimeLogs != 1 || body.Pending != 2 {
		t.Errorf("queues = %+v pending = %d", body.Queues, body.Pending)
	}
}

func TestServer_Status_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/v1/status: status %d", rec.Code)
	}
}

func TestServer_Report(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report", nil)
	rec := httptest.NewRecorder()
	srv.handleReport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/report: status %d", rec.Code)
	}
	var body monitor.Report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode report body: %v", err)
	}
	if body.Monitoring {
		t.Error("monitoring should be false before Start")
	}
	if body.RiskLevel != "LOW" {
		t.Errorf("risk level = %q, want LOW", body.RiskLevel)
	}
}
