package backend

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/types"
)

func TestNewClient(t *testing.T) {
	log := logrus.New()
	cfg := Config{
		APIEndpoint: "https://api.example.com",
		APIKey:      "test-key",
		Timeout:     5 * time.Second,
	}
	c := NewClient(cfg, log)
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	log := logrus.New()
	c := NewClient(Config{APIEndpoint: "https://api.example.com", APIKey: "key"}, log)
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
}

func canListen(t *testing.T) bool {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind for test: %v", err)
		return false
	}
	ln.Close()
	return true
}

func TestClient_UploadScreenshot_Success(t *testing.T) {
	if !canListen(t) {
		return
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/screenshots" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer my-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	log := logrus.New()
	c := NewClient(Config{APIEndpoint: server.URL, APIKey: "my-key", Timeout: 5 * time.Second}, log)

	err := c.UploadScreenshot(context.Background(), types.Screenshot{
		UserID: "u1", ImageURL: "file:///tmp/a.png", CapturedAt: time.Now(),
	})
	if err != nil {
		t.Errorf("UploadScreenshot: %v", err)
	}
}

func TestClient_UploadScreenshot_NotConfigured(t *testing.T) {
	log := logrus.New()
	c := NewClient(Config{}, log)
	err := c.UploadScreenshot(context.Background(), types.Screenshot{UserID: "u1"})
	if err == nil {
		t.Error("expected error when not configured")
	}
}

func TestClient_UploadTimeLog_InsertVsUpdate(t *testing.T) {
	if !canListen(t) {
		return
	}
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := logrus.New()
	c := NewClient(Config{APIEndpoint: server.URL, APIKey: "key", Timeout: 5 * time.Second}, log)

	start := time.Now()
	if err := c.UploadTimeLog(context.Background(), types.TimeLog{UserID: "u1", StartTime: &start}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/time" {
		t.Errorf("insert: %s %s", gotMethod, gotPath)
	}

	end := time.Now()
	if err := c.UploadTimeLog(context.Background(), types.TimeLog{ID: "tl-9", UserID: "u1", EndTime: &end, IsIdle: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/time/tl-9" {
		t.Errorf("update: %s %s", gotMethod, gotPath)
	}
}

func TestClient_UploadFraudAlert_WireMapping(t *testing.T) {
	if !canListen(t) {
		return
	}
	var wire fraudAlertWire
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/fraud-alerts" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	log := logrus.New()
	c := NewClient(Config{APIEndpoint: server.URL, APIKey: "key", Timeout: 5 * time.Second}, log)

	alert := types.FraudAlert{
		ID:         "a1",
		Type:       "mouse_jiggling",
		Timestamp:  time.Now(),
		UserID:     "u1",
		RiskScore:  0.456,
		Confidence: 0.75,
		Details:    map[string]float64{"avg_distance": 3.2},
		SuspiciousPatterns: []types.SuspiciousActivity{
			{Type: types.PatternMouseJiggling, Severity: types.SeverityHigh, Confidence: 1.0, Timestamp: time.Now()},
		},
		Severity:        types.SeverityHigh,
		ActivityContext: types.ActivityLevel{MouseMoves: 20, TotalEvents: 20},
		SystemContext:   types.SystemContext{Hostname: "h1"},
	}
	if err := c.UploadFraudAlert(context.Background(), alert); err != nil {
		t.Fatalf("UploadFraudAlert: %v", err)
	}

	if wire.RiskScore != 46 {
		t.Errorf("risk_score = %d, want 46 (rounded percent)", wire.RiskScore)
	}
	if wire.Confidence != 75 {
		t.Errorf("confidence = %d, want 75", wire.Confidence)
	}
	if wire.Severity != "HIGH" {
		t.Errorf("severity = %q", wire.Severity)
	}
	if wire.AlertType != "mouse_jiggling" {
		t.Errorf("alert_type = %q", wire.AlertType)
	}

	var details map[string]float64
	if err := json.Unmarshal([]byte(wire.Details), &details); err != nil {
		t.Fatalf("details is not embedded JSON: %v", err)
	}
	if details["avg_distance"] != 3.2 {
		t.Errorf("details = %v", details)
	}
	var patterns []types.SuspiciousActivity
	if err := json.Unmarshal([]byte(wire.SuspiciousPatterns), &patterns); err != nil {
		t.Fatalf("suspicious_patterns is not embedded JSON: %v", err)
	}
	if len(patterns) != 1 || patterns[0].Type != types.PatternMouseJiggling {
		t.Errorf("patterns = %+v", patterns)
	}
}

func TestClient_Upload_Non2xx(t *testing.T) {
	if !canListen(t) {
		return
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	log := logrus.New()
	c := NewClient(Config{APIEndpoint: server.URL, APIKey: "key", Timeout: 5 * time.Second}, log)

	if err := c.UploadAppLog(context.Background(), types.AppLog{UserID: "u1"}); err == nil {
		t.Error("expected error on 500")
	}
}

func TestClient_Ping_Success(t *testing.T) {
	if !canListen(t) {
		return
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := logrus.New()
	c := NewClient(Config{APIEndpoint: server.URL, APIKey: "key", Timeout: 5 * time.Second}, log)

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClient_Ping_NonOK(t *testing.T) {
	if !canListen(t) {
		return
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	log := logrus.New()
	c := NewClient(Config{APIEndpoint: server.URL, APIKey: "key", Timeout: 5 * time.Second}, log)

	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error on 503")
	}
}

func TestClient_Ping_NotConfigured(t *testing.T) {
	log := logrus.New()
	c := NewClient(Config{}, log)
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error when not configured")
	}
}
