// Package backend implements the HTTP client for the monitoring API. All
// category-specific wire mapping lives here; the delivery queue treats the
// upload methods as opaque.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/internal/version"
)

// Client handles communication with the monitoring backend API.
type Client struct {
	apiEndpoint string
	apiKey      string
	httpClient  *http.Client
	log         *logrus.Logger
}

// Config for the backend client.
type Config struct {
	APIEndpoint string
	APIKey      string
	Timeout     time.Duration
}

// NewClient creates a new backend API client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		apiEndpoint: cfg.APIEndpoint,
		apiKey:      cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// UploadScreenshot sends one screenshot metadata record.
func (c *Client) UploadScreenshot(ctx context.Context, s types.Screenshot) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/screenshots", c.apiEndpoint), s)
}

// UploadAppLog sends one application-usage record.
func (c *Client) UploadAppLog(ctx context.Context, l types.AppLog) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/apps", c.apiEndpoint), l)
}

// UploadURLLog sends one browser-navigation record.
func (c *Client) UploadURLLog(ctx context.Context, l types.URLLog) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/urls", c.apiEndpoint), l)
}

// UploadIdleLog sends one idle-period record.
func (c *Client) UploadIdleLog(ctx context.Context, l types.IdleLog) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/idle", c.apiEndpoint), l)
}

// UploadTimeLog inserts a new session when the payload has no server id and
// updates the existing row when it does.
func (c *Client) UploadTimeLog(ctx context.Context, l types.TimeLog) error {
	if l.ID == "" {
		return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/time", c.apiEndpoint), l)
	}
	return c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/api/time/%s", c.apiEndpoint, l.ID), l)
}

// fraudAlertWire is the backend schema for fraud alerts: risk and confidence
// are integer percentages and nested objects travel as JSON-encoded strings.
type fraudAlertWire struct {
	ID                 string    `json:"id"`
	AlertType          string    `json:"alert_type"`
	Timestamp          time.Time `json:"timestamp"`
	UserID             string    `json:"user_id"`
	RiskScore          int       `json:"risk_score"`
	Confidence         int       `json:"confidence"`
	Severity           string    `json:"severity"`
	Details            string    `json:"details"`
	SuspiciousPatterns string    `json:"suspicious_patterns"`
	ActivityContext    string    `json:"activity_context"`
	SystemContext      string    `json:"system_context"`
}

// UploadFraudAlert maps the alert into the backend schema and sends it.
func (c *Client) UploadFraudAlert(ctx context.Context, a types.FraudAlert) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("failed to encode alert details: %w", err)
	}
	patterns, err := json.Marshal(a.SuspiciousPatterns)
	if err != nil {
		return fmt.Errorf("failed to encode suspicious patterns: %w", err)
	}
	activity, err := json.Marshal(a.ActivityContext)
	if err != nil {
		return fmt.Errorf("failed to encode activity context: %w", err)
	}
	sysCtx, err := json.Marshal(a.SystemContext)
	if err != nil {
		return fmt.Errorf("failed to encode system context: %w", err)
	}

	wire := fraudAlertWire{
		ID:                 a.ID,
		AlertType:          a.Type,
		Timestamp:          a.Timestamp,
		UserID:             a.UserID,
		RiskScore:          int(math.Round(a.RiskScore * 100)),
		Confidence:         int(math.Round(a.Confidence * 100)),
		Severity:           types.SeverityToString(a.Severity),
		Details:            string(details),
		SuspiciousPatterns: string(patterns),
		ActivityContext:    string(activity),
		SystemContext:      string(sysCtx),
	}
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/api/fraud-alerts", c.apiEndpoint), wire)
}

// sendJSON sends a JSON payload to the API.
func (c *Client) sendJSON(ctx context.Context, method, url string, payload interface{}) error {
	if c.apiEndpoint == "" || c.apiKey == "" {
		return fmt.Errorf("backend client not configured")
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("User-Agent", "worklens-desktop-agent/"+version.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.log.WithFields(logrus.Fields{
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("Successfully sent to backend API")

	return nil
}

// Ping checks if the backend API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c.apiEndpoint == "" || c.apiKey == "" {
		return fmt.Errorf("backend client not configured")
	}

	url := fmt.Sprintf("%s/api/health", c.apiEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}

	return nil
}
