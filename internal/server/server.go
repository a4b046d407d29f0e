// Package server provides the local status HTTP server for the agent: health,
// queue status, detection report, and prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/config"
	"github.com/worklens/desktop-agent/internal/version"
	"github.com/worklens/desktop-agent/pkg/delivery"
	"github.com/worklens/desktop-agent/pkg/monitor"
)

// Server is the agent's local status HTTP server.
type Server struct {
	cfg        config.ServerSettings
	monitor    *monitor.Monitor
	log        *logrus.Logger
	httpServer *http.Server
}

// New creates a new status server reading from the given monitor.
func New(cfg config.ServerSettings, m *monitor.Monitor, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{cfg: cfg, monitor: m, log: log}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/report", s.handleReport)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("Status server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}

// statusResponse is the queue status surface.
type statusResponse struct {
	Online     bool            `json:"online"`
	Monitoring bool            `json:"monitoring"`
	Queues     delivery.Depths `json:"queues"`
	Pending    int             `json:"pending"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	depths := s.monitor.Dispatcher().Depths()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Online:     s.monitor.Dispatcher().Online(),
		Monitoring: s.monitor.Running(),
		Queues:     depths,
		Pending:    depths.Total(),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.monitor.Report())
}
