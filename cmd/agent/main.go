package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/config"
	"github.com/worklens/desktop-agent/internal/detection"
	"github.com/worklens/desktop-agent/internal/server"
	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/internal/version"
	"github.com/worklens/desktop-agent/pkg/backend"
	"github.com/worklens/desktop-agent/pkg/delivery"
	"github.com/worklens/desktop-agent/pkg/monitor"
	"github.com/worklens/desktop-agent/pkg/sysinfo"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	loader := config.NewLoader(*configPath, log)
	cfg, err := loader.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.Logs.Level); err == nil {
		log.SetLevel(lvl)
	}
	if !cfg.Logs.EnableJSONOutput {
		log.SetFormatter(&logrus.TextFormatter{})
	}

	log.WithFields(logrus.Fields{
		"version": version.Version,
		"user_id": cfg.Backend.UserID,
	}).Info("Starting WorkLens Desktop Agent")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	client := backend.NewClient(backend.Config{
		APIEndpoint: cfg.Backend.Endpoint,
		APIKey:      cfg.Backend.APIKey,
		Timeout:     cfg.Backend.Timeout,
	}, log)

	mon := monitor.New(monitor.Config{
		UserID: cfg.Backend.UserID,
		Thresholds: detection.Thresholds{
			SuspiciousActivityThreshold: cfg.Detection.SuspiciousActivityThreshold,
			PatternWindow:               cfg.Detection.PatternWindow,
			MinMouseDistance:            cfg.Detection.MinMouseDistance,
			KeyboardDiversity:           cfg.Detection.KeyboardDiversity,
		},
		AlertsPerMinute: cfg.Detection.AlertsPerMinute,
		AnalyzeInterval: cfg.Intervals.Analyze,
		RiskInterval:    cfg.Intervals.Risk,
		FlushInterval:   cfg.Intervals.Flush,
		ProbeInterval:   cfg.Intervals.Probe,
		StewardInterval: cfg.Intervals.Steward,
		Queue: delivery.Config{
			MaxRetries:    cfg.Queue.MaxRetries,
			UploadTimeout: cfg.Queue.UploadTimeout,
		},
		Storage:  delivery.NewFileStorage(cfg.Queue.StatePath),
		Uploader: client,
		SystemContext: func() types.SystemContext {
			return sysinfo.Snapshot(log)
		},
	}, log)

	loader.Watch(func(fresh config.Config) {
		mon.SetThresholds(detection.Thresholds{
			SuspiciousActivityThreshold: fresh.Detection.SuspiciousActivityThreshold,
			PatternWindow:               fresh.Detection.PatternWindow,
			MinMouseDistance:            fresh.Detection.MinMouseDistance,
			KeyboardDiversity:           fresh.Detection.KeyboardDiversity,
		})
	})

	mon.Start(ctx)

	srv := server.New(cfg.Server, mon, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Status server error")
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	mon.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown")
	}

	log.Info("Agent shutdown complete")
}
