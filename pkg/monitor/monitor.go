// Package monitor wires the recorder, pattern analyzer, risk scorer, and
// delivery queue together and drives them on their periodic cadences. All
// state is owned by the Monitor instance; there are no package globals, so
// tests can run independent monitors side by side.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/detection"
	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/pkg/delivery"
	"github.com/worklens/desktop-agent/pkg/recorder"
)

const startupFlushDelay = 5 * time.Second

// Config holds everything the Monitor needs. Zero intervals get defaults.
type Config struct {
	UserID          string
	Thresholds      detection.Thresholds
	AlertsPerMinute float64

	AnalyzeInterval time.Duration // pattern analysis (default 2s)
	RiskInterval    time.Duration // risk scoring (default 30s)
	FlushInterval   time.Duration // queue flush (default 30s)
	ProbeInterval   time.Duration // connectivity probe (default 60s)
	StewardInterval time.Duration // buffer pruning (default 5m)

	Queue         delivery.Config
	Storage       delivery.Storage
	Uploader      delivery.Uploader
	SystemContext func() types.SystemContext
	Scheduler     Scheduler
}

func (c Config) withDefaults() Config {
	if c.AnalyzeInterval <= 0 {
		c.AnalyzeInterval = 2 * time.Second
	}
	if c.RiskInterval <= 0 {
		c.RiskInterval = 30 * time.Second
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 60 * time.Second
	}
	if c.StewardInterval <= 0 {
		c.StewardInterval = 5 * time.Minute
	}
	if c.Scheduler == nil {
		c.Scheduler = NewTickerScheduler()
	}
	return c
}

// Monitor orchestrates all behavioral-monitoring components.
type Monitor struct {
	cfg Config
	log *logrus.Logger

	rec    *recorder.Recorder
	an     *detection.Analyzer
	scorer *detection.Scorer
	disp   *delivery.Dispatcher
	probe  *delivery.Probe

	mu      sync.Mutex
	running bool
	stops   []func()
	cancel  context.CancelFunc
}

// New creates a Monitor instance with all components wired together. HIGH
// findings flow from the analyzer into the fraud-alerts delivery queue.
func New(cfg Config, log *logrus.Logger) *Monitor {
	cfg = cfg.withDefaults()
	m := &Monitor{
		cfg: cfg,
		log: log,
	}

	m.rec = recorder.New(log)
	m.disp = delivery.New(cfg.Queue, cfg.Storage, cfg.Uploader, log)
	m.probe = delivery.NewProbe(m.disp, cfg.Queue.UploadTimeout, log)

	m.an = detection.NewAnalyzer(detection.AnalyzerConfig{
		Thresholds:      cfg.Thresholds,
		UserID:          cfg.UserID,
		AlertsPerMinute: cfg.AlertsPerMinute,
		RiskSource:      func() float64 { return m.scorer.LastScore() },
		SystemContext:   cfg.SystemContext,
		Sink: func(a *types.FraudAlert) {
			m.disp.SubmitFraudAlert(context.Background(), *a)
		},
	}, m.rec, log)

	m.scorer = detection.NewScorer(m.rec, m.an, cfg.UserID, cfg.SystemContext, log)

	return m
}

// Recorder returns the event recorder for capture collaborators.
func (m *Monitor) Recorder() *recorder.Recorder {
	return m.rec
}

// Dispatcher returns the delivery queue for capture collaborators that
// submit telemetry directly.
func (m *Monitor) Dispatcher() *delivery.Dispatcher {
	return m.disp
}

// Running reports whether the periodic cadences are active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetThresholds applies live-reloaded detection thresholds.
func (m *Monitor) SetThresholds(t detection.Thresholds) {
	m.an.SetThresholds(t)
	m.log.WithFields(logrus.Fields{
		"suspicious_activity_threshold": t.SuspiciousActivityThreshold,
		"pattern_window":                t.PatternWindow,
		"min_mouse_distance":            t.MinMouseDistance,
		"keyboard_diversity":            t.KeyboardDiversity,
	}).Info("Detection thresholds updated")
}

// Start registers every periodic cadence and returns. An immediate probe
// establishes reachability before the first flush.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	sched := m.cfg.Scheduler

	m.probe.Check(ctx)

	m.stops = append(m.stops,
		sched.Every(m.cfg.AnalyzeInterval, func(now time.Time) {
			m.an.Analyze(now)
		}),
		sched.Every(m.cfg.RiskInterval, func(now time.Time) {
			_, alert := m.scorer.Evaluate(now)
			if alert != nil {
				m.disp.SubmitFraudAlert(ctx, *alert)
			}
		}),
		sched.Every(m.cfg.FlushInterval, func(time.Time) {
			m.disp.Flush(ctx)
		}),
		sched.After(startupFlushDelay, func(time.Time) {
			m.disp.Flush(ctx)
		}),
		sched.Every(m.cfg.ProbeInterval, func(time.Time) {
			m.probe.Check(ctx)
		}),
		sched.Every(m.cfg.StewardInterval, func(now time.Time) {
			m.rec.PruneAll(now)
			m.an.PruneHistory(now)
		}),
	)

	m.running = true
	m.log.WithFields(logrus.Fields{
		"analyze_interval": m.cfg.AnalyzeInterval,
		"risk_interval":    m.cfg.RiskInterval,
		"flush_interval":   m.cfg.FlushInterval,
		"probe_interval":   m.cfg.ProbeInterval,
	}).Info("Behavioral monitoring started")
}

// Stop cancels every timer. Buffers and the persisted queue state are left
// intact; a later Start resumes from the durable queue.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	for _, stop := range m.stops {
		stop()
	}
	m.stops = nil
	m.cancel()
	m.running = false
	m.log.Info("Behavioral monitoring stopped")
}

// Report is the on-demand detection summary for the status server.
type Report struct {
	Monitoring       bool                `json:"monitoring"`
	SuspiciousEvents int                 `json:"suspicious_events"`
	RecentActivity   types.ActivityLevel `json:"recent_activity"`
	RiskScore        float64             `json:"risk_score"`
	RiskLevel        string              `json:"risk_level"`
}

// Report summarizes the current detection state. The coarse level follows
// the suspicious-event count: more than 5 is HIGH, more than 2 MEDIUM.
func (m *Monitor) Report() Report {
	count := m.an.SuspiciousCount()
	level := "LOW"
	switch {
	case count > 5:
		level = "HIGH"
	case count > 2:
		level = "MEDIUM"
	}
	return Report{
		Monitoring:       m.Running(),
		SuspiciousEvents: count,
		RecentActivity:   m.rec.ActivityLevel(),
		RiskScore:        m.scorer.LastScore(),
		RiskLevel:        level,
	}
}
