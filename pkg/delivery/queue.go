package delivery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/types"
)

var (
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_queue_depth",
			Help: "Pending items per delivery category",
		},
		[]string{"category"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_uploads_total",
			Help: "Upload attempts by category and result",
		},
		[]string{"category", "result"},
	)
	itemsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_queue_dropped_total",
			Help: "Items dropped after exhausting retries",
		},
		[]string{"category"},
	)
	onlineGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_backend_online",
			Help: "1 when the backend is reachable",
		},
	)
)

func init() {
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(uploadsTotal)
	prometheus.MustRegister(itemsDropped)
	prometheus.MustRegister(onlineGauge)
}

// Uploader is the backend-client boundary. Each method uploads one payload
// of its category; any category-specific wire mapping happens behind it.
type Uploader interface {
	UploadScreenshot(ctx context.Context, s types.Screenshot) error
	UploadAppLog(ctx context.Context, l types.AppLog) error
	UploadURLLog(ctx context.Context, l types.URLLog) error
	UploadIdleLog(ctx context.Context, l types.IdleLog) error
	UploadTimeLog(ctx context.Context, l types.TimeLog) error
	UploadFraudAlert(ctx context.Context, a types.FraudAlert) error
	Ping(ctx context.Context) error
}

// Config for the Dispatcher. Zero values get defaults.
type Config struct {
	MaxRetries    int           // attempts before an item is dropped (default 5)
	UploadTimeout time.Duration // per-attempt bound (default 10s)
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher owns the queue state and applies the submit/flush contract to
// every category. Submit and Flush may be called from different goroutines;
// the state mutex serializes mutation and flushMu makes flushes
// single-flight. No lock is held across an upload.
type Dispatcher struct {
	log      *logrus.Logger
	cfg      Config
	store    Storage
	uploader Uploader

	mu    sync.Mutex
	state State

	flushMu sync.Mutex
	online  atomic.Bool
}

// New creates a Dispatcher and loads the persisted queue state. A corrupt
// state file is logged and replaced by empty queues.
func New(cfg Config, store Storage, uploader Uploader, log *logrus.Logger) *Dispatcher {
	d := &Dispatcher{
		log:      log,
		cfg:      cfg.withDefaults(),
		store:    store,
		uploader: uploader,
	}
	st, err := store.Load()
	if err != nil {
		log.WithError(err).Warn("Failed to load queue state, starting empty")
	}
	d.state = st
	if n := st.depths().Total(); n > 0 {
		log.WithField("pending", n).Info("Recovered pending telemetry from disk")
	}
	d.updateDepthGauges()
	return d
}

// Online reports the last known backend reachability.
func (d *Dispatcher) Online() bool {
	return d.online.Load()
}

// setOnline stores the flag and returns the previous value.
func (d *Dispatcher) setOnline(v bool) bool {
	prev := d.online.Swap(v)
	if v {
		onlineGauge.Set(1)
	} else {
		onlineGauge.Set(0)
	}
	return prev
}

// Depths returns the pending item counts per category.
func (d *Dispatcher) Depths() Depths {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.depths()
}

// SubmitScreenshot applies the submit contract to the screenshots queue.
func (d *Dispatcher) SubmitScreenshot(ctx context.Context, p types.Screenshot) {
	submit(ctx, d, "screenshots", &d.state.Screenshots, d.uploader.UploadScreenshot, p)
}

// SubmitAppLog applies the submit contract to the app-logs queue.
func (d *Dispatcher) SubmitAppLog(ctx context.Context, p types.AppLog) {
	submit(ctx, d, "app_logs", &d.state.AppLogs, d.uploader.UploadAppLog, p)
}

// SubmitURLLog applies the submit contract to the url-logs queue.
func (d *Dispatcher) SubmitURLLog(ctx context.Context, p types.URLLog) {
	submit(ctx, d, "url_logs", &d.state.URLLogs, d.uploader.UploadURLLog, p)
}

// SubmitIdleLog applies the submit contract to the idle-logs queue.
func (d *Dispatcher) SubmitIdleLog(ctx context.Context, p types.IdleLog) {
	submit(ctx, d, "idle_logs", &d.state.IdleLogs, d.uploader.UploadIdleLog, p)
}

// SubmitTimeLog applies the submit contract to the time-logs queue.
func (d *Dispatcher) SubmitTimeLog(ctx context.Context, p types.TimeLog) {
	submit(ctx, d, "time_logs", &d.state.TimeLogs, d.uploader.UploadTimeLog, p)
}

// SubmitFraudAlert applies the submit contract to the fraud-alerts queue.
func (d *Dispatcher) SubmitFraudAlert(ctx context.Context, p types.FraudAlert) {
	submit(ctx, d, "fraud_alerts", &d.state.FraudAlerts, d.uploader.UploadFraudAlert, p)
}

// Flush drains every category oldest-first while online. Items that keep
// failing are retried on later flushes until the retry cap drops them.
func (d *Dispatcher) Flush(ctx context.Context) {
	if !d.Online() {
		return
	}
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	flushCategory(ctx, d, "screenshots", &d.state.Screenshots, d.uploader.UploadScreenshot)
	flushCategory(ctx, d, "app_logs", &d.state.AppLogs, d.uploader.UploadAppLog)
	flushCategory(ctx, d, "url_logs", &d.state.URLLogs, d.uploader.UploadURLLog)
	flushCategory(ctx, d, "idle_logs", &d.state.IdleLogs, d.uploader.UploadIdleLog)
	flushCategory(ctx, d, "time_logs", &d.state.TimeLogs, d.uploader.UploadTimeLog)
	flushCategory(ctx, d, "fraud_alerts", &d.state.FraudAlerts, d.uploader.UploadFraudAlert)
}

// persistLocked writes the current state. Callers hold d.mu. A write
// failure leaves the on-disk state stale; memory stays authoritative.
func (d *Dispatcher) persistLocked() {
	if err := d.store.Save(d.state); err != nil {
		d.log.WithError(err).Error("Failed to persist queue state")
	}
}

func (d *Dispatcher) updateDepthGauges() {
	dep := d.state.depths()
	queueDepth.WithLabelValues("screenshots").Set(float64(dep.Screenshots))
	queueDepth.WithLabelValues("app_logs").Set(float64(dep.AppLogs))
	queueDepth.WithLabelValues("url_logs").Set(float64(dep.URLLogs))
	queueDepth.WithLabelValues("idle_logs").Set(float64(dep.IdleLogs))
	queueDepth.WithLabelValues("time_logs").Set(float64(dep.TimeLogs))
	queueDepth.WithLabelValues("fraud_alerts").Set(float64(dep.FraudAlerts))
}

type uploadFunc[T any] func(context.Context, T) error

// submit tries an immediate upload while online and enqueues on failure or
// while offline. The enqueue persists the full state.
func submit[T any](ctx context.Context, d *Dispatcher, category string, items *[]Item[T], upload uploadFunc[T], payload T) {
	if d.Online() {
		uctx, cancel := context.WithTimeout(ctx, d.cfg.UploadTimeout)
		err := upload(uctx, payload)
		cancel()
		if err == nil {
			uploadsTotal.WithLabelValues(category, "ok").Inc()
			return
		}
		uploadsTotal.WithLabelValues(category, "error").Inc()
		d.log.WithError(err).WithField("category", category).Warn("Immediate upload failed, queuing")
	}

	d.mu.Lock()
	*items = append(*items, Item[T]{
		ID:         uuid.NewString(),
		Payload:    payload,
		EnqueuedAt: time.Now(),
	})
	d.persistLocked()
	d.updateDepthGauges()
	d.mu.Unlock()
}

// flushCategory walks one queue oldest-first. Positions of unprocessed
// items are stable during the walk: flushes are single-flight and submits
// only append. The state is persisted once after the pass.
func flushCategory[T any](ctx context.Context, d *Dispatcher, category string, items *[]Item[T], upload uploadFunc[T]) {
	i := 0
	mutated := false
	for {
		if ctx.Err() != nil {
			break
		}
		d.mu.Lock()
		if i >= len(*items) {
			d.mu.Unlock()
			break
		}
		it := (*items)[i]
		d.mu.Unlock()

		uctx, cancel := context.WithTimeout(ctx, d.cfg.UploadTimeout)
		err := upload(uctx, it.Payload)
		cancel()

		d.mu.Lock()
		if err == nil {
			*items = append((*items)[:i], (*items)[i+1:]...)
			mutated = true
			uploadsTotal.WithLabelValues(category, "ok").Inc()
			d.mu.Unlock()
			continue
		}
		uploadsTotal.WithLabelValues(category, "error").Inc()
		(*items)[i].Retries++
		mutated = true
		if (*items)[i].Retries >= d.cfg.MaxRetries {
			d.log.WithFields(logrus.Fields{
				"category": category,
				"item_id":  it.ID,
				"retries":  (*items)[i].Retries,
			}).Error("Dropping item after exhausting retries")
			itemsDropped.WithLabelValues(category).Inc()
			*items = append((*items)[:i], (*items)[i+1:]...)
		} else {
			d.log.WithFields(logrus.Fields{
				"category": category,
				"item_id":  it.ID,
				"retries":  (*items)[i].Retries,
			}).Warn("Upload failed, will retry")
			i++
		}
		d.mu.Unlock()
	}

	if mutated {
		d.mu.Lock()
		d.persistLocked()
		d.updateDepthGauges()
		d.mu.Unlock()
	}
}
