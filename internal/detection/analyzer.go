// Package detection implements the behavioral heuristics that classify
// automated input patterns and the risk scorer that aggregates findings.
package detection

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/pkg/recorder"
)

var (
	patternsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_suspicious_patterns_total",
			Help: "Total suspicious patterns detected",
		},
		[]string{"type", "severity"},
	)
	alertsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_fraud_alerts_total",
			Help: "Total fraud alerts generated",
		},
	)
	alertsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_fraud_alerts_suppressed_total",
			Help: "Fraud alerts suppressed by the debounce limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(patternsDetected)
	prometheus.MustRegister(alertsGenerated)
	prometheus.MustRegister(alertsSuppressed)
}

// Detection thresholds fixed by the heuristics.
const (
	jiggleMinSamples     = 10
	jiggleSampleCount    = 20
	jiggleMaxAvgDistance = 20.0
	jiggleSmallMoveLimit = 10.0
	jiggleSmallMoveCount = 15
	jiggleMaxDirVariance = 0.5
	jiggleMaxIntVariance = 1000.0 // ms^2

	keyboardMinSamples     = 10
	keyboardSampleCount    = 50
	keyboardMaxIntVariance = 500.0
	keyboardMaxAvgInterval = 200.0 // ms
	keyboardPatternRatio   = 0.7

	clickMinSamples     = 5
	clickSampleCount    = 20
	clickMinIntervals   = 3
	clickMaxIntVariance = 100.0
	clickMaxAvgInterval = 5000.0 // ms
	clickSustainedCount = 10

	evasionWindow     = 5 * time.Second
	evasionEventLimit = 10
	evasionConfidence = 0.8
)

// patternKeyVocabulary are the modifier keys automation tools lean on.
var patternKeyVocabulary = []string{"space", "shift", "ctrl", "alt"}

// Thresholds are the configurable knobs of the analyzer. Zero values are
// replaced with defaults by NewAnalyzer. SuspiciousActivityThreshold and
// MinMouseDistance are reserved for heuristics that tune on them; no
// current detector reads them.
type Thresholds struct {
	SuspiciousActivityThreshold int
	PatternWindow               time.Duration
	MinMouseDistance            float64
	KeyboardDiversity           int
}

// DefaultThresholds returns the stock detection configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SuspiciousActivityThreshold: 10,
		PatternWindow:               15 * time.Minute,
		MinMouseDistance:            50,
		KeyboardDiversity:           5,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.SuspiciousActivityThreshold <= 0 {
		t.SuspiciousActivityThreshold = d.SuspiciousActivityThreshold
	}
	if t.PatternWindow <= 0 {
		t.PatternWindow = d.PatternWindow
	}
	if t.MinMouseDistance <= 0 {
		t.MinMouseDistance = d.MinMouseDistance
	}
	if t.KeyboardDiversity <= 0 {
		t.KeyboardDiversity = d.KeyboardDiversity
	}
	return t
}

// AlertSink receives fraud alerts generated by HIGH-severity findings.
type AlertSink func(*types.FraudAlert)

// Analyzer evaluates the four input heuristics against the recorder's
// buffers on each pass and keeps a bounded history of findings.
type Analyzer struct {
	log *logrus.Logger
	rec *recorder.Recorder

	mu  sync.RWMutex
	thr Thresholds

	history *recorder.RollingBuffer[types.SuspiciousActivity]

	userID     string
	sink       AlertSink
	limiter    *rate.Limiter
	riskSource func() float64
	sysContext func() types.SystemContext
}

// AnalyzerConfig wires an Analyzer.
type AnalyzerConfig struct {
	Thresholds Thresholds
	UserID     string
	// Sink receives fraud alerts from HIGH-severity findings. When nil,
	// alerts are logged only.
	Sink AlertSink
	// AlertsPerMinute bounds alert emission; 0 means one per minute.
	AlertsPerMinute float64
	// RiskSource supplies the most recent risk score for alert context.
	RiskSource func() float64
	// SystemContext supplies the host snapshot attached to alerts.
	SystemContext func() types.SystemContext
}

// NewAnalyzer creates an Analyzer reading from rec.
func NewAnalyzer(cfg AnalyzerConfig, rec *recorder.Recorder, log *logrus.Logger) *Analyzer {
	thr := cfg.Thresholds.withDefaults()
	perMin := cfg.AlertsPerMinute
	if perMin <= 0 {
		perMin = 1
	}
	return &Analyzer{
		log: log,
		rec: rec,
		thr: thr,
		history: recorder.NewRollingBuffer(thr.PatternWindow, 500, func(s types.SuspiciousActivity) time.Time {
			return s.Timestamp
		}),
		userID:     cfg.UserID,
		sink:       cfg.Sink,
		limiter:    rate.NewLimiter(rate.Limit(perMin/60.0), 3),
		riskSource: cfg.RiskSource,
		sysContext: cfg.SystemContext,
	}
}

// SetThresholds swaps the detection thresholds, e.g. after a config reload.
func (a *Analyzer) SetThresholds(thr Thresholds) {
	a.mu.Lock()
	a.thr = thr.withDefaults()
	a.mu.Unlock()
}

func (a *Analyzer) thresholds() Thresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thr
}

// SuspiciousCount returns the number of findings retained in the history.
func (a *Analyzer) SuspiciousCount() int {
	return a.history.Len()
}

// RecentFindings returns up to n most recent findings, oldest first.
func (a *Analyzer) RecentFindings(n int) []types.SuspiciousActivity {
	return a.history.Last(n)
}

// PruneHistory trims the findings history by age and count.
func (a *Analyzer) PruneHistory(now time.Time) {
	a.history.Prune(now)
}

// Analyze runs all four heuristics once and returns the findings of this
// pass. HIGH-severity findings are converted into fraud alerts immediately,
// independent of the risk-scoring cadence.
func (a *Analyzer) Analyze(now time.Time) []types.SuspiciousActivity {
	var found []types.SuspiciousActivity

	if f := a.DetectMouseJiggling(); f.Suspicious {
		found = append(found, finding(types.PatternMouseJiggling, types.SeverityHigh, f.Confidence, f.evidence(), now))
	}
	if f := a.DetectKeyboardPatterns(); f.Suspicious {
		found = append(found, finding(types.PatternKeyboardRepeat, types.SeverityHigh, f.Confidence, f.evidence(), now))
	}
	if f := a.DetectClickPatterns(); f.Suspicious {
		found = append(found, finding(types.PatternClickAutomation, types.SeverityMedium, f.Confidence, f.evidence(), now))
	}
	if f := a.DetectScreenshotEvasion(now); f.Suspicious {
		found = append(found, finding(types.PatternScreenshotEvasion, types.SeverityHigh, f.Confidence, f.evidence(), now))
	}

	for _, sa := range found {
		a.history.Append(sa)
		patternsDetected.WithLabelValues(string(sa.Type), types.SeverityToString(sa.Severity)).Inc()
		fields := logrus.Fields{
			"pattern":    sa.Type,
			"severity":   types.SeverityToString(sa.Severity),
			"confidence": sa.Confidence,
		}
		switch sa.Severity {
		case types.SeverityHigh:
			a.log.WithFields(fields).Error("HIGH: Suspicious activity detected")
			a.emitAlert(sa, now)
		default:
			a.log.WithFields(fields).Warn("MEDIUM: Suspicious activity detected")
		}
	}
	return found
}

func finding(t types.PatternType, sev types.Severity, conf float64, details map[string]float64, ts time.Time) types.SuspiciousActivity {
	return types.SuspiciousActivity{
		Type:       t,
		Severity:   sev,
		Details:    details,
		Confidence: conf,
		Timestamp:  ts,
	}
}

func (a *Analyzer) emitAlert(sa types.SuspiciousActivity, now time.Time) {
	if !a.limiter.Allow() {
		alertsSuppressed.Inc()
		a.log.WithField("pattern", sa.Type).Debug("Alert suppressed by debounce limiter")
		return
	}
	var risk float64
	if a.riskSource != nil {
		risk = a.riskSource()
	}
	var sysCtx types.SystemContext
	if a.sysContext != nil {
		sysCtx = a.sysContext()
	}
	alert := &types.FraudAlert{
		ID:                 uuid.NewString(),
		Type:               string(sa.Type),
		Timestamp:          now,
		UserID:             a.userID,
		RiskScore:          risk,
		Confidence:         sa.Confidence,
		Details:            sa.Details,
		SuspiciousPatterns: a.history.Last(10),
		Severity:           sa.Severity,
		ActivityContext:    a.rec.ActivityLevel(),
		SystemContext:      sysCtx,
	}
	alertsGenerated.Inc()
	if a.sink == nil {
		a.log.WithFields(logrus.Fields{
			"alert_id": alert.ID,
			"type":     alert.Type,
		}).Warn("No alert sink configured, fraud alert logged only")
		return
	}
	a.sink(alert)
}

// JiggleFinding is the evidence of one mouse-jiggle evaluation.
type JiggleFinding struct {
	Suspicious        bool
	AvgDistance       float64
	SmallMoveRatio    float64
	DirectionVariance float64
	IntervalVariance  float64
	Confidence        float64
}

func (f JiggleFinding) evidence() map[string]float64 {
	return map[string]float64{
		"avg_distance":       f.AvgDistance,
		"small_move_ratio":   f.SmallMoveRatio,
		"direction_variance": f.DirectionVariance,
		"interval_variance":  f.IntervalVariance,
	}
}

// DetectMouseJiggling flags rapid low-amplitude, low-variance cursor
// movement typical of presence-simulation tools.
func (a *Analyzer) DetectMouseJiggling() JiggleFinding {
	moves := a.rec.RecentPositions(jiggleSampleCount)
	if len(moves) < jiggleMinSamples {
		return JiggleFinding{}
	}

	distances := make([]float64, 0, len(moves)-1)
	directions := make([]float64, 0, len(moves)-1)
	intervals := make([]float64, 0, len(moves)-1)
	for i := 1; i < len(moves); i++ {
		prev, curr := moves[i-1], moves[i]
		distances = append(distances, euclidean(prev.X, prev.Y, curr.X, curr.Y))
		directions = append(directions, bearing(prev.X, prev.Y, curr.X, curr.Y))
		intervals = append(intervals, float64(curr.Timestamp.Sub(prev.Timestamp).Milliseconds()))
	}

	avgDistance := mean(distances)
	smallMoves := 0
	for _, d := range distances {
		if d < jiggleSmallMoveLimit {
			smallMoves++
		}
	}
	dirVariance := variance(directions)
	intVariance := variance(intervals)

	suspicious := avgDistance < jiggleMaxAvgDistance &&
		smallMoves > jiggleSmallMoveCount &&
		dirVariance < jiggleMaxDirVariance &&
		intVariance < jiggleMaxIntVariance

	f := JiggleFinding{
		Suspicious:        suspicious,
		AvgDistance:       avgDistance,
		SmallMoveRatio:    float64(smallMoves) / float64(len(distances)),
		DirectionVariance: dirVariance,
		IntervalVariance:  intVariance,
	}
	if suspicious {
		f.Confidence = conditionConfidence(
			avgDistance < jiggleMaxAvgDistance,
			smallMoves > jiggleSmallMoveCount,
			dirVariance < jiggleMaxDirVariance,
		)
	}
	return f
}

// KeyboardFinding is the evidence of one keyboard-pattern evaluation.
type KeyboardFinding struct {
	Suspicious       bool
	KeyDiversity     int
	AvgInterval      float64
	IntervalVariance float64
	PatternKeyRatio  float64
	Confidence       float64
}

func (f KeyboardFinding) evidence() map[string]float64 {
	return map[string]float64{
		"key_diversity":     float64(f.KeyDiversity),
		"avg_interval":      f.AvgInterval,
		"interval_variance": f.IntervalVariance,
		"pattern_key_ratio": f.PatternKeyRatio,
	}
}

// DetectKeyboardPatterns flags low-diversity, metronomic typing dominated
// by modifier keys.
func (a *Analyzer) DetectKeyboardPatterns() KeyboardFinding {
	if a.rec.PatternKeyCount() < keyboardMinSamples {
		return KeyboardFinding{}
	}
	keys := a.rec.PatternKeystrokes(keyboardSampleCount)

	idents := make([]string, 0, len(keys))
	for _, k := range keys {
		id := k.Key
		if id == "" {
			id = k.Code
		}
		if id != "" {
			idents = append(idents, id)
		}
	}
	if len(idents) == 0 {
		return KeyboardFinding{}
	}

	distinct := make(map[string]struct{}, len(idents))
	patternKeys := 0
	for _, id := range idents {
		distinct[id] = struct{}{}
		lower := strings.ToLower(id)
		for _, p := range patternKeyVocabulary {
			if strings.Contains(lower, p) {
				patternKeys++
				break
			}
		}
	}

	intervals := make([]float64, 0, len(keys)-1)
	for i := 1; i < len(keys); i++ {
		intervals = append(intervals, float64(keys[i].Timestamp.Sub(keys[i-1].Timestamp).Milliseconds()))
	}
	avgInterval := mean(intervals)
	intVariance := variance(intervals)

	thr := a.thresholds()
	diversity := len(distinct)
	ratio := float64(patternKeys) / float64(len(idents))
	suspicious := diversity < thr.KeyboardDiversity &&
		intVariance < keyboardMaxIntVariance &&
		avgInterval < keyboardMaxAvgInterval &&
		ratio > keyboardPatternRatio

	f := KeyboardFinding{
		Suspicious:       suspicious,
		KeyDiversity:     diversity,
		AvgInterval:      avgInterval,
		IntervalVariance: intVariance,
		PatternKeyRatio:  ratio,
	}
	if suspicious {
		f.Confidence = conditionConfidence(
			diversity < thr.KeyboardDiversity,
			intVariance < keyboardMaxIntVariance,
			avgInterval < keyboardMaxAvgInterval,
		)
	}
	return f
}

// ClickFinding is the evidence of one click-pattern evaluation.
type ClickFinding struct {
	Suspicious       bool
	AvgInterval      float64
	IntervalVariance float64
	ClickCount       int
	Confidence       float64
}

func (f ClickFinding) evidence() map[string]float64 {
	return map[string]float64{
		"avg_interval":      f.AvgInterval,
		"interval_variance": f.IntervalVariance,
		"click_count":       float64(f.ClickCount),
	}
}

// DetectClickPatterns flags sustained, very regular clicking.
func (a *Analyzer) DetectClickPatterns() ClickFinding {
	if a.rec.ClickCount() < clickMinSamples {
		return ClickFinding{}
	}
	clicks := a.rec.RecentClicks(clickSampleCount)

	intervals := make([]float64, 0, len(clicks)-1)
	for i := 1; i < len(clicks); i++ {
		intervals = append(intervals, float64(clicks[i].Sub(clicks[i-1]).Milliseconds()))
	}
	if len(intervals) < clickMinIntervals {
		return ClickFinding{}
	}

	avgInterval := mean(intervals)
	intVariance := variance(intervals)
	suspicious := intVariance < clickMaxIntVariance &&
		avgInterval < clickMaxAvgInterval &&
		len(intervals) > clickSustainedCount

	f := ClickFinding{
		Suspicious:       suspicious,
		AvgInterval:      avgInterval,
		IntervalVariance: intVariance,
		ClickCount:       len(clicks),
	}
	if suspicious {
		f.Confidence = conditionConfidence(
			intVariance < clickMaxIntVariance,
			avgInterval < clickMaxAvgInterval,
		)
	}
	return f
}

// EvasionFinding is the evidence of one screenshot-evasion evaluation.
type EvasionFinding struct {
	Suspicious        bool
	EventsAround      int
	SinceScreenshotMS float64
	Confidence        float64
}

func (f EvasionFinding) evidence() map[string]float64 {
	return map[string]float64{
		"events_around_screenshot": float64(f.EventsAround),
		"since_screenshot_ms":      f.SinceScreenshotMS,
	}
}

// DetectScreenshotEvasion flags a burst of input concentrated around the
// moment of the last screenshot.
func (a *Analyzer) DetectScreenshotEvasion(now time.Time) EvasionFinding {
	shot, ok := a.rec.LastScreenshot()
	if !ok {
		return EvasionFinding{}
	}

	around := 0
	for _, ev := range a.rec.History() {
		d := ev.Timestamp.Sub(shot)
		if d < 0 {
			d = -d
		}
		if d < evasionWindow {
			around++
		}
	}

	suspicious := around > evasionEventLimit
	f := EvasionFinding{
		Suspicious:        suspicious,
		EventsAround:      around,
		SinceScreenshotMS: float64(now.Sub(shot).Milliseconds()),
	}
	if suspicious {
		f.Confidence = evasionConfidence
	}
	return f
}
