package detection

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/types"
	"github.com/worklens/desktop-agent/pkg/recorder"
)

var riskScoreGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "agent_risk_score",
		Help: "Most recent behavioral risk score",
	},
)

func init() {
	prometheus.MustRegister(riskScoreGauge)
}

// Risk scoring weights and bounds.
const (
	suspiciousEventWeight = 0.05
	suspiciousEventCap    = 0.3
	lowActivityWeight     = 0.15
	lowActivityLimit      = 5
	highActivityWeight    = 0.1
	highActivityLimit     = 2000
	uniformMouseWeight    = 0.1
	uniformMouseVariance  = 0.05
	lowDiversityWeight    = 0.15
	lowDiversityLimit     = 3

	// RiskScoreCap bounds the volume-heuristic score. Scores above the
	// alert threshold are reserved for the HIGH-severity pattern path.
	RiskScoreCap = 0.6

	alertThreshold  = 0.7
	mediumThreshold = 0.4

	profileSampleCount = 100
)

// Scorer aggregates recent findings and raw activity volume into a bounded
// risk score on a slower cadence than the pattern analyzer.
type Scorer struct {
	log    *logrus.Logger
	rec    *recorder.Recorder
	an     *Analyzer
	userID string

	// lastScore holds math.Float64bits of the score; it is read by the
	// analyzer's alert path and the status server while Evaluate writes it.
	lastScore atomic.Uint64
	sysCtx    func() types.SystemContext
}

// NewScorer creates a Scorer reading from rec and the analyzer's history.
func NewScorer(rec *recorder.Recorder, an *Analyzer, userID string, sysCtx func() types.SystemContext, log *logrus.Logger) *Scorer {
	return &Scorer{log: log, rec: rec, an: an, userID: userID, sysCtx: sysCtx}
}

// LastScore returns the score from the most recent Evaluate pass. Safe to
// call concurrently with Evaluate.
func (s *Scorer) LastScore() float64 {
	return math.Float64frombits(s.lastScore.Load())
}

// Profile builds the behavior profile from the last 100 mouse positions
// and keystrokes.
func (s *Scorer) Profile() types.BehaviorProfile {
	moves := s.rec.RecentPositions(profileSampleCount)
	keys := s.rec.RecentKeystrokes(profileSampleCount)

	p := types.BehaviorProfile{
		ClickFrequency: s.rec.ClickCount(),
	}

	if len(moves) >= 2 {
		var totalDist, totalTime float64
		speeds := make([]float64, 0, len(moves)-1)
		for i := 1; i < len(moves); i++ {
			prev, curr := moves[i-1], moves[i]
			dist := euclidean(prev.X, prev.Y, curr.X, curr.Y)
			dt := float64(curr.Timestamp.Sub(prev.Timestamp).Milliseconds())
			totalDist += dist
			totalTime += dt
			if dt > 0 {
				speeds = append(speeds, dist/dt)
			} else {
				speeds = append(speeds, 0)
			}
		}
		if totalTime > 0 {
			p.AvgMouseSpeed = totalDist / totalTime
		}
		p.MouseSpeedVariance = variance(speeds)
	}

	if len(keys) >= 2 {
		span := float64(keys[len(keys)-1].Timestamp.Sub(keys[0].Timestamp).Milliseconds())
		if span > 0 {
			// Keys per minute extrapolated from the observed span.
			p.TypingSpeed = float64(len(keys)) / span * 60000
		}
		distinct := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			distinct[k.Key] = struct{}{}
		}
		p.KeyDiversity = len(distinct)
		intervals := make([]float64, 0, len(keys)-1)
		for i := 1; i < len(keys); i++ {
			intervals = append(intervals, float64(keys[i].Timestamp.Sub(keys[i-1].Timestamp).Milliseconds()))
		}
		p.TypingRhythm = variance(intervals)
	}

	return p
}

// Snapshot recomputes the risk snapshot. The score is additive over the
// volume heuristics and hard-capped at RiskScoreCap.
func (s *Scorer) Snapshot(now time.Time) types.RiskSnapshot {
	snap := types.RiskSnapshot{
		Timestamp:             now,
		TotalSuspiciousEvents: s.an.SuspiciousCount(),
		RecentActivityLevel:   s.rec.ActivityLevel(),
		BehaviorProfile:       s.Profile(),
	}

	score := float64(snap.TotalSuspiciousEvents) * suspiciousEventWeight
	if score > suspiciousEventCap {
		score = suspiciousEventCap
	}
	if snap.RecentActivityLevel.TotalEvents < lowActivityLimit {
		score += lowActivityWeight
	}
	if snap.RecentActivityLevel.TotalEvents > highActivityLimit {
		score += highActivityWeight
	}
	if snap.BehaviorProfile.MouseSpeedVariance < uniformMouseVariance {
		score += uniformMouseWeight
	}
	if snap.BehaviorProfile.KeyDiversity < lowDiversityLimit {
		score += lowDiversityWeight
	}
	if score > RiskScoreCap {
		score = RiskScoreCap
	}
	snap.RiskScore = score
	return snap
}

// Evaluate runs one scoring pass and returns the snapshot plus a fraud
// alert when the score crosses the alert threshold. The cap keeps
// volume-only scores below that threshold, so the alert path here fires
// only if pattern findings push future scoring schemes past it; medium
// scores are logged without alerting.
func (s *Scorer) Evaluate(now time.Time) (types.RiskSnapshot, *types.FraudAlert) {
	snap := s.Snapshot(now)
	s.lastScore.Store(math.Float64bits(snap.RiskScore))
	riskScoreGauge.Set(snap.RiskScore)

	fields := logrus.Fields{
		"risk_score":        snap.RiskScore,
		"suspicious_events": snap.TotalSuspiciousEvents,
		"total_events":      snap.RecentActivityLevel.TotalEvents,
	}
	switch {
	case snap.RiskScore > alertThreshold:
		s.log.WithFields(fields).Error("HIGH RISK: potential fraudulent activity")
		var sysCtx types.SystemContext
		if s.sysCtx != nil {
			sysCtx = s.sysCtx()
		}
		return snap, &types.FraudAlert{
			ID:                 uuid.NewString(),
			Type:               "high_risk_score",
			Timestamp:          now,
			UserID:             s.userID,
			RiskScore:          snap.RiskScore,
			Confidence:         snap.RiskScore,
			Details:            map[string]float64{"risk_score": snap.RiskScore},
			SuspiciousPatterns: s.an.RecentFindings(10),
			Severity:           types.SeverityHigh,
			ActivityContext:    snap.RecentActivityLevel,
			SystemContext:      sysCtx,
		}
	case snap.RiskScore > mediumThreshold:
		s.log.WithFields(fields).Warn("MEDIUM RISK: suspicious patterns detected")
	default:
		s.log.WithFields(fields).Debug("Risk scoring pass complete")
	}
	return snap, nil
}
