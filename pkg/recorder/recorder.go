// Package recorder ingests raw input and screenshot events into bounded,
// time-windowed buffers consumed by the pattern analyzer and risk scorer.
package recorder

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/worklens/desktop-agent/internal/types"
)

var eventsRecorded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_activity_events_total",
		Help: "Total raw activity events recorded",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(eventsRecorded)
}

// Buffer windows per event type.
const (
	historyWindow    = 15 * time.Minute
	mouseMoveWindow  = 2 * time.Minute
	mouseClickWindow = 10 * time.Minute
	keystrokeWindow  = 5 * time.Minute
)

// Buffer caps. Short-term buffers feeding the pattern analyzer keep fewer
// entries than the long history.
const (
	historyCap = 1000
	shortCap   = 500
)

// Recorder owns all rolling buffers for one monitoring session. Record
// never blocks and never fails: on a malformed payload the field-level
// write is skipped but the event envelope is still kept in the history.
type Recorder struct {
	log *logrus.Logger

	history     *RollingBuffer[types.ActivityEvent]
	positions   *RollingBuffer[types.MouseMove]
	clicks      *RollingBuffer[time.Time]
	keystrokes  *RollingBuffer[types.Keystroke]
	patternKeys *RollingBuffer[types.Keystroke]

	mu             sync.Mutex
	lastScreenshot time.Time
}

// New creates a Recorder with empty buffers.
func New(log *logrus.Logger) *Recorder {
	return &Recorder{
		log: log,
		history: NewRollingBuffer(historyWindow, historyCap, func(e types.ActivityEvent) time.Time {
			return e.Timestamp
		}),
		positions: NewRollingBuffer(mouseMoveWindow, shortCap, func(m types.MouseMove) time.Time {
			return m.Timestamp
		}),
		clicks: NewRollingBuffer(mouseClickWindow, shortCap, func(t time.Time) time.Time {
			return t
		}),
		keystrokes: NewRollingBuffer(keystrokeWindow, historyCap, func(k types.Keystroke) time.Time {
			return k.Timestamp
		}),
		patternKeys: NewRollingBuffer(keystrokeWindow, shortCap, func(k types.Keystroke) time.Time {
			return k.Timestamp
		}),
	}
}

// Record appends the event to the global history and to its type-specific
// buffer, stamping it with the current time when the envelope carries none.
func (r *Recorder) Record(ev types.ActivityEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.history.Append(ev)
	eventsRecorded.WithLabelValues(types.KindToString(ev.Kind)).Inc()

	switch ev.Kind {
	case types.EventKindMouseMove:
		if ev.Mouse == nil {
			return
		}
		m := *ev.Mouse
		if m.Timestamp.IsZero() {
			m.Timestamp = ev.Timestamp
		}
		r.positions.Append(m)
	case types.EventKindMouseClick:
		r.clicks.Append(ev.Timestamp)
	case types.EventKindKeyboard:
		if ev.Key == nil {
			return
		}
		k := *ev.Key
		if k.Timestamp.IsZero() {
			k.Timestamp = ev.Timestamp
		}
		r.keystrokes.Append(k)
		r.patternKeys.Append(k)
	case types.EventKindScreenshot:
		r.mu.Lock()
		r.lastScreenshot = ev.Timestamp
		r.mu.Unlock()
	}
}

// RecentPositions returns up to n most recent mouse positions, oldest first.
func (r *Recorder) RecentPositions(n int) []types.MouseMove {
	return r.positions.Last(n)
}

// RecentClicks returns up to n most recent click timestamps, oldest first.
func (r *Recorder) RecentClicks(n int) []time.Time {
	return r.clicks.Last(n)
}

// RecentKeystrokes returns up to n most recent keystrokes, oldest first.
func (r *Recorder) RecentKeystrokes(n int) []types.Keystroke {
	return r.keystrokes.Last(n)
}

// PatternKeystrokes returns up to n entries of the short keystroke buffer
// used for pattern-text analysis.
func (r *Recorder) PatternKeystrokes(n int) []types.Keystroke {
	return r.patternKeys.Last(n)
}

// PatternKeyCount returns the number of keystrokes in the short buffer.
func (r *Recorder) PatternKeyCount() int {
	return r.patternKeys.Len()
}

// ClickCount returns the number of retained click timestamps.
func (r *Recorder) ClickCount() int {
	return r.clicks.Len()
}

// LastScreenshot returns the most recent screenshot timestamp, or false if
// no screenshot was recorded this session.
func (r *Recorder) LastScreenshot() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastScreenshot, !r.lastScreenshot.IsZero()
}

// History returns a copy of the full retained activity history.
func (r *Recorder) History() []types.ActivityEvent {
	return r.history.Snapshot()
}

// ActivityLevel counts retained events by kind.
func (r *Recorder) ActivityLevel() types.ActivityLevel {
	var lvl types.ActivityLevel
	for _, ev := range r.history.Snapshot() {
		switch ev.Kind {
		case types.EventKindMouseMove:
			lvl.MouseMoves++
		case types.EventKindMouseClick:
			lvl.MouseClicks++
		case types.EventKindKeyboard:
			lvl.Keystrokes++
		}
		lvl.TotalEvents++
	}
	return lvl
}

// PruneAll trims every buffer by age and count. Run periodically so a
// day-long session cannot grow memory between appends.
func (r *Recorder) PruneAll(now time.Time) {
	r.history.Prune(now)
	r.positions.Prune(now)
	r.clicks.Prune(now)
	r.keystrokes.Prune(now)
	r.patternKeys.Prune(now)
	r.log.WithFields(logrus.Fields{
		"history":    r.history.Len(),
		"positions":  r.positions.Len(),
		"clicks":     r.clicks.Len(),
		"keystrokes": r.keystrokes.Len(),
	}).Debug("Pruned activity buffers")
}
