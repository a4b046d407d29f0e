package delivery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Probe periodically tests backend reachability with a cheap read-only
// call and flips the dispatcher's online flag. A false-to-true transition
// triggers an immediate flush in addition to the periodic schedule.
type Probe struct {
	d       *Dispatcher
	log     *logrus.Logger
	timeout time.Duration
}

// NewProbe creates a Probe for the dispatcher. timeout bounds each ping;
// zero means 5 seconds.
func NewProbe(d *Dispatcher, timeout time.Duration, log *logrus.Logger) *Probe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Probe{d: d, log: log, timeout: timeout}
}

// Check pings the backend once and updates the online flag. It returns the
// new reachability state.
func (p *Probe) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.d.uploader.Ping(pctx)
	cancel()

	ok := err == nil
	was := p.d.setOnline(ok)
	switch {
	case ok && !was:
		p.log.Info("Backend reachable again, flushing queued telemetry")
		p.d.Flush(ctx)
	case !ok && was:
		p.log.WithError(err).Warn("Backend unreachable, queuing telemetry locally")
	}
	return ok
}
