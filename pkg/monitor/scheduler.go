package monitor

import (
	"sync"
	"time"
)

// Scheduler abstracts periodic and one-shot timers so tests can drive the
// cadences with a fake clock.
type Scheduler interface {
	// Every runs fn on each tick until the returned stop func is called.
	Every(d time.Duration, fn func(now time.Time)) (stop func())
	// After runs fn once after d unless stopped first.
	After(d time.Duration, fn func(now time.Time)) (stop func())
}

// TickerScheduler is the production Scheduler backed by real timers.
type TickerScheduler struct{}

// NewTickerScheduler returns the real-timer Scheduler.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Every starts a goroutine driving fn from a time.Ticker.
func (*TickerScheduler) Every(d time.Duration, fn func(now time.Time)) (stop func()) {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-ticker.C:
				fn(now)
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// After starts a goroutine driving fn from a time.Timer.
func (*TickerScheduler) After(d time.Duration, fn func(now time.Time)) (stop func()) {
	timer := time.NewTimer(d)
	done := make(chan struct{})
	go func() {
		select {
		case now := <-timer.C:
			fn(now)
		case <-done:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			timer.Stop()
			close(done)
		})
	}
}
