// Package ticker defines a mockable ticker interface that allows swap
// watchers to be driven either by wall-clock time (Force to nil) or by
// a test harness (Force a channel under its control).
package ticker

import "time"

// Ticker is an interface which is used to mock time.Ticker in unit tests.
type Ticker interface {
	// Ticks returns a channel which is sent a value on each tick.
	Ticks() <-chan time.Time

	// Resume restarts the ticker from its last stopped state.
	Resume()

	// Pause suspends the ticker so that it no longer ticks.
	Pause()

	// Stop releases the ticker's resources. It must not be used
	// afterwards.
	Stop()
}

// intervalTicker is a Ticker backed by a real time.Ticker.
type intervalTicker struct {
	*time.Ticker

	interval time.Duration
}

// New creates a new Ticker that ticks every interval.
func New(interval time.Duration) Ticker {
	return &intervalTicker{
		Ticker:   time.NewTicker(interval),
		interval: interval,
	}
}

// Ticks returns the underlying time.Ticker's channel.
//
// NOTE: Part of the Ticker interface.
func (t *intervalTicker) Ticks() <-chan time.Time {
	return t.C
}

// Resume restarts the ticker from its last stopped state.
//
// NOTE: Part of the Ticker interface.
func (t *intervalTicker) Resume() {
	t.Ticker.Reset(t.interval)
}

// Pause suspends the ticker so that no more ticks are sent until Resume
// is called.
//
// NOTE: Part of the Ticker interface.
func (t *intervalTicker) Pause() {
	t.Ticker.Stop()
}

// Stop releases the ticker's resources.
//
// NOTE: Part of the Ticker interface.
func (t *intervalTicker) Stop() {
	t.Ticker.Stop()
}
