package ticker

import "time"

// Mock is a Ticker whose ticks are driven entirely by the test calling
// Force, rather than by wall-clock time. Used by watcher tests that need to
// deterministically advance a poll loop by one iteration.
type Mock struct {
	Channel chan time.Time
	skip    bool
}

// NewMock creates a new test ticker.
func NewMock() *Mock {
	return &Mock{
		Channel: make(chan time.Time),
	}
}

// Ticks returns the channel that Force sends on.
//
// NOTE: Part of the Ticker interface.
func (m *Mock) Ticks() <-chan time.Time {
	return m.Channel
}

// Resume is a no-op for the mock ticker.
//
// NOTE: Part of the Ticker interface.
func (m *Mock) Resume() {
	m.skip = false
}

// Pause makes Force a no-op until Resume is called again.
//
// NOTE: Part of the Ticker interface.
func (m *Mock) Pause() {
	m.skip = true
}

// Stop is a no-op for the mock ticker.
//
// NOTE: Part of the Ticker interface.
func (m *Mock) Stop() {}

// Force sends the given time on the ticker's channel, simulating a single
// tick, unless the ticker is currently paused.
func (m *Mock) Force(t time.Time) {
	if m.skip {
		return
	}
	m.Channel <- t
}
