package clock

import (
	"sync"
	"time"
)

// TestClock can be used in tests to mock time.
type TestClock struct {
	currentTime time.Time
	timeChanMap map[time.Time][]chan time.Time
	mtx         sync.Mutex
}

// NewTestClock returns a new test clock anchored at the given time.
func NewTestClock(startTime time.Time) *TestClock {
	return &TestClock{
		currentTime: startTime,
		timeChanMap: make(map[time.Time][]chan time.Time),
	}
}

// Now returns the current time under test.
//
// NOTE: Part of the Clock interface.
func (c *TestClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.currentTime
}

// TickAfter returns a channel that ticks once the test clock is advanced
// past the given duration from its current time.
//
// NOTE: Part of the Clock interface.
func (c *TestClock) TickAfter(duration time.Duration) <-chan time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	triggerTime := c.currentTime.Add(duration)
	ch := make(chan time.Time, 1)

	if !c.currentTime.Before(triggerTime) {
		ch <- triggerTime
		return ch
	}

	c.timeChanMap[triggerTime] = append(c.timeChanMap[triggerTime], ch)
	return ch
}

// SetTime advances (or rewinds) the test clock, firing any TickAfter
// channels whose trigger time has now passed.
func (c *TestClock) SetTime(newTime time.Time) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.currentTime = newTime
	for t, chans := range c.timeChanMap {
		if t.After(newTime) {
			continue
		}
		for _, ch := range chans {
			ch <- t
		}
		delete(c.timeChanMap, t)
	}
}
