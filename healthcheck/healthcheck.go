// Package healthcheck implements retrying connectivity checks against the
// external blockchain nodes the daemon depends on (the Bitcoin REST
// endpoint and the Ethereum JSON-RPC endpoint). A failing check surfaces a
// NodeConnection error to the caller rather than killing the process. The
// daemon's ledger watchers do not run these checks.
package healthcheck

import (
	"context"
	"time"

	"github.com/atomicswap/cnd/ticker"
	"github.com/btcsuite/btclog"
)

// log is the logger used by this subsystem. SetLogger overrides the default
// disabled logger.
var log = btclog.Disabled

// SetLogger sets the package-level logger used by this package.
func SetLogger(l btclog.Logger) {
	log = l
}

// CheckFunc is a function which performs a liveliness check against some
// external resource, returning an error if the resource is unreachable.
type CheckFunc func(ctx context.Context) error

// Observation defines a recurring check of an external resource along with
// the retry/backoff policy to apply when the check fails.
type Observation struct {
	// Name identifies the check being performed, used for logging.
	Name string

	// Check is the function that is used to determine liveliness.
	Check CheckFunc

	// Interval is the period of time between healthcheck calls.
	Interval time.Duration

	// Attempts is the number of calls we make for a single check before
	// failing.
	Attempts int

	// Backoff is the period of time to wait before retrying.
	Backoff time.Duration

	// Timeout is the amount of time we allow a single call to take
	// before we fail an attempt.
	Timeout time.Duration
}

// retryCheck calls the check function until it succeeds, or we have used up
// our allotted number of attempts, waiting backoff between each attempt.
func (o *Observation) retryCheck(ctx context.Context) error {
	var err error
	for i := 1; i <= o.Attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, o.Timeout)
		err = o.Check(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		log.Errorf("healthcheck: %v failed attempt %v/%v: %v",
			o.Name, i, o.Attempts, err)

		if i == o.Attempts {
			break
		}

		select {
		case <-time.After(o.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

// Monitor runs a set of observations on their own poll loops until
// cancelled, calling onFailure whenever all of an observation's attempts
// are exhausted.
type Monitor struct {
	observations []*Observation
	onFailure    func(name string, err error)
	quit         chan struct{}
}

// NewMonitor creates a Monitor for the given set of observations.
func NewMonitor(observations []*Observation,
	onFailure func(name string, err error)) *Monitor {

	return &Monitor{
		observations: observations,
		onFailure:    onFailure,
		quit:         make(chan struct{}),
	}
}

// Start launches a poll loop per observation.
func (m *Monitor) Start() {
	for _, obs := range m.observations {
		go m.run(obs)
	}
}

// Stop signals all poll loops to exit.
func (m *Monitor) Stop() {
	close(m.quit)
}

func (m *Monitor) run(obs *Observation) {
	t := ticker.New(obs.Interval)
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			if err := obs.retryCheck(context.Background()); err != nil {
				m.onFailure(obs.Name, err)
			}

		case <-m.quit:
			return
		}
	}
}
