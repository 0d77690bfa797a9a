// Package metrics exposes a node's swap activity as Prometheus gauges and
// counters, grounded on the pack's HealthLogger
// (system_health_logging.go): a private *prometheus.Registry populated at
// construction, served over HTTP by StartServer rather than registered
// against the global default registry.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/atomicswap/cnd/swap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge this daemon exports.
type Metrics struct {
	registry *prometheus.Registry

	proposed           prometheus.Counter
	accepted           prometheus.Counter
	declined           prometheus.Counter
	redeemed           prometheus.Counter
	refunded           prometheus.Counter
	incorrectlyFunded  prometheus.Counter
	inFlightByState    *prometheus.GaugeVec
}

// New creates a Metrics instance with every series registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		proposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnd_swaps_proposed_total",
			Help: "Total number of swaps proposed, either originated locally or received from a peer.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnd_swaps_accepted_total",
			Help: "Total number of swaps accepted.",
		}),
		declined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnd_swaps_declined_total",
			Help: "Total number of swaps declined.",
		}),
		redeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnd_swaps_redeemed_total",
			Help: "Total number of HTLC legs observed redeemed, across both ledger sides.",
		}),
		refunded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnd_swaps_refunded_total",
			Help: "Total number of HTLC legs observed refunded, across both ledger sides.",
		}),
		incorrectlyFunded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cnd_swaps_incorrectly_funded_total",
			Help: "Total number of HTLC legs observed funded with the wrong asset or amount.",
		}),
		inFlightByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cnd_swaps_in_flight",
			Help: "Number of swaps currently in each communication phase.",
		}, []string{"phase"}),
	}

	reg.MustRegister(
		m.proposed, m.accepted, m.declined,
		m.redeemed, m.refunded, m.incorrectlyFunded,
		m.inFlightByState,
	)
	return m
}

// ObserveProposed increments the proposed counter; call once per
// origination or inbound receipt, regardless of local role.
func (m *Metrics) ObserveProposed() { m.proposed.Inc() }

// ObserveAccepted increments the accepted counter.
func (m *Metrics) ObserveAccepted() { m.accepted.Inc() }

// ObserveDeclined increments the declined counter.
func (m *Metrics) ObserveDeclined() { m.declined.Inc() }

// ObserveRedeemed increments the redeemed counter, once per ledger leg.
func (m *Metrics) ObserveRedeemed() { m.redeemed.Inc() }

// ObserveRefunded increments the refunded counter, once per ledger leg.
func (m *Metrics) ObserveRefunded() { m.refunded.Inc() }

// ObserveIncorrectlyFunded increments the incorrectly-funded counter.
func (m *Metrics) ObserveIncorrectlyFunded() { m.incorrectlyFunded.Inc() }

// SetInFlight replaces the in-flight gauge's value for phase.
func (m *Metrics) SetInFlight(phase swap.CommunicationPhase, count int) {
	m.inFlightByState.WithLabelValues(phaseLabel(phase)).Set(float64(count))
}

// Refresh recomputes every in-flight gauge from a full swap snapshot,
// the way the daemon's periodic metrics tick resyncs gauges rather than
// trying to track increments/decrements as every transition fires.
func (m *Metrics) Refresh(states []swap.SwapState) {
	counts := map[swap.CommunicationPhase]int{}
	for _, s := range states {
		counts[s.Communication.Phase]++
	}
	for _, phase := range []swap.CommunicationPhase{swap.CommProposed, swap.CommAccepted, swap.CommDeclined} {
		m.SetInFlight(phase, counts[phase])
	}
}

func phaseLabel(phase swap.CommunicationPhase) string {
	switch phase {
	case swap.CommProposed:
		return "proposed"
	case swap.CommAccepted:
		return "accepted"
	case swap.CommDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// StartServer serves this Metrics' registry at /metrics on addr, the
// same pattern as the pack's HealthLogger.StartMetricsServer.
func (m *Metrics) StartServer(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return nil, err
		}
	default:
	}
	return srv, nil
}

// Shutdown gracefully stops a metrics server started by StartServer.
func (m *Metrics) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
