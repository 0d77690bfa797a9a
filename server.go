package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atomicswap/cnd/channeldb"
	"github.com/atomicswap/cnd/cndrpc"
	"github.com/atomicswap/cnd/htlcswitch"
	"github.com/atomicswap/cnd/metrics"
	"github.com/atomicswap/cnd/p2p"
	"github.com/atomicswap/cnd/swap"
)

// server houses the daemon's subsystems and is the central object a
// running cnd builds once at startup: the swap registry, the persistence
// layer beneath it, the p2p transport, the control-socket listener, and
// the metrics exporter. The generalized counterpart of the teacher's
// server, which bundled the wallet/peer-manager/routing-manager/rpc
// quartet — a swap daemon has no channels or routing, so that quartet
// collapses to a registry, a transport, and a control surface.
type server struct {
	started  int32 // atomic
	shutdown int32 // atomic

	cfg *config

	chanDB   *channeldb.DB
	registry *htlcswitch.Registry
	chains   *chainRegistry
	host     *p2p.Host
	ctl      *cndrpc.Server
	metrics  *metrics.Metrics

	metricsSrv *http.Server

	wg   sync.WaitGroup
	quit chan struct{}
}

// acceptAllPolicy is the daemon's current AcceptancePolicy. A future
// revision may make this operator-configurable (minimum amounts,
// pair allowlists); for now every well-formed proposal is accepted.
type acceptAllPolicy = htlcswitch.AcceptAll

// zeroIdentitySource supplies the local refund/redeem identities a Bob
// puts in an Accept. It derives nothing from a wallet or the configured
// chains: it returns the zero Identity for every ledger, sufficient for
// exercising the negotiation and state-machine paths without a wallet
// subsystem (out of scope: spec's "no custodial holding").
type zeroIdentitySource struct{}

func (zeroIdentitySource) BetaRefundIdentity(swap.LedgerKind) (swap.Identity, error) {
	return swap.Identity{}, nil
}

func (zeroIdentitySource) AlphaRedeemIdentity(swap.LedgerKind) (swap.Identity, error) {
	return swap.Identity{}, nil
}

// newServer wires every subsystem together from cfg and an already-open
// channeldb, without starting any of them. chains holds the ledger watch
// resolvers newChainRegistry built from cfg; nothing in the daemon starts
// a watch with them or feeds their results into registry.ApplyEvent —
// see the scope decision in DESIGN.md's server.go section.
func newServer(cfg *config, chanDB *channeldb.DB, chains *chainRegistry) (*server, error) {
	registry, err := htlcswitch.NewRegistry(htlcswitch.Config{
		DB:         chanDB,
		Policy:     acceptAllPolicy{},
		Identities: zeroIdentitySource{},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create swap registry: %w", err)
	}

	s := &server{
		cfg:      cfg,
		chanDB:   chanDB,
		registry: registry,
		chains:   chains,
		metrics:  metrics.New(),
		quit:     make(chan struct{}),
	}

	host, err := p2p.NewHost(p2p.Config{
		ListenAddr:     cfg.ListenAddr,
		BootstrapPeers: cfg.BootstrapPeers,
	}, s.registry)
	if err != nil {
		return nil, fmt.Errorf("unable to create p2p host: %w", err)
	}
	s.host = host

	ctl, err := cndrpc.Listen(cfg.ControlSocket, registry, host)
	if err != nil {
		return nil, fmt.Errorf("unable to create control socket: %w", err)
	}
	s.ctl = ctl

	return s, nil
}

// Start brings every subsystem up: the control-socket listener, the
// metrics exporter (if configured), and the periodic metrics-refresh
// loop. The p2p host and registry are already live the moment they're
// constructed (libp2p starts listening in NewHost), matching the
// teacher's pattern of a Start method idempotent against double-start.
func (s *server) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	log.Infof("%d ledger(s) configured for on-chain watching", len(s.chains.chains))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.ctl.Serve(); err != nil {
			log.Debugf("control socket listener stopped: %v", err)
		}
	}()

	if s.cfg.MetricsAddr != "" {
		srv, err := s.metrics.StartServer(s.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("unable to start metrics server: %w", err)
		}
		s.metricsSrv = srv

		s.wg.Add(1)
		go s.metricsLoop()
	}

	return nil
}

// metricsLoop periodically resyncs the in-flight gauges from a full
// registry snapshot, the simplest correct way to keep a gauge in lock
// step with state this package doesn't otherwise get point-in-time
// transition callbacks for.
func (s *server) metricsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.metrics.Refresh(s.registry.Swaps())
		}
	}
}

// Stop gracefully shuts the daemon's subsystems down in the reverse
// order they were started.
func (s *server) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		return nil
	}

	close(s.quit)

	if s.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx, s.metricsSrv); err != nil {
			log.Errorf("error shutting down metrics server: %v", err)
		}
	}

	if err := s.ctl.Close(); err != nil {
		log.Errorf("error closing control socket: %v", err)
	}
	if err := s.host.Close(); err != nil {
		log.Errorf("error closing p2p host: %v", err)
	}
	if err := s.chanDB.Close(); err != nil {
		log.Errorf("error closing swap database: %v", err)
	}

	s.wg.Wait()
	return nil
}

// WaitForShutdown blocks until every background goroutine this server
// started has exited.
func (s *server) WaitForShutdown() {
	s.wg.Wait()
}
