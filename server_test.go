package main

import (
	"testing"

	"github.com/atomicswap/cnd/channeldb"
	"github.com/atomicswap/cnd/kvdb"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	cfg := defaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.ControlSocket = cfg.DataDir + "/control.sock"
	cfg.ListenAddr = "/ip4/127.0.0.1/tcp/0"

	backend, err := kvdb.OpenBolt(cfg.DataDir, "swap.db")
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	chanDB, err := channeldb.Open(backend)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	chains, err := newChainRegistry(&cfg)
	if err != nil {
		t.Fatalf("new chain registry: %v", err)
	}

	srv, err := newServer(&cfg, chanDB, chains)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func TestServerStartStopIsIdempotent(t *testing.T) {
	srv := newTestServer(t)

	if err := srv.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("second start should be a no-op, got: %v", err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op, got: %v", err)
	}
}
